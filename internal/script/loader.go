package script

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/zeebo/blake3"
	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// scriptFilename names host-supplied scripts in tracebacks.
const scriptFilename = "<script>"

// PrintMode selects what happens to output from the script's print builtin.
type PrintMode string

const (
	// PrintDiscard drops printed text. stdout belongs to the protocol.
	PrintDiscard PrintMode = "discard"
	// PrintLog forwards printed text to the debug log on stderr.
	PrintLog PrintMode = "log"
)

// Stage identifies where a script load failed.
type Stage string

const (
	StageDecode  Stage = "decode"
	StageExecute Stage = "execute"
)

// LoadError reports a script that could not be decoded or executed.
// Nothing from a failed script is ever exported.
type LoadError struct {
	Stage  Stage
	Digest string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s script: %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Module is the namespace produced by executing one script.
type Module struct {
	Digest  string
	Globals starlark.StringDict
}

// Lookup returns the top-level binding called name.
func (m *Module) Lookup(name string) (starlark.Value, bool) {
	v, ok := m.Globals[name]
	return v, ok
}

type loadedModule struct {
	globals starlark.StringDict
}

// Loader executes host-supplied scripts. It owns the module search path and
// the cache of library files pulled in with load(); both live as long as the
// Loader and are not safe for concurrent use.
type Loader struct {
	opts        *syntax.FileOptions
	predeclared starlark.StringDict
	printMode   PrintMode
	searchPath  []string
	cache       map[string]*loadedModule
	logger      *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for printed output and load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithPrintMode sets how script print() output is handled.
func WithPrintMode(mode PrintMode) Option {
	return func(l *Loader) { l.printMode = mode }
}

// WithSearchPath seeds the module search path.
func WithSearchPath(paths ...string) Option {
	return func(l *Loader) { l.searchPath = append(l.searchPath, paths...) }
}

// NewLoader creates a Loader with the json, math and time modules
// predeclared.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		opts: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
			Recursion:       true,
		},
		predeclared: starlark.StringDict{
			"json": starjson.Module,
			"math": starmath.Module,
			"time": startime.Module,
		},
		printMode: PrintDiscard,
		cache:     make(map[string]*loadedModule),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AppendSearchPath adds directories to the end of the search path. Entries
// are never removed.
func (l *Loader) AppendSearchPath(paths ...string) {
	l.searchPath = append(l.searchPath, paths...)
}

// SearchPath returns a copy of the current search path.
func (l *Loader) SearchPath() []string {
	return append([]string(nil), l.searchPath...)
}

// NewThread returns a Starlark thread wired to this loader's print and
// load hooks.
func (l *Loader) NewThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name:  name,
		Print: l.print,
		Load:  l.load,
	}
}

// Load decodes a base64 script and executes it in a fresh namespace.
// Cancelling ctx interrupts a script that is still running.
func (l *Loader) Load(ctx context.Context, encoded string) (*Module, error) {
	src, err := decodeScript(encoded)
	if err != nil {
		return nil, &LoadError{Stage: StageDecode, Err: err}
	}
	digest := Digest(src)

	thread := l.NewThread("script " + shortDigest(digest))
	stop := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })
	defer stop()

	globals, err := starlark.ExecFileOptions(l.opts, thread, scriptFilename, src, l.predeclared)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			l.logger.Debug("script execution failed", "digest", digest, "backtrace", evalErr.Backtrace())
		}
		return nil, &LoadError{Stage: StageExecute, Digest: digest, Err: err}
	}
	// Script modules stay mutable so exported functions can keep state
	// (counters, caches) across calls. Library modules from load() are
	// shared between scripts and are frozen.

	return &Module{Digest: digest, Globals: globals}, nil
}

func (l *Loader) print(thread *starlark.Thread, msg string) {
	if l.printMode == PrintLog {
		l.logger.Debug("script print", "thread", thread.Name, "message", msg)
	}
}

// load implements the load() statement. Library files are found on the
// search path and executed once; failed loads are not cached so a later
// search path entry can satisfy them.
func (l *Loader) load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	path, err := l.resolve(module)
	if err != nil {
		return nil, err
	}

	if entry, ok := l.cache[path]; ok {
		if entry == nil {
			return nil, fmt.Errorf("cycle in load graph at %s", module)
		}
		return entry.globals, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module %s: %w", module, err)
	}

	l.cache[path] = nil
	globals, err := starlark.ExecFileOptions(l.opts, l.NewThread("load "+module), path, src, l.predeclared)
	if err != nil {
		delete(l.cache, path)
		return nil, err
	}
	globals.Freeze()
	l.cache[path] = &loadedModule{globals: globals}
	l.logger.Debug("module loaded", "module", module, "path", path)
	return globals, nil
}

func (l *Loader) resolve(module string) (string, error) {
	candidates := []string{module}
	if filepath.Ext(module) == "" {
		candidates = append(candidates, module+".star")
	}

	if filepath.IsAbs(module) {
		for _, c := range candidates {
			if isFile(c) {
				return filepath.Clean(c), nil
			}
		}
		return "", fmt.Errorf("module %q not found", module)
	}

	for _, dir := range l.searchPath {
		for _, c := range candidates {
			p := filepath.Join(dir, c)
			if !isFile(p) {
				continue
			}
			abs, err := filepath.Abs(p)
			if err != nil {
				return "", fmt.Errorf("resolve module %q: %w", module, err)
			}
			return abs, nil
		}
	}
	return "", fmt.Errorf("module %q not found in search path %v", module, l.searchPath)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func decodeScript(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	src, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, rawErr := base64.RawStdEncoding.DecodeString(encoded)
		if rawErr != nil {
			return nil, err
		}
		src = raw
	}
	if !utf8.Valid(src) {
		return nil, errors.New("script is not valid UTF-8")
	}
	return src, nil
}

// Digest returns the hex BLAKE3 digest of a decoded script.
func Digest(src []byte) string {
	sum := blake3.Sum256(src)
	return hex.EncodeToString(sum[:])
}

func shortDigest(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
