// Package worker runs the request loop: one JSON request per input line,
// one response per request, until the input ends.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/scriptbridge/internal/dispatch"
	"github.com/mattjoyce/scriptbridge/internal/journal"
	"github.com/mattjoyce/scriptbridge/internal/metrics"
	"github.com/mattjoyce/scriptbridge/internal/protocol"
	"github.com/mattjoyce/scriptbridge/internal/registry"
	"github.com/mattjoyce/scriptbridge/internal/script"
	"github.com/mattjoyce/scriptbridge/internal/value"
)

// InitResult is the Result of a successful load.
const InitResult = "ok"

// ExportLookupError reports an export name the loaded script does not define.
type ExportLookupError struct {
	Name string
}

func (e *ExportLookupError) Error() string {
	return fmt.Sprintf("script does not define %q", e.Name)
}

// Worker owns the symbol registry and module search path for one process.
// It is not safe for concurrent use.
type Worker struct {
	profile    protocol.Profile
	loader     *script.Loader
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	recorder   Recorder
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithRegistry uses reg instead of a fresh registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(w *Worker) { w.registry = reg }
}

// WithRecorder sends an entry for every handled request to r.
func WithRecorder(r Recorder) Option {
	return func(w *Worker) { w.recorder = r }
}

// WithMetrics counts requests in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithLogger sets the worker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// New creates a Worker speaking profile p. Scripts are executed by loader.
func New(p protocol.Profile, loader *script.Loader, opts ...Option) *Worker {
	w := &Worker{
		profile: p,
		loader:  loader,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.registry == nil {
		w.registry = registry.New()
	}
	w.dispatcher = dispatch.New(w.registry, loader, w.logger)
	w.metrics.SetSymbols(w.registry.Len())
	return w
}

// Profile returns the wire profile the worker speaks.
func (w *Worker) Profile() protocol.Profile {
	return w.profile
}

// Registry returns the worker's symbol registry.
func (w *Worker) Registry() *registry.Registry {
	return w.registry
}

// Handle processes one input line and returns its response. It never
// panics; failures of any kind become a response whose Result is the raw
// line.
func (w *Worker) Handle(ctx context.Context, line []byte) (resp protocol.Response) {
	raw := strings.TrimRight(string(line), "\r\n")
	start := time.Now()
	entry := journal.Entry{
		ID:        uuid.NewString(),
		Kind:      string(protocol.KindUnknown),
		StartedAt: start.UTC(),
	}
	logger := w.logger.With("request_id", entry.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("request panicked", "panic", r, "stack", string(debug.Stack()))
			resp = protocol.Failure(raw, fmt.Errorf("panic: %v", r))
		}
		entry.Duration = time.Since(start)
		entry.Error = resp.Error
		w.finish(ctx, logger, entry)
	}()

	req, err := protocol.DecodeRequest(line)
	if err != nil {
		return protocol.Failure(raw, err)
	}

	kind := req.Kind(w.profile)
	entry.Kind = string(kind)

	switch kind {
	case protocol.KindInit:
		if err := req.CheckInit(); err != nil {
			return protocol.Failure(raw, err)
		}
		entry.Names = req.Names
		digest, err := w.load(ctx, req)
		entry.ScriptDigest = digest
		if err != nil {
			return protocol.Failure(raw, err)
		}
		return protocol.Success(value.String(InitResult))

	case protocol.KindCall:
		entry.Func = req.Func
		result, err := w.dispatcher.Call(ctx, req.Func, req.Args)
		if err != nil {
			return protocol.Failure(raw, err)
		}
		return protocol.Success(result)

	default:
		return protocol.Failure(raw, protocol.ErrUnknownRequestType)
	}
}

// load extends the search path, executes the script and exports the
// requested names in order. A missing name stops the export; names bound
// before it stay bound.
func (w *Worker) load(ctx context.Context, req *protocol.Request) (string, error) {
	if len(req.ModulePath) > 0 {
		w.loader.AppendSearchPath(req.ModulePath...)
	}

	mod, err := w.loader.Load(ctx, req.Script)
	if err != nil {
		var loadErr *script.LoadError
		if errors.As(err, &loadErr) {
			return loadErr.Digest, err
		}
		return "", err
	}

	defer func() { w.metrics.SetSymbols(w.registry.Len()) }()
	for _, name := range req.Names {
		v, ok := mod.Lookup(name)
		if !ok {
			return mod.Digest, &ExportLookupError{Name: name}
		}
		w.registry.Bind(name, v)
	}
	return mod.Digest, nil
}

func (w *Worker) finish(ctx context.Context, logger *slog.Logger, entry journal.Entry) {
	outcome := metrics.OutcomeOK
	if entry.Failed() {
		outcome = metrics.OutcomeError
		logger.Warn("request failed", "kind", entry.Kind, "func", entry.Func, "error", entry.Error, "duration", entry.Duration)
	} else {
		logger.Debug("request handled", "kind", entry.Kind, "func", entry.Func, "names", entry.Names, "duration", entry.Duration)
	}
	w.metrics.ObserveRequest(entry.Kind, outcome, entry.Duration)

	if w.recorder == nil {
		return
	}
	// Journal writes must outlive a cancelled serve context.
	if err := w.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("failed to record request", "error", err)
	}
}
