package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/scriptbridge/internal/registry"
	"github.com/mattjoyce/scriptbridge/internal/script"
	"github.com/mattjoyce/scriptbridge/internal/value"
	"go.starlark.net/starlark"
)

// ErrFunctionNotFound is returned when a call names a symbol that no script
// has exported.
var ErrFunctionNotFound = errors.New("function not found")

// InvocationError reports a failure raised while running a registered
// function, or while converting what it returned.
type InvocationError struct {
	Func string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("call %s: %v", e.Func, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ThreadFactory creates the Starlark threads calls run on.
type ThreadFactory interface {
	NewThread(name string) *starlark.Thread
}

// Dispatcher calls registered functions.
type Dispatcher struct {
	registry *registry.Registry
	threads  ThreadFactory
	logger   *slog.Logger
}

// New creates a Dispatcher over reg. threads is usually the script.Loader
// that produced the registered functions.
func New(reg *registry.Registry, threads ThreadFactory, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: reg,
		threads:  threads,
		logger:   logger,
	}
}

// Call invokes the function registered as name with positional args.
func (d *Dispatcher) Call(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	fn, ok := d.registry.Lookup(name)
	if !ok {
		return value.Value{}, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}

	callable, ok := fn.(starlark.Callable)
	if !ok {
		return value.Value{}, &InvocationError{Func: name, Err: fmt.Errorf("%s value is not callable", fn.Type())}
	}

	thread := d.threads.NewThread("call " + name)
	stop := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })
	defer stop()

	start := time.Now()
	result, err := starlark.Call(thread, callable, script.ToStarlarkArgs(args), nil)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			d.logger.Debug("function raised", "func", name, "backtrace", evalErr.Backtrace())
		}
		return value.Value{}, &InvocationError{Func: name, Err: err}
	}

	out, err := script.FromStarlark(result)
	if err != nil {
		return value.Value{}, &InvocationError{Func: name, Err: fmt.Errorf("convert result: %w", err)}
	}

	d.logger.Debug("function returned", "func", name, "args", len(args), "duration", time.Since(start))
	return out, nil
}
