// Package dispatch invokes exported script functions by name.
//
// The Dispatcher resolves a name against the symbol registry and calls the
// bound Starlark callable with positional arguments on a fresh thread.
// Arguments and results cross the boundary as value.Value.
//
// Error handling:
//   - Name not registered → ErrFunctionNotFound
//   - Bound value not callable → *InvocationError
//   - Script raised an error → *InvocationError
//   - Result cannot be represented on the wire → *InvocationError
//
// There is no per-call timeout. A call only stops early when its context is
// cancelled, which is how the worker interrupts a call during shutdown.
package dispatch
