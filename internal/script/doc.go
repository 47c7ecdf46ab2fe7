// Package script loads host-supplied Starlark source into isolated module
// namespaces.
//
// Scripts arrive base64 encoded. Each one is executed on its own thread
// against a predeclared environment (the Starlark universe plus json, math
// and time) and yields a module whose top-level bindings can then be
// exported by name. The module is not frozen: exported functions may update
// module-level lists and dicts between calls. The print builtin never reaches stdout, which carries
// protocol responses only.
//
// load() statements inside a script resolve against an append-only search
// path. Library files are executed once, frozen and cached for the life of
// the Loader.
package script
