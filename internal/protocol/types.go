package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattjoyce/scriptbridge/internal/value"
)

// Profile is one of the two wire conventions a worker can speak. The two are
// not byte compatible; a deployment picks one and never mixes them.
type Profile string

const (
	// ProfileFramed requires an explicit Type and wraps every response
	// between FrameStart and FrameEnd.
	ProfileFramed Profile = "framed"
	// ProfilePlain infers the request kind from the fields present and
	// writes bare JSON responses.
	ProfilePlain Profile = "plain"
)

// Sentinels around each response in the framed profile.
const (
	FrameStart = "##gospider@start##"
	FrameEnd   = "##gospider@end##"
)

// ParseProfile validates a profile name.
func ParseProfile(name string) (Profile, error) {
	switch p := Profile(name); p {
	case ProfileFramed, ProfilePlain:
		return p, nil
	default:
		return "", fmt.Errorf("unknown protocol profile %q (must be framed or plain)", name)
	}
}

// Kind is what a request asks the worker to do.
type Kind string

const (
	KindInit    Kind = "init"
	KindCall    Kind = "call"
	KindUnknown Kind = "unknown"
)

// ErrUnknownRequestType is reported for requests that are neither a load
// nor a call.
var ErrUnknownRequestType = errors.New("unrecognized request type")

// ParseError reports an input line that is not a JSON request object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid request: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingFieldError reports a request without a field its kind requires.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("request is missing %q", e.Field)
}

// Request is one line of worker input.
type Request struct {
	Type       string        `json:"Type,omitempty"`
	Script     string        `json:"Script,omitempty"`
	Names      []string      `json:"Names,omitempty"`
	ModulePath []string      `json:"ModulePath,omitempty"`
	Func       string        `json:"Func,omitempty"`
	Args       []value.Value `json:"Args,omitempty"`
}

// Kind classifies the request under profile p. The framed profile trusts
// Type alone; the plain profile looks at which fields are present, with a
// load taking precedence over a call.
func (r *Request) Kind(p Profile) Kind {
	if p == ProfileFramed {
		switch Kind(r.Type) {
		case KindInit:
			return KindInit
		case KindCall:
			return KindCall
		default:
			return KindUnknown
		}
	}

	switch {
	case r.Script != "" && r.Names != nil:
		return KindInit
	case r.Func != "":
		return KindCall
	default:
		return KindUnknown
	}
}

// CheckInit reports an init request that lacks its Names list. The plain
// profile only classifies a request as init when Names is present, so this
// matters for the framed profile, where Type alone decides.
func (r *Request) CheckInit() error {
	if r.Names == nil {
		return &MissingFieldError{Field: "Names"}
	}
	return nil
}

// MarshalJSON writes only the fields that belong to the request's shape.
// Names, ModulePath and Args are always present for the shape that owns
// them, so an empty Names list still marks a load in the plain profile.
func (r Request) MarshalJSON() ([]byte, error) {
	switch {
	case r.Script != "" || r.Names != nil || Kind(r.Type) == KindInit:
		type initWire struct {
			Type       string   `json:"Type,omitempty"`
			Script     string   `json:"Script"`
			Names      []string `json:"Names"`
			ModulePath []string `json:"ModulePath"`
		}
		w := initWire{Type: r.Type, Script: r.Script, Names: r.Names, ModulePath: r.ModulePath}
		if w.Names == nil {
			w.Names = []string{}
		}
		if w.ModulePath == nil {
			w.ModulePath = []string{}
		}
		return json.Marshal(w)
	default:
		type callWire struct {
			Type string        `json:"Type,omitempty"`
			Func string        `json:"Func"`
			Args []value.Value `json:"Args"`
		}
		w := callWire{Type: r.Type, Func: r.Func, Args: r.Args}
		if w.Args == nil {
			w.Args = []value.Value{}
		}
		return json.Marshal(w)
	}
}

// Response is the single reply to a request. On failure Result echoes the
// raw request line.
type Response struct {
	Result value.Value `json:"Result"`
	Error  string      `json:"Error"`
}

// Success builds a response carrying result.
func Success(result value.Value) Response {
	return Response{Result: result}
}

// Failure builds the response for a request that did not complete: the
// error message plus the raw input line.
func Failure(raw string, err error) Response {
	return Response{Result: value.String(raw), Error: err.Error()}
}

// Err returns the response's error as a Go error, nil on success.
func (r *Response) Err() error {
	if r.Error == "" {
		return nil
	}
	return errors.New(r.Error)
}
