// Package host is the calling side of the worker protocol: it loads scripts
// into a worker and calls the functions they export.
package host

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mattjoyce/scriptbridge/internal/protocol"
	"github.com/mattjoyce/scriptbridge/internal/value"
)

// ErrClosed is returned by a client that was closed or whose worker stopped
// responding.
var ErrClosed = errors.New("client closed")

// RemoteError is a failure reported by the worker in a response.
type RemoteError struct {
	Message string
	// Request is the raw request line the worker echoed back.
	Request string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Client sends requests to one worker and reads its responses. Requests are
// serialised; a Client is safe for concurrent use, and Close never waits for
// a request in flight.
type Client struct {
	mu        sync.Mutex // serialises round trips
	profile   protocol.Profile
	w         io.Writer
	responses *protocol.ResponseReader
	broken    error // guarded by mu

	closeOnce sync.Once
	closed    chan struct{}
	closer    io.Closer
	closeErr  error
}

// NewClient creates a client that writes requests to w and reads responses
// from r using profile p. If w is an io.Closer, Close closes it.
func NewClient(r io.Reader, w io.Writer, p protocol.Profile) *Client {
	c := &Client{
		profile:   p,
		w:         w,
		responses: protocol.NewResponseReader(r, p),
		closed:    make(chan struct{}),
	}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// Init loads src into the worker and exports names. modulePath entries are
// added to the worker's search path.
func (c *Client) Init(ctx context.Context, src []byte, names []string, modulePath ...string) error {
	if names == nil {
		names = []string{}
	}
	req := &protocol.Request{
		Script:     base64.StdEncoding.EncodeToString(src),
		Names:      names,
		ModulePath: modulePath,
	}
	if c.profile == protocol.ProfileFramed {
		req.Type = string(protocol.KindInit)
	}

	_, err := c.roundTrip(ctx, req)
	return err
}

// Call invokes the exported function name with args. Each argument is
// converted with value.FromAny.
func (c *Client) Call(ctx context.Context, name string, args ...any) (value.Value, error) {
	converted := make([]value.Value, len(args))
	for i, a := range args {
		v, err := value.FromAny(a)
		if err != nil {
			return value.Value{}, fmt.Errorf("argument %d: %w", i, err)
		}
		converted[i] = v
	}

	req := &protocol.Request{Func: name, Args: converted}
	if c.profile == protocol.ProfileFramed {
		req.Type = string(protocol.KindCall)
	}
	return c.roundTrip(ctx, req)
}

// roundTrip writes one request and waits for its response. If ctx ends
// first the client is marked broken, since the late response would pair
// with the next request.
func (c *Client) roundTrip(ctx context.Context, req *protocol.Request) (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return value.Value{}, c.broken
	}
	select {
	case <-c.closed:
		c.broken = ErrClosed
		return value.Value{}, ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return value.Value{}, err
	}

	if err := protocol.EncodeRequest(c.w, req); err != nil {
		c.broken = fmt.Errorf("%w: %v", ErrClosed, err)
		if c.isClosed() {
			return value.Value{}, ErrClosed
		}
		return value.Value{}, err
	}

	type result struct {
		resp *protocol.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := c.responses.Next()
		done <- result{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		c.broken = fmt.Errorf("%w: abandoned a request: %v", ErrClosed, context.Cause(ctx))
		return value.Value{}, ctx.Err()
	case <-c.closed:
		c.broken = ErrClosed
		return value.Value{}, ErrClosed
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				c.broken = fmt.Errorf("%w: worker closed its output", ErrClosed)
			} else {
				c.broken = fmt.Errorf("%w: %v", ErrClosed, res.err)
			}
			return value.Value{}, c.broken
		}
		if res.resp.Error != "" {
			return value.Value{}, &RemoteError{Message: res.resp.Error, Request: res.resp.Result.AsString()}
		}
		return res.resp.Result, nil
	}
}

// Close closes the request stream. A worker exits once it sees the end of
// its input. A request still waiting for its response returns ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.closer != nil {
			c.closeErr = c.closer.Close()
		}
	})
	return c.closeErr
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
