package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattjoyce/scriptbridge/internal/protocol"
)

type flusher interface {
	Flush() error
}

// Serve reads requests from r and writes responses to out until r is
// exhausted, ctx is cancelled between requests, or a write fails. A final
// line without a trailing newline is still handled. Reaching the end of r
// returns nil.
func (w *Worker) Serve(ctx context.Context, r io.Reader, out io.Writer) error {
	reader := bufio.NewReader(r)
	w.logger.Info("worker ready", "profile", w.profile)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("read request: %w", readErr)
		}
		if len(line) == 0 {
			w.logger.Info("input closed, worker exiting", "symbols", w.registry.Len())
			return nil
		}

		resp := w.Handle(ctx, line)
		if err := w.respond(out, line, resp); err != nil {
			return err
		}

		if readErr != nil {
			w.logger.Info("input closed, worker exiting", "symbols", w.registry.Len())
			return nil
		}
	}
}

// respond writes resp, falling back to a failure response when the result
// cannot be encoded. Only a failed write is returned.
func (w *Worker) respond(out io.Writer, line []byte, resp protocol.Response) error {
	data, err := protocol.EncodeResponse(w.profile, resp)
	if err != nil {
		data, err = protocol.EncodeResponse(w.profile, protocol.Failure(strings.TrimRight(string(line), "\r\n"), err))
		if err != nil {
			return err
		}
	}

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if f, ok := out.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush response: %w", err)
		}
	}
	return nil
}
