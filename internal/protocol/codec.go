package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxResponseBytes caps a single response read by ResponseReader.
const maxResponseBytes = 64 * 1024 * 1024

var (
	frameStart = []byte(FrameStart)
	frameEnd   = []byte(FrameEnd)

	hashMark    = []byte("#")
	escapedHash = []byte(`\u0023`)
)

// DecodeRequest parses one input line. Anything other than a single JSON
// object is a *ParseError.
func DecodeRequest(line []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, &ParseError{Err: errors.New("empty line")}
	}
	if trimmed[0] != '{' {
		return nil, &ParseError{Err: fmt.Errorf("expected JSON object, got %q", firstToken(trimmed))}
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &req, nil
}

// EncodeRequest writes req as one newline-terminated JSON line.
func EncodeRequest(w io.Writer, req *Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}
	return nil
}

// EncodeResponse renders resp for profile p. The result always ends with a
// newline. In the framed profile every '#' in the JSON body is written as
// \u0023, so a body can never contain either sentinel.
func EncodeResponse(p Profile, resp Response) ([]byte, error) {
	var encoded bytes.Buffer
	enc := json.NewEncoder(&encoded)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	body := bytes.TrimSuffix(encoded.Bytes(), []byte("\n"))

	var buf bytes.Buffer
	buf.Grow(len(body) + len(frameStart) + len(frameEnd) + 1)
	if p == ProfileFramed {
		// '#' only occurs inside JSON strings, where the escape is equivalent.
		body = bytes.ReplaceAll(body, hashMark, escapedHash)
		buf.Write(frameStart)
		buf.Write(body)
		buf.Write(frameEnd)
	} else {
		buf.Write(body)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteResponse encodes resp and hands it to w in a single Write call.
func WriteResponse(w io.Writer, p Profile, resp Response) error {
	data, err := EncodeResponse(p, resp)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// ResponseReader reads worker responses from a stream for one profile.
type ResponseReader struct {
	scanner *bufio.Scanner
}

// NewResponseReader creates a reader over r. In the framed profile bytes
// outside the sentinels are skipped; in the plain profile blank lines are.
func NewResponseReader(r io.Reader, p Profile) *ResponseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseBytes)
	if p == ProfileFramed {
		scanner.Split(ScanFrames)
	}
	return &ResponseReader{scanner: scanner}
}

// Next returns the next response, or io.EOF once the stream ends cleanly.
func (rr *ResponseReader) Next() (*Response, error) {
	for rr.scanner.Scan() {
		body := bytes.TrimSpace(rr.scanner.Bytes())
		if len(body) == 0 {
			continue
		}
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &resp, nil
	}
	if err := rr.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// ErrTruncatedFrame is returned when a stream ends inside a framed response.
var ErrTruncatedFrame = errors.New("stream ended inside a framed response")

// ScanFrames is a bufio.SplitFunc that yields the bodies between FrameStart
// and FrameEnd, discarding anything in between frames.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, frameStart)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a tail long enough to hold a marker split across reads.
		if keep := len(frameStart) - 1; len(data) > keep {
			return len(data) - keep, nil, nil
		}
		return 0, nil, nil
	}

	bodyStart := start + len(frameStart)
	end := bytes.Index(data[bodyStart:], frameEnd)
	if end < 0 {
		if atEOF {
			return 0, nil, ErrTruncatedFrame
		}
		return start, nil, nil
	}
	return bodyStart + end + len(frameEnd), data[bodyStart : bodyStart+end], nil
}

func firstToken(b []byte) string {
	if len(b) > 16 {
		return string(b[:16]) + "..."
	}
	return string(b)
}
