package completion

import "fmt"

// UpstreamError reports a non-success status from the completion server.
// It is fatal to the session.
type UpstreamError struct {
	StatusCode int
	Body       string // best-effort excerpt
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion: upstream failed: status=%d body=%s", e.StatusCode, e.Body)
}

// StreamDecodeError reports a streamed chunk that could not be decoded.
// The in-flight turn is discarded.
type StreamDecodeError struct {
	Chunk string
	Err   error
}

func (e *StreamDecodeError) Error() string {
	return fmt.Sprintf("completion: malformed stream chunk %q: %v", e.Chunk, e.Err)
}

func (e *StreamDecodeError) Unwrap() error { return e.Err }
