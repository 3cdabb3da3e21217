package llm

import (
	"fmt"

	"github.com/nikogura/doc-reformatter/pkg/section"
)

// ChunkRequest is one structuring request: the system prompt, a chunk of source text
// and the tables that chunk carries.
type ChunkRequest struct {
	Index        int
	SystemPrompt string
	Text         string
	Tables       [][][]string
}

// Result is the outcome of one chunk. Exactly one of Map and Err is set.
type Result struct {
	Index int
	Map   *section.Map
	Err   *GatewayError
}

// OK reports whether the chunk produced a section map.
func (r Result) OK() (ok bool) {
	ok = r.Err == nil && r.Map != nil
	return ok
}

// GatewayError is a per-chunk failure: transport exhausted, empty response or
// unparseable output. Raw carries the diagnostic text (usually the model output).
type GatewayError struct {
	Message string
	Raw     string
	Cause   error
}

func (e *GatewayError) Error() (msg string) {
	msg = e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() (err error) {
	err = e.Cause
	return err
}

// TransientError is a retryable transport failure (HTTP 429, 5xx, network error).
type TransientError struct {
	StatusCode int
	Cause      error
}

func (e *TransientError) Error() (msg string) {
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("transient API failure (status %d): %s", e.StatusCode, e.Cause.Error())
		return msg
	}
	msg = "transient API failure: " + e.Cause.Error()
	return msg
}

// Unwrap returns the underlying cause.
func (e *TransientError) Unwrap() (err error) {
	err = e.Cause
	return err
}
