package extract

import "github.com/pkg/errors"

var errNoContent = errors.New("source contains no content") //nolint:gochecknoglobals // sentinel

// ExtractionError is a fatal extraction failure. The whole source must be rejected.
type ExtractionError struct {
	Cause error
}

func (e *ExtractionError) Error() (msg string) {
	msg = "failed to extract source content: " + e.Cause.Error()
	return msg
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() (err error) {
	err = e.Cause
	return err
}
