package prediction

import (
	"errors"
	"fmt"
)

// ErrPredictionFailed matches every failure returned by the client, so callers
// that don't care about the cause can treat them as one condition.
var ErrPredictionFailed = errors.New("prediction failed")

// TransportError reports a request that did not complete or returned a
// non-success status. StatusCode is 0 when no response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("prediction service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("prediction request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrPredictionFailed
}

// ParseError reports a response body that is not valid JSON of the expected shape.
type ParseError struct {
	Body []byte
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing prediction response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrPredictionFailed
}

// Kind names the failure for logs and metrics.
func Kind(err error) string {
	var terr *TransportError
	var perr *ParseError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &terr):
		return "transport_error"
	case errors.As(err, &perr):
		return "parse_error"
	default:
		return "error"
	}
}
