package upload

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("invalid image selection")
	ErrInvalidTransition = errors.New("invalid state transition")
)

const (
	ReasonMissing  = "missing"
	ReasonTooLarge = "too_large"
	ReasonNotImage = "not_image"
)

// ValidationError is returned for selections rejected before any prediction call.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func MissingImage() *ValidationError {
	return &ValidationError{Reason: ReasonMissing, Message: "Please upload an image first!"}
}

func TooLarge(limit int64) *ValidationError {
	return &ValidationError{
		Reason:  ReasonTooLarge,
		Message: fmt.Sprintf("File size too large. Please select an image under %s.", FormatLimit(limit)),
	}
}

func NotImage() *ValidationError {
	return &ValidationError{Reason: ReasonNotImage, Message: "Unsupported file type. Please select a JPG or PNG image."}
}

// FormatLimit renders an upload size limit for user-facing messages.
func FormatLimit(n int64) string {
	const mib = 1 << 20
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
