package inference

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is returned when a record field is outside its domain.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownCategory is returned by an encoder given a value it was not fitted on.
	// It is a kind of invalid input.
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrInvalidInput)

	// ErrArtifactUnavailable is returned when the encoder, scaler or classifier
	// cannot be loaded or does not match the feature schema.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
)

// FieldError describes one rejected field of a RawRecord
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InputError collects every field violation found while validating a record
type InputError struct {
	Fields []FieldError
}

func (e *InputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func artifactError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrArtifactUnavailable, fmt.Sprintf(format, args...))
}
