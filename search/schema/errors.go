package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrDecoding matches every *DecodingError through errors.Is.
	ErrDecoding = errors.New("document decoding error")

	ErrNilValue = errors.New("field value is nil")
)

// DecodingError reports malformed serialized bytes. Offset is the position
// in the input where decoding stopped.
type DecodingError struct {
	Offset   int
	Expected string
	Found    string
	Err      error
}

func decodingErrf(offset int, err error, expected string, foundFormat string, args ...any) error {
	return &DecodingError{
		Offset:   offset,
		Expected: expected,
		Found:    fmt.Sprintf(foundFormat, args...),
		Err:      err,
	}
}

func (e *DecodingError) Error() string {
	msg := fmt.Sprintf("%s at offset %d: expected %s, found %s", ErrDecoding, e.Offset, e.Expected, e.Found)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodingError) Is(target error) bool {
	return target == ErrDecoding
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}
