package pipeline

import (
	"errors"
	"fmt"
)

// NoDetectionMessage is reported when no qualifying plate region was read.
const NoDetectionMessage = "No license plate number detected."

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindInternal is an unanticipated failure, including recovered panics.
	KindInternal Kind = iota
	// KindAcquisition means the image could not be fetched.
	KindAcquisition
	// KindDecode means the fetched bytes are not a decodable image.
	KindDecode
	// KindNoDetection means no plate region met the confidence threshold.
	KindNoDetection
	// KindRecognition means detection, preprocessing or recognition failed.
	KindRecognition
)

func (k Kind) String() string {
	switch k {
	case KindAcquisition:
		return "acquisition"
	case KindDecode:
		return "decode"
	case KindNoDetection:
		return "no_detection"
	case KindRecognition:
		return "recognition"
	default:
		return "internal"
	}
}

// Error is the failure half of a pipeline result. Message is always
// non-empty and safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// ErrNoDetection matches any KindNoDetection error with errors.Is.
var ErrNoDetection = &Error{Kind: KindNoDetection, Message: NoDetectionMessage}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind, so the package sentinels work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds an Error, falling back to a generic message.
func NewError(kind Kind, message string, err error) *Error {
	if message == "" {
		if err != nil {
			message = "An error occurred: " + err.Error()
		} else {
			message = "An error occurred"
		}
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Errorf builds an Error with a formatted client message and err as cause.
func Errorf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err: the Kind of a wrapped *Error, or
// KindInternal for any other non-nil error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// AsError converts any error into an *Error. Unknown errors become
// KindInternal with a generic message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return NewError(KindInternal, "", err)
}
