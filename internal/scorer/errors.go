package scorer

import (
	"errors"
	"fmt"
)

// Kind classifies why a prediction failed.
type Kind string

const (
	KindTransport  Kind = "transport_error"
	KindServer     Kind = "server_error"
	KindDecode     Kind = "decode_error"
	KindTimeout    Kind = "timeout"
	KindValidation Kind = "validation_error"
)

// Error is returned by Predict for every unsuccessful exchange.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status for server and decode errors, zero otherwise.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf reports the failure kind carried by err. Errors that did not come
// from the client count as transport errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransport
}

func genericMessage(status int) string {
	return fmt.Sprintf("request failed with status %d", status)
}
