package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsuccessful is returned when the backend replies with success=false.
	ErrUnsuccessful = errors.New("backend reported failure")
	// ErrNoFrame is returned when the backend has no frame to serve.
	ErrNoFrame = errors.New("no frame available")
	// ErrHTTPStatus is returned for non-2xx replies.
	ErrHTTPStatus = errors.New("unexpected http status")
)

// RemoteError describes a failed backend operation.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
