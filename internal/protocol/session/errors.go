package session

import (
	"errors"
	"fmt"
)

var (
	ErrSessionStarted = errors.New("session: already started")
	ErrSessionClosed  = errors.New("session: closed")
	ErrRetryExhausted = errors.New("session: retry attempts exhausted")
	ErrEmptyFrame     = errors.New("session: empty frame")
)

// TransportError is the single terminal status of a session whose port failed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
