// Package common provides shared constants, types, and utilities
// used across the ConnMan indicator.
package common

import (
	"errors"
	"fmt"
)

// Sentinel errors.
// These can be checked with errors.Is() for proper error handling.
var (
	// Model errors.
	ErrStaleIdentity      = errors.New("object no longer exists")
	ErrUnknownProperty    = errors.New("unknown property")
	ErrServiceNotFound    = errors.New("service not found")
	ErrUnknownTechnology  = errors.New("unknown technology")
	ErrTechnologyBlocked  = errors.New("technology is blocked")
	ErrDaemonUnavailable  = errors.New("connman daemon is not running")
	ErrMalformedReply     = errors.New("malformed reply")
	ErrTimeout            = errors.New("operation timed out")
	ErrNotSynchronized    = errors.New("service list not yet received")
	ErrCredentialsMissing = errors.New("passphrase required")

	// Authentication errors.
	ErrAuthCancelled  = errors.New("authentication cancelled")
	ErrAuthInProgress = errors.New("authentication already in progress")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")
)

// TransportError is a failed or timed-out request to a remote object.
// Message carries the daemon's own error text when there is one.
type TransportError struct {
	Object  string
	Method  string
	Name    string
	Message string
	Timeout bool
}

func (e *TransportError) Error() string {
	text := e.Message
	if text == "" {
		text = e.Name
	}
	if text == "" {
		text = "request failed"
	}
	return fmt.Sprintf("%s %s: %s", e.Object, e.Method, text)
}

// Unwrap lets errors.Is(err, ErrTimeout) match timed-out requests.
func (e *TransportError) Unwrap() error {
	if e.Timeout {
		return ErrTimeout
	}
	return nil
}

// Reason returns the text meant for the user: the daemon's message,
// falling back to the error name.
func (e *TransportError) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Name != "" {
		return e.Name
	}
	return "request failed"
}

// ErrorReason returns the user-facing text of err, unwrapping a
// TransportError when there is one.
func ErrorReason(err error) string {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Reason()
	}
	return err.Error()
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
