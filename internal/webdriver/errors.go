package webdriver

import (
	"errors"
	"fmt"
)

var (
	ErrNoSuchElement  = errors.New("no such element")
	ErrStaleElement   = errors.New("stale element reference")
	ErrInvalidSession = errors.New("invalid session id")
	ErrTimeout        = errors.New("timeout")
	ErrUnknownCommand = errors.New("unknown command")
	ErrJavaScript     = errors.New("javascript error")

	// ErrSessionClosed is returned for commands issued after Session.Close.
	ErrSessionClosed = errors.New("webdriver: session closed")
)

// w3cCodes maps W3C error codes onto the sentinels callers match with errors.Is.
var w3cCodes = map[string]error{
	"no such element":         ErrNoSuchElement,
	"stale element reference": ErrStaleElement,
	"invalid session id":      ErrInvalidSession,
	"timeout":                 ErrTimeout,
	"script timeout":          ErrTimeout,
	"unknown command":         ErrUnknownCommand,
	"unknown method":          ErrUnknownCommand,
	"javascript error":        ErrJavaScript,
}

// legacyCodes maps JSON wire protocol status numbers onto W3C codes.
var legacyCodes = map[int]string{
	6:  "invalid session id",
	7:  "no such element",
	9:  "unknown command",
	10: "stale element reference",
	13: "unknown error",
	17: "javascript error",
	21: "timeout",
	28: "script timeout",
}

// CommandError reports that a command could not be carried out by the
// remote end: the transport failed, the response was not 2xx or the body
// could not be decoded. It is distinct from a test assertion failure.
type CommandError struct {
	Command    string
	Method     string
	Path       string
	StatusCode int // zero when no response was received
	Code       string
	Message    string
	Err        error
}

func (e *CommandError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("webdriver: %s %s: %v", e.Method, e.Path, e.Err)
	case e.Code != "":
		return fmt.Sprintf("webdriver: %s %s: %s (HTTP %d): %s", e.Method, e.Path, e.Code, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("webdriver: %s %s: HTTP %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("webdriver: %s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
}

func (e *CommandError) Unwrap() error { return e.Err }

// Is matches the sentinel for the W3C error code.
func (e *CommandError) Is(target error) bool {
	sentinel, ok := w3cCodes[e.Code]
	return ok && sentinel == target
}

// IsCommandError reports whether err (or anything it wraps) came from
// command dispatch rather than from a test assertion.
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}
