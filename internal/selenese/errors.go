package selenese

import (
	"errors"
	"fmt"
	"strings"
)

// AssertionError is a failed assert* check, or the set of failed verify*
// checks collected over a whole script. It marks a test failure as opposed
// to an infrastructure error.
type AssertionError struct {
	Script   string
	Failures []string
}

func (e *AssertionError) Error() string {
	var msg string
	if len(e.Failures) == 1 {
		msg = e.Failures[0]
	} else {
		msg = fmt.Sprintf("%d verifications failed:\n  %s", len(e.Failures), strings.Join(e.Failures, "\n  "))
	}
	if e.Script == "" {
		return msg
	}
	return e.Script + ": " + msg
}

// IsAssertion reports whether err is (or wraps) an AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// UnknownCommandError is returned for a step whose command is not supported.
type UnknownCommandError struct {
	Step Step
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("row %d: unknown selenese command %q", e.Step.Line, e.Step.Command)
}
