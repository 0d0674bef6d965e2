package encoder

import (
	"fmt"
	"strings"

	"reelcomposer/types"
)

// ErrorKind classifies an encoder failure
type ErrorKind string

const (
	KindExitNonZero  ErrorKind = "exit_non_zero"
	KindTimeout      ErrorKind = "timeout"
	KindCancelled    ErrorKind = "cancelled"
	KindInvalidGraph ErrorKind = "invalid_graph"
)

// Error carries the encoder's exit status and the tail of its diagnostics
type Error struct {
	Kind       ErrorKind
	ExitCode   int
	StderrTail []string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "encoder %s", e.Kind)
	if e.Kind == KindExitNonZero {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if n := len(e.StderrTail); n > 0 {
		fmt.Fprintf(&b, ": %s", e.StderrTail[n-1])
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports every encoder error as an encode failure
func (e *Error) Is(target error) bool {
	return target == types.ErrEncodeFailure
}
