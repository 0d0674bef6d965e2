package types

import (
	"errors"
	"fmt"
)

// Kind classifies a composition failure
type Kind string

const (
	KindInvalidRequest   Kind = "invalid_request"
	KindAssetUnreadable  Kind = "asset_unreadable"
	KindEncodeFailure    Kind = "encode_failure"
	KindDurationMismatch Kind = "duration_mismatch"
)

// Sentinels for errors.Is checks against an *Error of the same kind
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrAssetUnreadable  = errors.New("asset unreadable")
	ErrEncodeFailure    = errors.New("encode failure")
	ErrDurationMismatch = errors.New("duration mismatch")
)

// Error is the typed failure surfaced to callers of the engine
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// NewError builds an *Error
func NewError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Op, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

func sentinelFor(k Kind) error {
	switch k {
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindAssetUnreadable:
		return ErrAssetUnreadable
	case KindEncodeFailure:
		return ErrEncodeFailure
	case KindDurationMismatch:
		return ErrDurationMismatch
	}
	return nil
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
