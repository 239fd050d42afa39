package domain

import (
	"errors"
	"fmt"
)

var (
	ErrParse             = errors.New("unrecognized command")
	ErrCapacity          = errors.New("capacity exceeded")
	ErrNotFound          = errors.New("file not found")
	ErrEmptySession      = errors.New("no files in session")
	ErrInsufficientInput = errors.New("not enough files")
	ErrInvalidFormat     = errors.New("invalid file format")
	ErrRange             = errors.New("invalid page range")
	ErrTooManyPages      = errors.New("too many pages")
	ErrAdapter           = errors.New("conversion failed")
	ErrReplyRequired     = errors.New("reply to a file required")
	ErrUnsupportedKind   = errors.New("unsupported file type")
	ErrToolUnavailable   = errors.New("tool unavailable")
)

// Error is a domain failure of a given kind about a given subject, e.g.
// Kind ErrRange with Subject "5-20".
type Error struct {
	Kind    error
	Subject string
	Detail  string
}

func NewError(kind error, subject, detail string) *Error {
	return &Error{Kind: kind, Subject: subject, Detail: detail}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Subject != "" {
		msg += ": " + e.Subject
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }

type ParseError struct {
	Input      string
	Suggestion string
	Detail     string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %q", ErrParse, e.Input)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Suggestion != "" {
		msg += ", did you mean /" + e.Suggestion + "?"
	}
	return msg
}

func (e *ParseError) Unwrap() error { return ErrParse }

// AdapterError means every strategy of a conversion stage failed.
type AdapterError struct {
	Stage string
	Cause error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrAdapter, e.Stage, e.Cause)
}

func (e *AdapterError) Unwrap() []error { return []error{ErrAdapter, e.Cause} }

// OperationError is the single failure type leaving the orchestrator.
type OperationError struct {
	Op  Operation
	ID  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// KindOf returns the sentinel a failure belongs to, or nil if it is not
// a domain error.
func KindOf(err error) error {
	for _, k := range []error{
		ErrParse, ErrCapacity, ErrNotFound, ErrEmptySession,
		ErrInsufficientInput, ErrInvalidFormat, ErrRange, ErrTooManyPages,
		ErrReplyRequired, ErrUnsupportedKind, ErrAdapter,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
