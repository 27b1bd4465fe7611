// Package apperrors provides the structured application error used across
// the mining pipeline: a Kind drawn from spec §7's error table, whose Fatal
// method decides whether the caller must abort, and optional context.
package apperrors

import (
	"fmt"
	"strings"
)

// Kind is the category of error, one value per row of spec §7's table.
type Kind int

const (
	// ConfigInvalid is raised by config load; fatal, abort process.
	ConfigInvalid Kind = iota
	// InitFailed is raised by an analysis's Init; fatal, abort process.
	InitFailed
	// CloneFailed is raised by the Runner; per-repo skip, log.
	CloneFailed
	// PreprocessFailed is raised by the Compiler; per-file skip.
	PreprocessFailed
	// CompileFailed is raised by the Compiler once all header sets have
	// been tried; per-file skip.
	CompileFailed
	// InternFailed is raised by the Runner; log, still mark repo as mined.
	InternFailed
	// DbTransient is raised by the persistence layer; log, continue.
	DbTransient
	// PanicCaught is raised by outer/inner worker recovery; isolate to
	// the task, log.
	PanicCaught
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "ConfigInvalid"
	case InitFailed:
		return "InitFailed"
	case CloneFailed:
		return "CloneFailed"
	case PreprocessFailed:
		return "PreprocessFailed"
	case CompileFailed:
		return "CompileFailed"
	case InternFailed:
		return "InternFailed"
	case DbTransient:
		return "DbTransient"
	case PanicCaught:
		return "PanicCaught"
	default:
		return "Unknown"
	}
}

// Fatal reports whether this Kind's policy is to abort the process, per
// spec §7 ("fatal, abort process" vs. "skip"/"log, continue").
func (k Kind) Fatal() bool {
	switch k {
	case ConfigInvalid, InitFailed:
		return true
	default:
		return false
	}
}

// Error is a structured error carrying a Kind, an optional wrapped cause,
// and free-form context (repo id, file path, header set, ...).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair of diagnostic context and returns e
// for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// DetailedString renders the error with its context, useful for per-repo
// log files.
func (e *Error) DetailedString() string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	if len(e.Context) > 0 {
		sb.WriteString(" [")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&sb, "%s=%v", k, v)
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// New creates an Error of the given kind with a plain message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a Kind and message.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Wrapf wraps an existing error with a Kind and a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// IsFatal reports whether err (if it is, or wraps, an *Error) has a fatal
// Kind per spec §7's policy table.
func IsFatal(err error) bool {
	var e *Error
	if As(err, &e) {
		return e.Kind.Fatal()
	}
	return false
}

// As is a small errors.As counterpart for *Error: it follows the chain of
// single-error Unwrap methods and stops at the first *Error it finds.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
