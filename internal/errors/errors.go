// Package errors defines the error kinds reported by the append pipeline.
//
// Every fatal or per-row failure carries a Kind so callers can tell a bad
// command line from an unresolved document or a rejected row without parsing
// messages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// MalformedArguments indicates an unrecognized flag, a missing value or an
	// invalid option combination.
	MalformedArguments Kind = "malformed_arguments"
	// AuthError indicates the credential provider could not produce a session.
	AuthError Kind = "auth_error"
	// NotFound indicates a document or sheet title matched nothing.
	NotFound Kind = "not_found"
	// Ambiguous indicates a document or sheet title matched more than once.
	Ambiguous Kind = "ambiguous"
	// MalformedRow indicates row input that cannot be turned into a record.
	MalformedRow Kind = "malformed_row"
	// ServiceError indicates the remote service rejected a call.
	ServiceError Kind = "service_error"
	// SourceError indicates the row source could not be read.
	SourceError Kind = "source_error"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf formats the message like fmt.Sprintf.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the outermost *E in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether any *E in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *E
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
