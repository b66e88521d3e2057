// Package errors defines the failure taxonomy of the playground.
//
// Every operation that can fail at its boundary (evaluating a snippet,
// composing a suggestion, reaching a completion backend) converts the
// underlying cause into an *E carrying a Kind. Callers turn these into
// typed results and notifications rather than propagating them further.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	// EvaluationFailure is raised while a snippet is parsed or executed.
	EvaluationFailure Kind = "evaluation_failure"
	// SuggestionFailure is raised while composing or resolving a suggestion.
	SuggestionFailure Kind = "suggestion_failure"
	// TransportFailure is raised when a remote completion backend cannot be reached.
	TransportFailure Kind = "transport_failure"
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
func New(kind Kind, msg string) *E { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
