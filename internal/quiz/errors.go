package quiz

import (
	"errors"
	"fmt"
)

// Kind is the machine readable category of a quiz error
type Kind string

const (
	KindEmptyTopic       Kind = "empty_topic"
	KindAttemptCompleted Kind = "attempt_completed"
	KindInvalidChoice    Kind = "invalid_choice"
	KindDuplicateAnswer  Kind = "duplicate_answer"
	KindNotFound         Kind = "not_found"
	KindUnauthenticated  Kind = "unauthenticated"
)

// Error is returned for every rejected quiz operation.
// errors.Is matches on Kind, so callers compare against the sentinels below.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrEmptyTopic       = &Error{Kind: KindEmptyTopic, Message: "topic has no questions"}
	ErrAttemptCompleted = &Error{Kind: KindAttemptCompleted, Message: "attempt is already completed"}
	ErrInvalidChoice    = &Error{Kind: KindInvalidChoice, Message: "choice does not belong to the question"}
	ErrDuplicateAnswer  = &Error{Kind: KindDuplicateAnswer, Message: "question was already answered"}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
)

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of a quiz error. ok is false for any other error.
func KindOf(err error) (Kind, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind, true
	}
	return "", false
}
