// internal/app/enrollment/errors.go
package enrollment

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// Error kinds returned by the workflow and by the stores that implement
// its ports. Test with errors.Is.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAlreadyEnrolled    = errors.New("already enrolled")
	ErrCourseNotFound     = errors.New("course not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvariantViolation = errors.New("invariant violation")
)

var kinds = []error{
	ErrInsufficientFunds,
	ErrAlreadyEnrolled,
	ErrCourseNotFound,
	ErrUserNotFound,
	ErrInvariantViolation,
}

// Error attaches the failing operation and the underlying cause to a kind.
// errors.Is matches Kind through Is; the cause stays on the single Unwrap
// chain so code that walks it with errors.Unwrap (the driver's
// transaction retry labels) still reaches the server error.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Err != nil && e.Err != e.Kind && !strings.Contains(e.Err.Error(), e.Kind.Error()) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func newError(op string, kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind err belongs to, or nil when it is not one of the
// workflow's kinds (infrastructure failures, cancellation).
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Outcome names the result of a pay attempt for logs, metrics and API
// error codes.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch KindOf(err) {
	case ErrInsufficientFunds:
		return "insufficient_funds"
	case ErrAlreadyEnrolled:
		return "already_enrolled"
	case ErrCourseNotFound:
		return "course_not_found"
	case ErrUserNotFound:
		return "user_not_found"
	case ErrInvariantViolation:
		return "invariant_violation"
	}
	return "error"
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
