// internal/app/features/errors/errors.go
package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"go.uber.org/zap"
)

// Error codes used in JSON bodies besides the enrollment outcomes.
const (
	CodeBadRequest   = "bad_request"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeServerError  = "server_error"
)

// ErrorLogger logs handler failures with request context and writes the
// matching JSON error response.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{Log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if u, ok := auth.CurrentUser(r); ok && u != nil {
		fields = append(fields, zap.String("user_id", u.ID))
	}
	return fields
}

// LogServerError logs at Error and answers 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Error(msg, e.fields(r, err)...)
	WriteError(w, http.StatusInternalServerError, CodeServerError, userMsg)
}

// LogBadRequest logs at Info and answers 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Info(msg, e.fields(r, err)...)
	WriteError(w, http.StatusBadRequest, CodeBadRequest, userMsg)
}

// NotFound answers 404.
func (e *ErrorLogger) NotFound(w http.ResponseWriter, userMsg string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, userMsg)
}

// StatusFor maps an error to an HTTP status and a JSON error code.
//
//	InsufficientFunds          402
//	AlreadyEnrolled            409
//	CourseNotFound/UserNotFound 404
//	InvariantViolation         503 (the client may retry)
//	anything else              500
func StatusFor(err error) (int, string) {
	kind := enrollment.KindOf(err)
	switch {
	case kind == nil:
		return http.StatusInternalServerError, CodeServerError
	case stderrors.Is(kind, enrollment.ErrInsufficientFunds):
		return http.StatusPaymentRequired, enrollment.Outcome(err)
	case stderrors.Is(kind, enrollment.ErrAlreadyEnrolled):
		return http.StatusConflict, enrollment.Outcome(err)
	case stderrors.Is(kind, enrollment.ErrCourseNotFound),
		stderrors.Is(kind, enrollment.ErrUserNotFound):
		return http.StatusNotFound, enrollment.Outcome(err)
	case stderrors.Is(kind, enrollment.ErrInvariantViolation):
		return http.StatusServiceUnavailable, enrollment.Outcome(err)
	}
	return http.StatusInternalServerError, CodeServerError
}

// WriteEnrollmentError answers with the status of err's kind. Errors
// without a kind and invariant violations are logged at Error; the
// expected business rejections are not logged here.
func (e *ErrorLogger) WriteEnrollmentError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	detail := err.Error()
	if status >= http.StatusInternalServerError {
		e.Log.Error("request failed", e.fields(r, err)...)
		if status == http.StatusInternalServerError {
			detail = "An internal error occurred."
		}
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	WriteError(w, status, code, detail)
}
