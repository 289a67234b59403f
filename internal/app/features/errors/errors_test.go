package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{enrollment.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
		{fmt.Errorf("enroll: %w", enrollment.ErrAlreadyEnrolled), http.StatusConflict, "already_enrolled"},
		{enrollment.ErrCourseNotFound, http.StatusNotFound, "course_not_found"},
		{enrollment.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
		{enrollment.ErrInvariantViolation, http.StatusServiceUnavailable, "invariant_violation"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, CodeServerError},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			status, code := StatusFor(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("StatusFor(%v) = %d %q, want %d %q", tt.err, status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestWriteEnrollmentError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	el := NewErrorLogger(zap.New(core))

	rec := httptest.NewRecorder()
	el.WriteEnrollmentError(rec, httptest.NewRequest("POST", "/courses/x/pay", nil), enrollment.ErrInsufficientFunds)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	var body Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "insufficient_funds" || body.Detail == "" {
		t.Errorf("body = %+v", body)
	}
	if logs.Len() != 0 {
		t.Error("business rejections should not be logged")
	}

	rec = httptest.NewRecorder()
	el.WriteEnrollmentError(rec, httptest.NewRequest("POST", "/courses/x/pay", nil), fmt.Errorf("socket closed"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if rec.Body.String() == "" || logs.Len() != 1 {
		t.Errorf("expected logged 500, logs=%d", logs.Len())
	}

	rec = httptest.NewRecorder()
	el.WriteEnrollmentError(rec, httptest.NewRequest("POST", "/courses/x/pay", nil), enrollment.ErrInvariantViolation)
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Errorf("invariant: status=%d retry-after=%q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestLogHelpers(t *testing.T) {
	el := NewErrorLogger(nil)

	rec := httptest.NewRecorder()
	el.LogBadRequest(rec, httptest.NewRequest("POST", "/", nil), "decode failed", fmt.Errorf("eof"), "Invalid JSON body.")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	el.LogServerError(rec, httptest.NewRequest("GET", "/", nil), "db failed", fmt.Errorf("down"), "A database error occurred.")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("server error status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
}
