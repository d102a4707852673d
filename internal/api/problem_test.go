package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/insurewright/onboarding/internal/export"
	"github.com/insurewright/onboarding/internal/snapshot"
	"github.com/insurewright/onboarding/internal/store"
	"github.com/insurewright/onboarding/internal/validation"
)

func TestWriteProblem(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/decisions/ABR-001", nil)
	w := httptest.NewRecorder()

	WriteProblem(w, req, http.StatusConflict, "Decision is confirmed")

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var p Problem
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Problem{
		Type:     "https://onboarding.insurewright.dev/errors/conflict",
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   "Decision is confirmed",
		Instance: "/api/v1/decisions/ABR-001",
	}
	if p != want {
		t.Errorf("problem = %+v\nwant    %+v", p, want)
	}
}

func TestWriteProblem_Types(t *testing.T) {
	tests := []struct {
		status int
		suffix string
	}{
		{http.StatusBadRequest, "bad-request"},
		{http.StatusUnauthorized, "unauthorized"},
		{http.StatusNotFound, "not-found"},
		{http.StatusUnprocessableEntity, "validation-error"},
		{http.StatusNotImplemented, "not-implemented"},
		{http.StatusBadGateway, "bad-gateway"},
		{http.StatusServiceUnavailable, "service-unavailable"},
		{http.StatusTeapot, "unknown"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteProblem(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.status, "x")

			var p Problem
			json.NewDecoder(w.Body).Decode(&p)
			if !strings.HasSuffix(p.Type, "/errors/"+tt.suffix) {
				t.Errorf("Type = %q, want suffix %q", p.Type, tt.suffix)
			}
			if p.Title == "" {
				t.Error("Title should not be empty")
			}
		})
	}
}

func TestWriteProblemWithErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/decisions/ABR-001/answer", nil)
	w := httptest.NewRecorder()

	WriteProblemWithErrors(w, req, "Request contains invalid fields", []validation.ValidationError{
		{Field: "answer", Message: "must be one of: a, b"},
		{Field: "notes", Message: "must not contain null bytes"},
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	var p ProblemWithErrors
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Status != http.StatusUnprocessableEntity || p.Title != "Validation Error" {
		t.Errorf("problem = %+v", p.Problem)
	}
	if len(p.Errors) != 2 || p.Errors[1].Field != "notes" {
		t.Errorf("errors = %+v", p.Errors)
	}
}

func TestMapStoreError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"not found", fmt.Errorf("%w: ABR-999", store.ErrNotFound), http.StatusNotFound, "Decision not found"},
		{"backups off", snapshot.ErrNotConfigured, http.StatusServiceUnavailable, "Backup storage is not configured"},
		{"remote", fmt.Errorf("%w: 500", export.ErrRemote), http.StatusBadGateway, "Extraction engine unavailable"},
		{"storage", fmt.Errorf("%w: disk full at /var/data", store.ErrStorage), http.StatusInternalServerError, "Internal Server Error"},
		{"unknown", errors.New("sql: connection refused 10.0.0.3"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			MapStoreError(w, httptest.NewRequest(http.MethodGet, "/api/v1/decisions", nil), tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var p Problem
			if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if p.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", p.Detail, tt.wantDetail)
			}
			if strings.Contains(w.Body.String(), "10.0.0.3") || strings.Contains(w.Body.String(), "/var/data") {
				t.Error("internal error details leaked")
			}
		})
	}
}
