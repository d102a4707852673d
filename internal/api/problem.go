package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/insurewright/onboarding/internal/export"
	"github.com/insurewright/onboarding/internal/snapshot"
	"github.com/insurewright/onboarding/internal/store"
	"github.com/insurewright/onboarding/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

const problemBase = "https://onboarding.insurewright.dev/errors/"

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]problemType{
	http.StatusBadRequest:          {problemBase + "bad-request", "Bad Request"},
	http.StatusUnauthorized:        {problemBase + "unauthorized", "Unauthorized"},
	http.StatusNotFound:            {problemBase + "not-found", "Not Found"},
	http.StatusConflict:            {problemBase + "conflict", "Conflict"},
	http.StatusUnprocessableEntity: {problemBase + "validation-error", "Validation Error"},
	http.StatusInternalServerError: {problemBase + "internal-error", "Internal Server Error"},
	http.StatusNotImplemented:      {problemBase + "not-implemented", "Not Implemented"},
	http.StatusBadGateway:          {problemBase + "bad-gateway", "Bad Gateway"},
	http.StatusServiceUnavailable:  {problemBase + "service-unavailable", "Service Unavailable"},
}

func lookupProblemType(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{typeURI: problemBase + "unknown", title: http.StatusText(status)}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := lookupProblemType(status)
	writeProblemBody(w, status, Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := lookupProblemType(http.StatusUnprocessableEntity)
	writeProblemBody(w, http.StatusUnprocessableEntity, ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	})
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// MapStoreError converts domain errors to Problem Details responses.
func MapStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Decision not found")
	case errors.Is(err, snapshot.ErrNotConfigured):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Backup storage is not configured")
	case errors.Is(err, export.ErrRemote):
		WriteProblem(w, r, http.StatusBadGateway, "Extraction engine unavailable")
	default:
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
