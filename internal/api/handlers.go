package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/insurewright/onboarding/internal/auth"
	"github.com/insurewright/onboarding/internal/catalog"
	"github.com/insurewright/onboarding/internal/decision"
	"github.com/insurewright/onboarding/internal/export"
	"github.com/insurewright/onboarding/internal/snapshot"
	"github.com/insurewright/onboarding/internal/types"
)

// Publisher sends an export projection to the extraction engine.
type Publisher interface {
	Publish(ctx context.Context, projection []export.CategoryExport) export.PublishResult
}

// Deps are the collaborators a Handler needs.
type Deps struct {
	Catalog      *catalog.Catalog
	Decisions    *decision.Service
	PINs         *auth.PINVerifier
	Sessions     *auth.Sessions
	Publisher    Publisher
	Uploader     snapshot.Uploader
	BackupPrefix string
	CookieSecure bool
	Version      string
	Now          func() time.Time
}

// Handler implements the API handlers
type Handler struct {
	catalog      *catalog.Catalog
	decisions    *decision.Service
	pins         *auth.PINVerifier
	sessions     *auth.Sessions
	publisher    Publisher
	uploader     snapshot.Uploader
	backupPrefix string
	cookieSecure bool
	version      string
	now          func() time.Time
}

// NewHandler creates a Handler from deps. A nil uploader disables backups.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		catalog:      d.Catalog,
		decisions:    d.Decisions,
		pins:         d.PINs,
		sessions:     d.Sessions,
		publisher:    d.Publisher,
		uploader:     d.Uploader,
		backupPrefix: d.BackupPrefix,
		cookieSecure: d.CookieSecure,
		version:      d.Version,
		now:          d.Now,
	}
	if h.uploader == nil {
		h.uploader = &snapshot.NoopUploader{}
	}
	if h.backupPrefix == "" {
		h.backupPrefix = "state"
	}
	if h.now == nil {
		h.now = func() time.Time { return time.Now().UTC() }
	}
	return h
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	DecisionCount int       `json:"decisionCount"`
	LastSavedAt   time.Time `json:"lastSavedAt"`
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state, err := h.decisions.State(r.Context())
	if err != nil {
		slog.Error("health check failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "State storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		DecisionCount: h.catalog.Len(),
		LastSavedAt:   state.LastSavedAt,
	})
}

type loginRequest struct {
	PIN string `json:"pin"`
}

type loginResponse struct {
	Success bool `json:"success"`
}

// Login handles POST /api/v1/login. It accepts a JSON body or a form field.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		req.PIN = r.PostFormValue("pin")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.pins.Verify(req.PIN); err != nil {
		slog.Warn("login rejected", "component", "auth", "remote_ip", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, loginResponse{Success: false})
		return
	}

	token, expires, err := h.sessions.Issue()
	if err != nil {
		slog.Error("failed to issue session", "component", "auth", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	http.SetCookie(w, h.sessions.Cookie(token, expires, h.cookieSecure))
	slog.Info("login", "component", "auth", "expires_at", expires)
	writeJSON(w, http.StatusOK, loginResponse{Success: true})
}

// Logout handles POST /api/v1/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearCookie(h.cookieSecure))
	writeJSON(w, http.StatusOK, loginResponse{Success: true})
}

// CatalogResponse lists every category and definition in display order.
type CatalogResponse struct {
	Categories []catalog.Category   `json:"categories"`
	Decisions  []catalog.Definition `json:"decisions"`
}

// Catalog handles GET /api/v1/catalog.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CatalogResponse{
		Categories: h.catalog.Categories(),
		Decisions:  h.catalog.Decisions(),
	})
}

// CategoryResponse is one category with its definitions, states and progress.
type CategoryResponse struct {
	Category  catalog.Category   `json:"category"`
	Decisions []DecisionResponse `json:"decisions"`
	Stats     types.Stats        `json:"stats"`
}

// Category handles GET /api/v1/categories/{slug}.
func (h *Handler) Category(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	cat, ok := h.catalog.Category(slug)
	if !ok {
		WriteProblem(w, r, http.StatusNotFound, "Category \""+slug+"\" not found")
		return
	}

	state, err := h.decisions.State(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	defs := h.catalog.DecisionsIn(slug)
	ids := make([]string, len(defs))
	out := make([]DecisionResponse, len(defs))
	for i, def := range defs {
		ids[i] = def.ID
		out[i] = decisionResponse(def, state)
	}

	writeJSON(w, http.StatusOK, CategoryResponse{
		Category:  cat,
		Decisions: out,
		Stats:     types.ComputeStats(ids, state),
	})
}

// writeJSON writes body as JSON with status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
