package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/insurewright/onboarding/internal/export"
	"github.com/insurewright/onboarding/internal/snapshot"
)

// ExportJSON handles GET /api/v1/export.json.
func (h *Handler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	state, err := h.decisions.State(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	data, err := json.MarshalIndent(export.BuildProjection(h.catalog, state), "", "  ")
	if err != nil {
		slog.Error("failed to encode export", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeDownload(w, "application/json", export.Filename("json", h.now()), data)
}

// ExportMarkdown handles GET /api/v1/export.md.
func (h *Handler) ExportMarkdown(w http.ResponseWriter, r *http.Request) {
	state, err := h.decisions.State(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	now := h.now()
	md := export.RenderMarkdown(export.BuildProjection(h.catalog, state), now)
	writeDownload(w, "text/markdown; charset=utf-8", export.Filename("md", now), []byte(md))
}

func writeDownload(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write download", "component", "api", "filename", filename, "error", err)
	}
}

// Publish handles POST /api/v1/publish. The result body is returned on both
// success and failure; a failed publish answers 502.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	state, err := h.decisions.State(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	res := h.publisher.Publish(r.Context(), export.BuildProjection(h.catalog, state))
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

// BackupResponse is the body of POST /api/v1/state/backup.
type BackupResponse struct {
	Success bool             `json:"success"`
	Backup  *snapshot.Backup `json:"backup,omitempty"`
	URL     string           `json:"url,omitempty"`
}

// Backup handles POST /api/v1/state/backup.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	state, err := h.decisions.State(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		slog.Error("failed to encode state", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	b, err := snapshot.UploadState(r.Context(), h.uploader, h.backupPrefix, data, h.now())
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotConfigured) {
			slog.Error("state backup failed", "component", "snapshot", "error", err)
			WriteProblem(w, r, http.StatusBadGateway, "Backup upload failed")
			return
		}
		MapStoreError(w, r, err)
		return
	}

	resp := BackupResponse{Success: true, Backup: b}
	if url, _, err := h.uploader.PresignedURL(r.Context(), b.Key); err == nil {
		resp.URL = url
	} else {
		slog.Warn("failed to presign backup URL", "component", "snapshot", "key", b.Key, "error", err)
	}
	slog.Info("state backed up", "component", "snapshot", "key", b.Key, "size", b.Size)
	writeJSON(w, http.StatusOK, resp)
}
