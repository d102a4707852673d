package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/insurewright/onboarding/internal/catalog"
	"github.com/insurewright/onboarding/internal/decision"
	"github.com/insurewright/onboarding/internal/types"
	"github.com/insurewright/onboarding/internal/validation"
)

// defaultActivityLimit applies when no limit is given; limit=0 returns the whole log.
const defaultActivityLimit = 50

// DecisionResponse pairs a definition with its current state.
type DecisionResponse struct {
	Definition catalog.Definition   `json:"definition"`
	State      *types.DecisionState `json:"state"`
}

func decisionResponse(def catalog.Definition, state *types.AppState) DecisionResponse {
	d, ok := state.Decisions[def.ID]
	if !ok {
		d = types.NewDecisionState(def.ID)
	}
	return DecisionResponse{Definition: def, State: d}
}

// DecisionsResponse is the body of GET /api/v1/decisions.
type DecisionsResponse struct {
	Decisions   map[string]*types.DecisionState `json:"decisions"`
	Stats       types.Stats                     `json:"stats"`
	LastSavedAt time.Time                       `json:"lastSavedAt"`
}

// ListDecisions handles GET /api/v1/decisions. The optional status query
// parameter narrows the map.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	state, err := h.decisions.State(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	status := types.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Unknown status %q", status))
		return
	}

	out := make(map[string]*types.DecisionState, len(state.Decisions))
	for _, id := range h.catalog.IDs() {
		d, ok := state.Decisions[id]
		if !ok || (status != "" && d.Status != status) {
			continue
		}
		out[id] = d
	}

	writeJSON(w, http.StatusOK, DecisionsResponse{
		Decisions:   out,
		Stats:       types.ComputeStats(h.catalog.IDs(), state),
		LastSavedAt: state.LastSavedAt,
	})
}

// GetDecision handles GET /api/v1/decisions/{id}.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	def := MustDefinitionFromContext(r.Context())

	d, err := h.decisions.Decision(r.Context(), def.ID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DecisionResponse{Definition: def, State: d})
}

type saveAnswerRequest struct {
	Answer types.Answer `json:"answer"`
	Notes  string       `json:"notes"`
}

// SaveAnswer handles PUT /api/v1/decisions/{id}/answer. Finalized decisions
// must be reopened before they can be edited.
func (h *Handler) SaveAnswer(w http.ResponseWriter, r *http.Request) {
	def := MustDefinitionFromContext(r.Context())

	var req saveAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, types.ErrInvalidAnswer) {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
				{Field: "answer", Message: err.Error()},
			})
			return
		}
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	errs := append(validation.ValidateAnswer(def, req.Answer), validation.ValidateNotes(req.Notes)...)
	if len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	res := h.decisions.SaveDraftAnswer(r.Context(), def.ID, req.Answer, req.Notes)
	if res.IsFinalized() {
		WriteProblem(w, r, http.StatusConflict, res.Message)
		return
	}
	writeResult(w, res)
}

// Confirm handles POST /api/v1/decisions/{id}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	def := MustDefinitionFromContext(r.Context())
	writeResult(w, h.decisions.Confirm(r.Context(), def.ID))
}

// Reopen handles POST /api/v1/decisions/{id}/reopen.
func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	def := MustDefinitionFromContext(r.Context())
	writeResult(w, h.decisions.Reopen(r.Context(), def.ID))
}

// ToggleFlag handles POST /api/v1/decisions/{id}/flag.
func (h *Handler) ToggleFlag(w http.ResponseWriter, r *http.Request) {
	def := MustDefinitionFromContext(r.Context())
	res := h.decisions.ToggleFlag(r.Context(), def.ID)
	writeJSON(w, resultStatus(res.Result), res)
}

type commentRequest struct {
	Content string     `json:"content"`
	Author  types.Role `json:"author"`
}

// AddComment handles POST /api/v1/decisions/{id}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	def := MustDefinitionFromContext(r.Context())

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := validation.ValidateComment(req.Content, req.Author); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	writeResult(w, h.decisions.AddComment(r.Context(), def.ID, req.Content, req.Author))
}

// MarkImplemented handles POST /api/v1/decisions/{id}/implement.
func (h *Handler) MarkImplemented(w http.ResponseWriter, r *http.Request) {
	def := MustDefinitionFromContext(r.Context())
	writeResult(w, h.decisions.MarkImplemented(r.Context(), def.ID))
}

// UploadAttachment handles POST /api/v1/decisions/{id}/attachments.
// File uploads are not supported.
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	WriteProblem(w, r, http.StatusNotImplemented, "File uploads are not supported")
}

// ActivityResponse is the body of GET /api/v1/activity.
type ActivityResponse struct {
	Entries []types.ActivityEntry `json:"entries"`
}

// Activity handles GET /api/v1/activity?limit=&decision=. The log is never
// truncated; limit=0 lists every entry.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultActivityLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteProblem(w, r, http.StatusBadRequest, "limit must be a non-negative integer (0 for all)")
			return
		}
		limit = n
	}

	decisionID := q.Get("decision")
	if decisionID != "" {
		if _, ok := h.catalog.Decision(decisionID); !ok {
			WriteProblem(w, r, http.StatusNotFound, fmt.Sprintf("Decision %q not found", decisionID))
			return
		}
	}

	entries, err := h.decisions.Activity(r.Context(), decision.ActivityFilter{
		DecisionID: decisionID,
		Limit:      limit,
	})
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityResponse{Entries: entries})
}

// writeResult writes a lifecycle result with a status that matches its outcome.
func writeResult(w http.ResponseWriter, res decision.Result) {
	writeJSON(w, resultStatus(res), res)
}

func resultStatus(res decision.Result) int {
	switch {
	case res.Success:
		return http.StatusOK
	case res.IsNotFound():
		return http.StatusNotFound
	case res.IsFinalized():
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
