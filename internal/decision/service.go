// Package decision implements the decision lifecycle: open, draft, confirmed
// and implemented, with a reopen loop from confirmed back to draft.
//
// Every mutation runs as one load, mutate, prepend-activity, save unit and is
// serialised behind a single process-wide mutex. Mutations are applied to a
// clone of the stored document, so a failed save leaves no trace.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/insurewright/onboarding/internal/store"
	"github.com/insurewright/onboarding/internal/types"
)

// Result is the uniform outcome of a lifecycle operation. Failures are
// reported here rather than returned as errors; Err carries the cause for
// callers that need to classify it.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

// FlagResult adds the flag value after a toggle.
type FlagResult struct {
	Result
	Flagged bool `json:"flagged"`
}

// Service owns every mutation of decision state.
type Service struct {
	store store.StateStore
	now   func() time.Time
	newID func() string

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how activity and comment ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService creates a Service backed by st.
func NewService(st store.StateStore, opts ...Option) *Service {
	s := &Service{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ErrFinalized is reported when an edit targets a confirmed or implemented decision.
var ErrFinalized = errors.New("decision is finalized")

// mutation edits one decision in place and describes the change.
type mutation func(d *types.DecisionState, now time.Time) types.ActivityEntry

// precondition inspects the stored decision before a mutation; a non-nil
// Result aborts the operation without saving.
type precondition func(d *types.DecisionState) *Result

func (s *Service) apply(ctx context.Context, id string, fn mutation) Result {
	return s.applyIf(ctx, id, nil, fn)
}

func (s *Service) applyIf(ctx context.Context, id string, check precondition, fn mutation) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return failure("Failed to load state", err)
	}
	current, ok := state.Decisions[id]
	if !ok {
		return failure(fmt.Sprintf("Decision %q not found", id), fmt.Errorf("%w: %s", store.ErrNotFound, id))
	}
	if check != nil {
		if res := check(current); res != nil {
			return *res
		}
	}

	next := state.Clone()
	now := s.now()
	entry := fn(next.Decisions[id], now)
	entry.ID = s.newID()
	entry.DecisionID = id
	entry.Timestamp = now
	next.Prepend(entry)

	if err := s.store.Save(ctx, next); err != nil {
		slog.Error("failed to save decision state",
			"component", "decision",
			"action", entry.Action,
			"decision_id", id,
			"error", err,
		)
		return failure("Failed to save state", err)
	}

	slog.Info("decision updated",
		"component", "decision",
		"action", entry.Action,
		"decision_id", id,
	)
	return Result{Success: true}
}

func failure(msg string, err error) Result {
	return Result{Success: false, Message: msg, Err: err}
}

// SaveAnswer stores answer and notes verbatim and moves the decision to draft.
// It does not check the current status; see SaveDraftAnswer.
func (s *Service) SaveAnswer(ctx context.Context, id string, answer types.Answer, notes string) Result {
	return s.apply(ctx, id, saveAnswer(answer, notes))
}

// SaveDraftAnswer is SaveAnswer for decisions that are not finalized. The status
// check and the write happen under the same lock, so a concurrent Confirm is
// never overwritten. A finalized decision yields a failure wrapping ErrFinalized.
func (s *Service) SaveDraftAnswer(ctx context.Context, id string, answer types.Answer, notes string) Result {
	return s.applyIf(ctx, id, notFinalized, saveAnswer(answer, notes))
}

func notFinalized(d *types.DecisionState) *Result {
	if !d.Status.Finalized() {
		return nil
	}
	res := failure(fmt.Sprintf("Decision %q is %s; reopen it before editing", d.DecisionID, d.Status),
		fmt.Errorf("%w: %s", ErrFinalized, d.DecisionID))
	return &res
}

func saveAnswer(answer types.Answer, notes string) mutation {
	return func(d *types.DecisionState, now time.Time) types.ActivityEntry {
		entry := stakeholderEntry()
		if d.Answer.IsNone() {
			entry.Action = types.ActionAnswerSaved
			entry.Summary = fmt.Sprintf("Answered %q", d.DecisionID)
		} else {
			entry.Action = types.ActionAnswerUpdated
			entry.Summary = fmt.Sprintf("Updated answer for %q", d.DecisionID)
			entry.PreviousValue = encodeAnswer(d.Answer)
		}
		entry.NewValue = encodeAnswer(answer)

		d.Answer = answer.Clone()
		d.Notes = notes
		d.Status = types.StatusDraft
		d.LastUpdatedAt = &now
		return entry
	}
}

// Confirm finalizes the decision. Pending edits must be saved first.
func (s *Service) Confirm(ctx context.Context, id string) Result {
	return s.apply(ctx, id, func(d *types.DecisionState, now time.Time) types.ActivityEntry {
		d.Status = types.StatusConfirmed
		d.ConfirmedAt = &now
		d.LastUpdatedAt = &now

		entry := stakeholderEntry()
		entry.Action = types.ActionAnswerConfirmed
		entry.Summary = fmt.Sprintf("Confirmed answer for %q", d.DecisionID)
		return entry
	})
}

// Reopen returns a decision to draft, keeping its answer and notes.
func (s *Service) Reopen(ctx context.Context, id string) Result {
	return s.apply(ctx, id, func(d *types.DecisionState, now time.Time) types.ActivityEntry {
		d.Status = types.StatusDraft
		d.ConfirmedAt = nil
		d.LastUpdatedAt = &now

		entry := stakeholderEntry()
		entry.Action = types.ActionStatusChanged
		entry.Summary = fmt.Sprintf("Reopened %q for editing", d.DecisionID)
		return entry
	})
}

// ToggleFlag flips the discussion flag and reports its new value.
func (s *Service) ToggleFlag(ctx context.Context, id string) FlagResult {
	var flagged bool
	res := s.apply(ctx, id, func(d *types.DecisionState, now time.Time) types.ActivityEntry {
		d.FlaggedForDiscussion = !d.FlaggedForDiscussion
		d.LastUpdatedAt = &now
		flagged = d.FlaggedForDiscussion

		entry := stakeholderEntry()
		if flagged {
			entry.Action = types.ActionFlagged
			entry.Summary = fmt.Sprintf("Flagged %q for discussion", d.DecisionID)
		} else {
			entry.Action = types.ActionUnflagged
			entry.Summary = fmt.Sprintf("Unflagged %q for discussion", d.DecisionID)
		}
		return entry
	})
	if !res.Success {
		flagged = false
	}
	return FlagResult{Result: res, Flagged: flagged}
}

// AddComment appends a comment by author. An invalid role is recorded as the stakeholder.
func (s *Service) AddComment(ctx context.Context, id, content string, author types.Role) Result {
	if !author.Valid() {
		author = types.RoleStakeholder
	}
	return s.apply(ctx, id, func(d *types.DecisionState, now time.Time) types.ActivityEntry {
		d.Comments = append(d.Comments, types.Comment{
			ID:         s.newID(),
			Author:     author,
			AuthorName: author.DisplayName(),
			Content:    content,
			CreatedAt:  now,
		})
		d.LastUpdatedAt = &now

		return types.ActivityEntry{
			Action:    types.ActionCommentAdded,
			Actor:     author,
			ActorName: author.DisplayName(),
			Summary:   fmt.Sprintf("Commented on %q", d.DecisionID),
		}
	})
}

// MarkImplemented records that the product team has built the decision.
func (s *Service) MarkImplemented(ctx context.Context, id string) Result {
	return s.apply(ctx, id, func(d *types.DecisionState, now time.Time) types.ActivityEntry {
		d.Status = types.StatusImplemented
		d.ImplementedAt = &now
		d.LastUpdatedAt = &now

		return types.ActivityEntry{
			Action:    types.ActionMarkedImplemented,
			Actor:     types.RoleTeam,
			ActorName: types.RoleTeam.DisplayName(),
			Summary:   fmt.Sprintf("Marked %q as implemented", d.DecisionID),
		}
	})
}

// State returns the current document. Callers must treat it as read-only.
func (s *Service) State(ctx context.Context) (*types.AppState, error) {
	return s.store.Load(ctx)
}

// Decision returns a copy of one decision's state.
func (s *Service) Decision(ctx context.Context, id string) (*types.DecisionState, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	d, ok := state.Decisions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return d.Clone(), nil
}

// ActivityFilter narrows an activity listing. Zero values mean no filter.
type ActivityFilter struct {
	DecisionID string
	Limit      int
}

// Activity returns log entries newest-first.
func (s *Service) Activity(ctx context.Context, f ActivityFilter) ([]types.ActivityEntry, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]types.ActivityEntry, 0, len(state.ActivityLog))
	for _, e := range state.ActivityLog {
		if f.DecisionID != "" && e.DecisionID != f.DecisionID {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// IsNotFound reports whether a result failed because the decision id is unknown.
func (r Result) IsNotFound() bool {
	return errors.Is(r.Err, store.ErrNotFound)
}

// IsFinalized reports whether a result failed because the decision is confirmed or implemented.
func (r Result) IsFinalized() bool {
	return errors.Is(r.Err, ErrFinalized)
}

func stakeholderEntry() types.ActivityEntry {
	return types.ActivityEntry{
		Actor:     types.RoleStakeholder,
		ActorName: types.RoleStakeholder.DisplayName(),
	}
}

func encodeAnswer(a types.Answer) string {
	data, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return string(data)
}
