package types

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle position of a single decision.
type Status string

const (
	StatusOpen        Status = "open"
	StatusDraft       Status = "draft"
	StatusConfirmed   Status = "confirmed"
	StatusImplemented Status = "implemented"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusDraft, StatusConfirmed, StatusImplemented:
		return true
	}
	return false
}

// Finalized reports whether the answer is locked for the stakeholder.
func (s Status) Finalized() bool {
	return s == StatusConfirmed || s == StatusImplemented
}

// InputType tags how a decision is answered.
type InputType string

const (
	InputFreeText     InputType = "free_text"
	InputRichText     InputType = "rich_text"
	InputSingleSelect InputType = "single_select"
	InputMultiSelect  InputType = "multi_select"
	InputNumeric      InputType = "numeric"
	InputYesNo        InputType = "yes_no"
	InputFileUpload   InputType = "file_upload"
	InputDataTable    InputType = "data_table"
)

// Valid reports whether t is one of the known input types.
func (t InputType) Valid() bool {
	switch t {
	case InputFreeText, InputRichText, InputSingleSelect, InputMultiSelect,
		InputNumeric, InputYesNo, InputFileUpload, InputDataTable:
		return true
	}
	return false
}

// Role identifies who performed an action. There are exactly two.
type Role string

const (
	RoleStakeholder Role = "neil"
	RoleTeam        Role = "team"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStakeholder || r == RoleTeam
}

// DisplayName returns the human-readable name recorded alongside the role.
func (r Role) DisplayName() string {
	if r == RoleTeam {
		return "Product Team"
	}
	return "Neil"
}

// Action tags an activity log entry.
type Action string

const (
	ActionAnswerSaved       Action = "answer_saved"
	ActionAnswerConfirmed   Action = "answer_confirmed"
	ActionAnswerUpdated     Action = "answer_updated"
	ActionStatusChanged     Action = "status_changed"
	ActionCommentAdded      Action = "comment_added"
	ActionFileUploaded      Action = "file_uploaded"
	ActionFileRemoved       Action = "file_removed"
	ActionFlagged           Action = "flagged"
	ActionUnflagged         Action = "unflagged"
	ActionMarkedImplemented Action = "marked_implemented"
)

// Attachment describes an uploaded file. Uploads are disabled, so the list stays empty.
type Attachment struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	MimeType    string    `json:"mimeType"`
	UploadedAt  time.Time `json:"uploadedAt"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
}

// Comment is an append-only note on a decision.
type Comment struct {
	ID         string    `json:"id"`
	Author     Role      `json:"author"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DecisionState is the mutable half of a decision: one per catalog definition.
type DecisionState struct {
	DecisionID           string       `json:"decisionId"`
	Status               Status       `json:"status"`
	Answer               Answer       `json:"answer"`
	Notes                string       `json:"notes"`
	Attachments          []Attachment `json:"attachments"`
	Comments             []Comment    `json:"comments"`
	FlaggedForDiscussion bool         `json:"flaggedForDiscussion"`
	LastUpdatedAt        *time.Time   `json:"lastUpdatedAt"`
	ConfirmedAt          *time.Time   `json:"confirmedAt"`
	ImplementedAt        *time.Time   `json:"implementedAt"`
}

// NewDecisionState returns the empty state every decision starts from.
func NewDecisionState(decisionID string) *DecisionState {
	return &DecisionState{
		DecisionID:  decisionID,
		Status:      StatusOpen,
		Answer:      NoAnswer(),
		Attachments: []Attachment{},
		Comments:    []Comment{},
	}
}

// Clone returns a deep copy of the state.
func (d *DecisionState) Clone() *DecisionState {
	c := *d
	c.Answer = d.Answer.Clone()
	c.Attachments = append([]Attachment{}, d.Attachments...)
	c.Comments = append([]Comment{}, d.Comments...)
	c.LastUpdatedAt = cloneTime(d.LastUpdatedAt)
	c.ConfirmedAt = cloneTime(d.ConfirmedAt)
	c.ImplementedAt = cloneTime(d.ImplementedAt)
	return &c
}

// MarshalJSON ensures nil slices in DecisionState marshal as [] not null.
func (d DecisionState) MarshalJSON() ([]byte, error) {
	if d.Attachments == nil {
		d.Attachments = []Attachment{}
	}
	if d.Comments == nil {
		d.Comments = []Comment{}
	}
	type Alias DecisionState
	return json.Marshal(Alias(d))
}

// ActivityEntry is an immutable record of one mutation.
type ActivityEntry struct {
	ID            string    `json:"id"`
	DecisionID    string    `json:"decisionId"`
	Action        Action    `json:"action"`
	Actor         Role      `json:"actor"`
	ActorName     string    `json:"actorName"`
	Summary       string    `json:"summary"`
	Timestamp     time.Time `json:"timestamp"`
	PreviousValue string    `json:"previousValue,omitempty"`
	NewValue      string    `json:"newValue,omitempty"`
}

// CurrentVersion is the document format version written by this build.
const CurrentVersion = 1

// AppState is the whole persisted document.
type AppState struct {
	Version     int                       `json:"version"`
	LastSavedAt time.Time                 `json:"lastSavedAt"`
	Decisions   map[string]*DecisionState `json:"decisions"`
	ActivityLog []ActivityEntry           `json:"activityLog"`
}

// NewAppState materialises an empty state for every decision id.
func NewAppState(ids []string, now time.Time) *AppState {
	s := &AppState{
		Version:     CurrentVersion,
		LastSavedAt: now,
		Decisions:   make(map[string]*DecisionState, len(ids)),
		ActivityLog: []ActivityEntry{},
	}
	for _, id := range ids {
		s.Decisions[id] = NewDecisionState(id)
	}
	return s
}

// Heal adds an empty state for every id that has none. Orphaned states are kept.
// It reports whether anything was added.
func (s *AppState) Heal(ids []string) bool {
	if s.Decisions == nil {
		s.Decisions = make(map[string]*DecisionState, len(ids))
	}
	if s.ActivityLog == nil {
		s.ActivityLog = []ActivityEntry{}
	}
	added := false
	for _, id := range ids {
		if _, ok := s.Decisions[id]; !ok {
			s.Decisions[id] = NewDecisionState(id)
			added = true
		}
	}
	return added
}

// Prepend puts entry at the head of the activity log, keeping it newest-first.
func (s *AppState) Prepend(entry ActivityEntry) {
	s.ActivityLog = append([]ActivityEntry{entry}, s.ActivityLog...)
}

// Clone returns a deep copy so callers can mutate without touching a cached document.
func (s *AppState) Clone() *AppState {
	c := &AppState{
		Version:     s.Version,
		LastSavedAt: s.LastSavedAt,
		Decisions:   make(map[string]*DecisionState, len(s.Decisions)),
		ActivityLog: append([]ActivityEntry{}, s.ActivityLog...),
	}
	for id, d := range s.Decisions {
		c.Decisions[id] = d.Clone()
	}
	return c
}

// Stats summarises progress across a set of decision ids.
type Stats struct {
	Total     int `json:"total"`
	Answered  int `json:"answered"`
	Confirmed int `json:"confirmed"`
	Draft     int `json:"draft"`
	Remaining int `json:"remaining"`
	Flagged   int `json:"flagged"`
}

// ComputeStats counts over ids; a missing state counts as open.
// Confirmed includes implemented decisions.
func ComputeStats(ids []string, s *AppState) Stats {
	st := Stats{Total: len(ids)}
	for _, id := range ids {
		d, ok := s.Decisions[id]
		if !ok {
			continue
		}
		if d.Status != StatusOpen {
			st.Answered++
		}
		if d.Status.Finalized() {
			st.Confirmed++
		}
		if d.FlaggedForDiscussion {
			st.Flagged++
		}
	}
	st.Draft = st.Answered - st.Confirmed
	st.Remaining = st.Total - st.Confirmed
	return st
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
