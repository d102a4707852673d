package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/insurewright/onboarding/internal/snapshot"
	"github.com/insurewright/onboarding/internal/types"
)

// StateSource provides the current state document.
// This interface allows testing with mock implementations.
type StateSource interface {
	State(ctx context.Context) (*types.AppState, error)
}

// BackupWorker periodically uploads the state document to snapshot storage.
type BackupWorker struct {
	source   StateSource
	uploader snapshot.Uploader
	prefix   string
	interval time.Duration
	now      func() time.Time

	// lastSaved is the LastSavedAt of the most recently uploaded document.
	lastSaved time.Time
}

// NewBackupWorker creates a worker that uploads the document from source
// every interval, below prefix.
func NewBackupWorker(
	source StateSource,
	uploader snapshot.Uploader,
	prefix string,
	interval time.Duration,
) *BackupWorker {
	return &BackupWorker{
		source:   source,
		uploader: uploader,
		prefix:   prefix,
		interval: interval,
		now:      time.Now,
	}
}

// Run starts the backup loop. It returns when ctx is cancelled.
func (w *BackupWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "state-backup",
		"action", "worker_started",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Back up immediately on start
	w.backup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "state-backup",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.backup(ctx)
		}
	}
}

// backup uploads the document unless it is unchanged since the last upload.
// Returns true if an upload happened.
func (w *BackupWorker) backup(ctx context.Context) bool {
	state, err := w.source.State(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		slog.Warn("failed to load state for backup",
			"component", "worker",
			"worker", "state-backup",
			"action", "backup_failed",
			"error", err,
		)
		return false
	}

	if !w.lastSaved.IsZero() && state.LastSavedAt.Equal(w.lastSaved) {
		slog.Debug("state unchanged, skipping backup",
			"component", "worker",
			"worker", "state-backup",
			"action", "backup_skipped",
			"last_saved_at", state.LastSavedAt,
		)
		return false
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		slog.Error("failed to encode state for backup",
			"component", "worker",
			"worker", "state-backup",
			"action", "backup_failed",
			"error", err,
		)
		return false
	}

	b, err := snapshot.UploadState(ctx, w.uploader, w.prefix, data, w.now())
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		// Not fatal: the local document is still the source of truth.
		slog.Warn("state backup upload failed",
			"component", "worker",
			"worker", "state-backup",
			"action", "backup_failed",
			"error", err,
		)
		return false
	}

	w.lastSaved = state.LastSavedAt
	slog.Info("state backed up",
		"component", "worker",
		"worker", "state-backup",
		"action", "backup_uploaded",
		"key", b.Key,
		"size", b.Size,
	)
	return true
}
