// Package store persists the decision state document.
//
// Two backends satisfy StateStore: JSONFileStore writes a single JSON document
// to disk, and SQLiteStore keeps the same document in SQLite keyed by decision
// id. Both keep a process-local cache that is populated on first Load and
// replaced on every successful Save.
package store

import (
	"context"
	"time"

	"github.com/insurewright/onboarding/internal/types"
)

// StateStore defines the contract for loading and saving the state document.
//
// Load returns the cached document when one is present. Callers that intend
// to mutate must Clone it first and hand the clone to Save; the cache is only
// replaced once the write succeeds.
type StateStore interface {
	Load(ctx context.Context) (*types.AppState, error)
	Save(ctx context.Context, state *types.AppState) error
	Path() string
	Close() error
}

// Invalidator is implemented by stores whose cache can be dropped when the
// backing document changes underneath them.
type Invalidator interface {
	Invalidate()
}

type options struct {
	now func() time.Time
}

// Option configures a store.
type Option func(*options)

// WithClock overrides the clock used for lastSavedAt and the initial document.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
