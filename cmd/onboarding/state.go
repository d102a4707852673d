package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/insurewright/onboarding/internal/catalog"
	"github.com/insurewright/onboarding/internal/config"
	"github.com/insurewright/onboarding/internal/decision"
	"github.com/insurewright/onboarding/internal/store"
)

// openStore opens the configured state backend for the catalog's decision ids.
func openStore(cfg *config.Config, cat *catalog.Catalog) (store.StateStore, error) {
	if cfg.State.Backend == config.BackendSQLite {
		st, err := store.NewSQLiteStore(cfg.State.DBPath, cat.IDs())
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	}
	return store.NewJSONFileStore(cfg.State.Path, cat.IDs()), nil
}

// offlineEnv is what the offline commands work against: the configured store
// and a decision service over it, without a running server.
type offlineEnv struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	store   store.StateStore
	service *decision.Service
}

// openOffline loads configuration and opens the state store.
// The caller must Close the returned env.
func openOffline() (*offlineEnv, error) {
	cfg, err := config.LoadOffline()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cat := catalog.Default()
	st, err := openStore(cfg, cat)
	if err != nil {
		return nil, err
	}
	return &offlineEnv{
		cfg:     cfg,
		catalog: cat,
		store:   st,
		service: decision.NewService(st),
	}, nil
}

func (e *offlineEnv) Close() error {
	return e.store.Close()
}

// definition resolves a decision id against the catalog.
func (e *offlineEnv) definition(id string) (catalog.Definition, error) {
	def, ok := e.catalog.Decision(id)
	if !ok {
		return catalog.Definition{}, fmt.Errorf("decision %q not found", id)
	}
	return def, nil
}

// resultError turns a failed lifecycle result into an error.
func resultError(res decision.Result) error {
	if res.Success {
		return nil
	}
	if res.Err != nil {
		return fmt.Errorf("%s: %w", res.Message, res.Err)
	}
	return errors.New(res.Message)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
