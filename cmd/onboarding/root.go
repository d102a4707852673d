package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/insurewright/onboarding/internal/api"
	"github.com/insurewright/onboarding/internal/auth"
	"github.com/insurewright/onboarding/internal/catalog"
	"github.com/insurewright/onboarding/internal/config"
	"github.com/insurewright/onboarding/internal/decision"
	"github.com/insurewright/onboarding/internal/export"
	"github.com/insurewright/onboarding/internal/snapshot"
	"github.com/insurewright/onboarding/internal/store"
	"github.com/insurewright/onboarding/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:          "onboarding",
	Short:        "InsureWright onboarding - stakeholder decision portal",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the decision portal HTTP API",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decisionsCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(pinCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))
	slog.Info("logger initialized", "level", cfg.Log.Level, "dev_mode", cfg.DevMode)

	// 4. Initialize state store
	cat := catalog.Default()
	st, err := openStore(cfg, cat)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "backend", cfg.State.Backend, "path", st.Path())

	// 5. Collaborators
	sessions, err := auth.NewSessions(cfg.Auth.SessionSecret, time.Duration(cfg.Auth.SessionTTL))
	if err != nil {
		return err
	}
	slog.Info("sessions initialized", "ttl", sessions.TTL().String())
	uploader, err := snapshot.NewUploader(cfg.SnapshotStorage)
	if err != nil {
		return err
	}
	if cfg.SnapshotsEnabled() {
		slog.Info("snapshot storage enabled", "bucket", cfg.SnapshotStorage.Bucket)
	}
	publisher := export.NewPublisher(cfg.Publish.BaseURL, time.Duration(cfg.Publish.Timeout), nil)
	slog.Info("publisher initialized", "endpoint", publisher.Endpoint())

	// 6. Initialize HTTP router
	decisions := decision.NewService(st)
	handler := api.NewHandler(api.Deps{
		Catalog:      cat,
		Decisions:    decisions,
		PINs:         auth.NewPINVerifier(cfg.Auth.PIN),
		Sessions:     sessions,
		Publisher:    publisher,
		Uploader:     uploader,
		BackupPrefix: cfg.SnapshotStorage.Prefix,
		CookieSecure: cfg.Auth.CookieSecure,
		Version:      Version,
	})
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 7. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 8. Background workers
	var wg sync.WaitGroup
	if js, ok := st.(*store.JSONFileStore); ok && cfg.State.Watch {
		w, err := store.NewWatcher(js, func() {
			slog.Info("state file changed externally, cache dropped", "path", js.Path())
		})
		if err != nil {
			return fmt.Errorf("watch state file: %w", err)
		}
		startWorker(ctx, &wg, "state-watcher", func(ctx context.Context) {
			<-ctx.Done()
			if err := w.Close(); err != nil {
				slog.Error("watcher close error", "error", err)
			}
		})
	}
	if cfg.SnapshotsEnabled() && cfg.SnapshotStorage.Interval > 0 {
		bw := worker.NewBackupWorker(decisions, uploader,
			cfg.SnapshotStorage.Prefix, time.Duration(cfg.SnapshotStorage.Interval))
		startWorker(ctx, &wg, "state-backup", bw.Run)
	}

	// 9. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 10. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 11. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 11a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 11b. Wait for workers to complete
	wg.Wait()

	// 11c. Close store
	if err := st.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// newLogger builds the process logger from the log config.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
