package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/insurewright/onboarding/internal/export"
	"github.com/insurewright/onboarding/internal/snapshot"
)

var (
	exportFormat string
	exportPretty bool
	exportOutput string
	exportWidth  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every decision as JSON or markdown",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Send the export to the extraction engine",
	Args:  cobra.NoArgs,
	RunE:  runPublish,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a copy of the state document to snapshot storage",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: json or md")
	exportCmd.Flags().BoolVar(&exportPretty, "pretty", false, "Render markdown for the terminal")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this file instead of stdout")
	exportCmd.Flags().IntVar(&exportWidth, "width", 100, "Word wrap width for --pretty")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "json" && exportFormat != "md" {
		return fmt.Errorf("unknown format %q: use json or md", exportFormat)
	}
	if exportPretty && exportFormat != "md" {
		return fmt.Errorf("--pretty only applies to markdown")
	}

	env, err := openOffline()
	if err != nil {
		return err
	}
	defer env.Close()

	state, err := env.service.State(cmd.Context())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	projection := export.BuildProjection(env.catalog, state)

	var data []byte
	if exportFormat == "json" {
		data, err = json.MarshalIndent(projection, "", "  ")
		if err != nil {
			return fmt.Errorf("encode export: %w", err)
		}
		data = append(data, '\n')
	} else {
		md := export.RenderMarkdown(projection, time.Now())
		if exportPretty {
			if md, err = export.RenderPretty(md, exportWidth); err != nil {
				return err
			}
		}
		data = []byte(md)
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", exportOutput)
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	env, err := openOffline()
	if err != nil {
		return err
	}
	defer env.Close()

	state, err := env.service.State(cmd.Context())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	p := export.NewPublisher(env.cfg.Publish.BaseURL, time.Duration(env.cfg.Publish.Timeout), nil)
	res := p.Publish(cmd.Context(), export.BuildProjection(env.catalog, state))

	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else if res.Success {
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	}
	if !res.Success {
		return fmt.Errorf("publish to %s: %s", p.Endpoint(), res.Message)
	}
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	env, err := openOffline()
	if err != nil {
		return err
	}
	defer env.Close()

	if !env.cfg.SnapshotsEnabled() {
		return fmt.Errorf("%w: set ONBOARDING_SNAPSHOT_BUCKET", snapshot.ErrNotConfigured)
	}
	uploader, err := snapshot.NewUploader(env.cfg.SnapshotStorage)
	if err != nil {
		return err
	}

	state, err := env.service.State(cmd.Context())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	b, err := snapshot.UploadState(cmd.Context(), uploader, env.cfg.SnapshotStorage.Prefix, data, time.Now())
	if err != nil {
		return fmt.Errorf("upload state: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), b)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes) and %s\n", b.Key, b.Size, b.LatestKey)
	if url, expires, err := uploader.PresignedURL(cmd.Context(), b.Key); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Download until %s:\n%s\n", expires.Format(time.RFC3339), url)
	}
	return nil
}
