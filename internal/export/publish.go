package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrRemote marks a failed publish: transport error, timeout or non-2xx reply.
var ErrRemote = errors.New("extraction engine publish failed")

const (
	importPath      = "/api/config/import"
	maxResponseBody = 1 << 20
)

// PublishResult is the uniform outcome of a publish attempt.
type PublishResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	Version           *int   `json:"version,omitempty"`
	DecisionsImported *int   `json:"decisionsImported,omitempty"`
	Err               error  `json:"-"`
}

type importResponse struct {
	Version           *int `json:"version"`
	DecisionsImported *int `json:"decisions_imported"`
}

// Publisher sends the export projection to the extraction engine.
type Publisher struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewPublisher creates a Publisher for the engine at baseURL. A nil client
// uses a default http.Client.
func NewPublisher(baseURL string, timeout time.Duration, client *http.Client) *Publisher {
	if client == nil {
		client = &http.Client{}
	}
	return &Publisher{
		endpoint: strings.TrimRight(baseURL, "/") + importPath,
		timeout:  timeout,
		client:   client,
	}
}

// Endpoint returns the import URL requests are sent to.
func (p *Publisher) Endpoint() string {
	return p.endpoint
}

// Publish makes a single POST attempt bounded by the publisher's timeout.
func (p *Publisher) Publish(ctx context.Context, projection []CategoryExport) PublishResult {
	body, err := json.Marshal(projection)
	if err != nil {
		return publishFailure(fmt.Sprintf("Failed to publish: %v", err), err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return publishFailure(fmt.Sprintf("Failed to publish: %v", err), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Warn("publish request failed",
			"component", "export",
			"endpoint", p.endpoint,
			"error", err,
		)
		return publishFailure(fmt.Sprintf("Failed to publish: %v", err), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return publishFailure(fmt.Sprintf("Failed to publish: %v", err), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("extraction engine rejected config",
			"component", "export",
			"endpoint", p.endpoint,
			"status", resp.StatusCode,
		)
		return publishFailure(
			fmt.Sprintf("Extraction engine returned %d: %s", resp.StatusCode, string(data)),
			fmt.Errorf("status %d", resp.StatusCode),
		)
	}

	var ir importResponse
	if err := json.Unmarshal(data, &ir); err != nil {
		return publishFailure(fmt.Sprintf("Failed to publish: %v", err), err)
	}

	msg := "Config published successfully"
	if ir.Version != nil {
		msg = fmt.Sprintf("Config published successfully (v%d)", *ir.Version)
	}
	slog.Info("config published",
		"component", "export",
		"endpoint", p.endpoint,
		"version", derefInt(ir.Version),
		"decisions_imported", derefInt(ir.DecisionsImported),
	)

	return PublishResult{
		Success:           true,
		Message:           msg,
		Version:           ir.Version,
		DecisionsImported: ir.DecisionsImported,
	}
}

func publishFailure(msg string, cause error) PublishResult {
	return PublishResult{
		Success: false,
		Message: msg,
		Err:     fmt.Errorf("%w: %v", ErrRemote, cause),
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
