//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testPIN = "220202"

// portalServer manages a running onboarding server process.
type portalServer struct {
	cmd     *exec.Cmd
	dataDir string
	address string
	env     []string
	logFile *os.File
}

// startPortal launches `onboarding serve` against dataDir and waits for it to
// become healthy. The server is configured entirely via environment variables.
func startPortal(t *testing.T, dataDir string, extraEnv ...string) *portalServer {
	t.Helper()
	requireOnboarding(t)

	port := freePort(t)
	s := &portalServer{
		dataDir: dataDir,
		address: fmt.Sprintf("127.0.0.1:%d", port),
		env: append([]string{
			fmt.Sprintf("ONBOARDING_PORT=%d", port),
			"ONBOARDING_CONFIG_PATH=" + filepath.Join(dataDir, "nonexistent.yaml"),
			"ONBOARDING_STATE_PATH=" + filepath.Join(dataDir, "decisions-state.json"),
			"ONBOARDING_STATE_DB_PATH=" + filepath.Join(dataDir, "decisions-state.db"),
			"ONBOARDING_SESSION_SECRET=e2e-session-secret",
			"AUTH_PIN=" + testPIN,
			"ONBOARDING_SNAPSHOT_BUCKET=",
			"ONBOARDING_LOG_LEVEL=debug",
		}, extraEnv...),
	}
	s.start(t)
	t.Cleanup(s.stop)
	return s
}

func (s *portalServer) start(t *testing.T) {
	t.Helper()

	lf, err := os.OpenFile(filepath.Join(s.dataDir, "onboarding.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	s.logFile = lf

	s.cmd = exec.Command(onboardingBin, "serve")
	s.cmd.Env = append(os.Environ(), s.env...)
	s.cmd.Stdout = lf
	s.cmd.Stderr = lf
	if err := s.cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start onboarding: %v", err)
	}

	if err := s.waitHealthy(10 * time.Second); err != nil {
		s.stop()
		t.Fatalf("onboarding not healthy: %v\n%s", err, s.logs())
	}
}

func (s *portalServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
		s.cmd = nil
	}
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
}

// restart stops the process and starts a new one on the same data directory.
func (s *portalServer) restart(t *testing.T) {
	t.Helper()
	s.stop()
	s.start(t)
}

func (s *portalServer) baseURL() string {
	return "http://" + s.address
}

func (s *portalServer) logs() string {
	data, _ := os.ReadFile(filepath.Join(s.dataDir, "onboarding.log"))
	return string(data)
}

func (s *portalServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(s.baseURL() + "/api/v1/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("health check did not pass within %s", timeout)
}

// client is an HTTP client that keeps the session cookie between calls.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, s *portalServer) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &client{
		t:    t,
		base: s.baseURL(),
		http: &http.Client{Jar: jar, Timeout: 5 * time.Second},
	}
}

// do sends body (if non-empty) as JSON and returns the status and raw body.
func (c *client) do(method, path, body string) (int, []byte) {
	c.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		c.t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

// mustDo fails the test unless the response status is want.
func (c *client) mustDo(method, path, body string, want int) []byte {
	c.t.Helper()
	status, data := c.do(method, path, body)
	if status != want {
		c.t.Fatalf("%s %s: status %d, want %d: %s", method, path, status, want, data)
	}
	return data
}

func (c *client) login(pin string) int {
	c.t.Helper()
	status, _ := c.do(http.MethodPost, "/api/v1/login", fmt.Sprintf(`{"pin":%q}`, pin))
	return status
}

// decisionState is the subset of a decision state the suite inspects.
type decisionState struct {
	Status string          `json:"status"`
	Answer json.RawMessage `json:"answer"`
	Notes  string          `json:"notes"`
}

func (c *client) decision(id string) decisionState {
	c.t.Helper()
	var resp struct {
		State decisionState `json:"state"`
	}
	decodeJSON(c.t, c.mustDo(http.MethodGet, "/api/v1/decisions/"+id, "", http.StatusOK), &resp)
	return resp.State
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
