package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// State backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	State           StateConfig           `yaml:"state"`
	Auth            AuthConfig            `yaml:"auth"`
	Publish         PublishConfig         `yaml:"publish"`
	SnapshotStorage SnapshotStorageConfig `yaml:"snapshot_storage"`
	Log             LogConfig             `yaml:"log"`

	// DevMode is set from ONBOARDING_DEV_MODE only.
	DevMode bool `yaml:"-"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// StateConfig selects where the decision document lives.
type StateConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	DBPath  string `yaml:"db_path"`
	Watch   bool   `yaml:"watch"`
}

// AuthConfig contains the PIN gate and session cookie settings.
type AuthConfig struct {
	PIN           string   `yaml:"-"` // env-only, never in YAML
	SessionSecret string   `yaml:"-"` // env-only, never in YAML
	SessionTTL    Duration `yaml:"session_ttl"`
	CookieSecure  bool     `yaml:"cookie_secure"`
}

// PublishConfig points at the extraction engine.
type PublishConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// SnapshotStorageConfig contains S3-compatible backup settings.
// An empty bucket disables backups.
type SnapshotStorageConfig struct {
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	UseSSL    *bool    `yaml:"use_ssl"`
	Prefix    string   `yaml:"prefix"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	URLExpiry Duration `yaml:"url_expiry"`
	// Interval between automatic backups while serving. Zero disables them.
	Interval  Duration `yaml:"interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	return load(true)
}

// LoadOffline loads configuration for commands that never issue sessions,
// so ONBOARDING_SESSION_SECRET is not required.
func LoadOffline() (*Config, error) {
	return load(false)
}

func load(requireSecret bool) (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("ONBOARDING_CONFIG_PATH", "config/onboarding.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(requireSecret); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path, which must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(true); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	useSSL := true
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		State: StateConfig{
			Backend: BackendJSON,
			Path:    "data/decisions-state.json",
			DBPath:  "data/decisions.db",
			Watch:   true,
		},
		Auth: AuthConfig{
			PIN:        "220202",
			SessionTTL: Duration(7 * 24 * time.Hour),
		},
		Publish: PublishConfig{
			BaseURL: "http://localhost:8100",
			Timeout: Duration(10 * time.Second),
		},
		SnapshotStorage: SnapshotStorageConfig{
			Region:    "us-east-1",
			UseSSL:    &useSSL,
			Prefix:    "state",
			URLExpiry: Duration(15 * time.Minute),
			Interval:  Duration(time.Hour),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("ONBOARDING_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("ONBOARDING_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("ONBOARDING_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("ONBOARDING_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// State
	if v := os.Getenv("ONBOARDING_STATE_BACKEND"); v != "" {
		cfg.State.Backend = v
	}
	if v := os.Getenv("ONBOARDING_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}
	if v := os.Getenv("ONBOARDING_STATE_DB_PATH"); v != "" {
		cfg.State.DBPath = v
	}
	envBool("ONBOARDING_STATE_WATCH", &cfg.State.Watch)

	// Auth (AUTH_PIN keeps the name the portal has always used)
	if v := os.Getenv("AUTH_PIN"); v != "" {
		cfg.Auth.PIN = v
	}
	if v := os.Getenv("ONBOARDING_SESSION_SECRET"); v != "" {
		cfg.Auth.SessionSecret = v
	}
	envDuration("ONBOARDING_SESSION_TTL", &cfg.Auth.SessionTTL)
	envBool("ONBOARDING_COOKIE_SECURE", &cfg.Auth.CookieSecure)

	// Publish
	if v := os.Getenv("EXTRACTION_ENGINE_URL"); v != "" {
		cfg.Publish.BaseURL = v
	}
	envDuration("ONBOARDING_PUBLISH_TIMEOUT", &cfg.Publish.Timeout)

	// Snapshot storage
	if v := os.Getenv("ONBOARDING_SNAPSHOT_BUCKET"); v != "" {
		cfg.SnapshotStorage.Bucket = v
	}
	if v := os.Getenv("ONBOARDING_S3_ENDPOINT"); v != "" {
		cfg.SnapshotStorage.Endpoint = v
	}
	if v := os.Getenv("ONBOARDING_S3_REGION"); v != "" {
		cfg.SnapshotStorage.Region = v
	}
	if v := os.Getenv("ONBOARDING_S3_ACCESS_KEY"); v != "" {
		cfg.SnapshotStorage.AccessKey = v
	}
	if v := os.Getenv("ONBOARDING_S3_SECRET_KEY"); v != "" {
		cfg.SnapshotStorage.SecretKey = v
	}
	if v := os.Getenv("ONBOARDING_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.SnapshotStorage.UseSSL = &useSSL
	}
	envDuration("ONBOARDING_S3_URL_EXPIRY", &cfg.SnapshotStorage.URLExpiry)
	envDuration("ONBOARDING_SNAPSHOT_INTERVAL", &cfg.SnapshotStorage.Interval)

	// Log
	if v := os.Getenv("ONBOARDING_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ONBOARDING_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	cfg.DevMode = os.Getenv("ONBOARDING_DEV_MODE") == "true"
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

// validate checks required values. In dev mode a missing session secret is
// replaced by a random one, so sessions do not survive a restart.
func (c *Config) validate(requireSecret bool) error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.State.Backend != BackendJSON && c.State.Backend != BackendSQLite {
		errs = append(errs, fmt.Errorf("state.backend must be %q or %q, got %q", BackendJSON, BackendSQLite, c.State.Backend))
	}
	if c.Auth.PIN == "" {
		errs = append(errs, errors.New("AUTH_PIN must not be empty"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if c.Publish.Timeout <= 0 {
		errs = append(errs, errors.New("publish.timeout must be positive"))
	}
	if c.SnapshotStorage.Interval < 0 {
		errs = append(errs, errors.New("snapshot_storage.interval must not be negative"))
	}

	if c.Auth.SessionSecret == "" && requireSecret {
		if !c.DevMode {
			errs = append(errs, errors.New("ONBOARDING_SESSION_SECRET is required"))
		} else {
			secret, err := randomSecret()
			if err != nil {
				errs = append(errs, fmt.Errorf("generating dev session secret: %w", err))
			}
			c.Auth.SessionSecret = secret
		}
	}

	return errors.Join(errs...)
}

// SnapshotsEnabled reports whether a backup bucket is configured.
func (c *Config) SnapshotsEnabled() bool {
	return c.SnapshotStorage.Bucket != ""
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
