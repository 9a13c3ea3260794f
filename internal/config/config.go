package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, socket, and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Store contains settings for the shared SQLite store.
type Store struct {
	BusyTimeoutMillis int `toml:"busy_timeout_millis"`
}

// Ingest contains call-log polling and merge policy settings.
type Ingest struct {
	// PollInterval is the call-log scan interval in seconds.
	PollInterval int `toml:"poll_interval"`
	// RetryFlushInterval is how often queued offline observations are
	// retried, in seconds.
	RetryFlushInterval int `toml:"retry_flush_interval"`
	// MergeWindowHours bounds how far back a new observation may merge
	// into an earlier open call from the same caller.
	MergeWindowHours int `toml:"merge_window_hours"`
	// AgentID identifies the agent operating this device. Required.
	AgentID string `toml:"agent_id"`
	// CallLogPath points at the device call-log source, when file-backed.
	CallLogPath string `toml:"call_log_path"`
}

// SLA contains wait-time alert thresholds.
type SLA struct {
	ThresholdMinutes int `toml:"threshold_minutes"`
}

// Feed contains change-feed settings. When Bind is empty the feed listens
// on the main API bind address under /api/feed.
type Feed struct {
	Bind         string `toml:"bind"`
	PingInterval int    `toml:"ping_interval"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	SLA            bool   `toml:"sla"`
	MultiAgent     bool   `toml:"multi_agent"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for calldesk.
//
// Configuration sections by subsystem:
//   - Paths: directories, IPC socket, API bind address
//   - Store: shared SQLite store tuning
//   - Ingest: call-log polling, merge window, agent identity
//   - SLA: wait-time alert thresholds
//   - Feed: change-feed transport settings
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Ingest        Ingest        `toml:"ingest"`
	SLA           SLA           `toml:"sla"`
	Feed          Feed          `toml:"feed"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/calldesk/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return
// value is the resolved path; the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("calldesk.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Paths.SocketPath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MergeWindow returns the merge window as a duration.
func (c *Config) MergeWindow() time.Duration {
	return time.Duration(c.Ingest.MergeWindowHours) * time.Hour
}

// PollInterval returns the call-log scan interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Ingest.PollInterval) * time.Second
}

// SLAThreshold returns the SLA alert threshold as a duration.
func (c *Config) SLAThreshold() time.Duration {
	return time.Duration(c.SLA.ThresholdMinutes) * time.Minute
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			trimmed = home
		} else if strings.HasPrefix(trimmed, "~/") {
			trimmed = filepath.Join(home, trimmed[2:])
		}
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}
