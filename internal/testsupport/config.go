package testsupport

import (
	"path/filepath"
	"testing"

	"calldesk/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketPath = filepath.Join(base, "calldeskd.sock")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Ingest.AgentID = "agent-test"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithAgentID overrides the agent identifier on the test config.
func WithAgentID(id string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ingest.AgentID = id
	}
}

// WithMergeWindowHours overrides the merge window on the test config.
func WithMergeWindowHours(hours int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ingest.MergeWindowHours = hours
	}
}

// WithSLAThresholdMinutes overrides the SLA threshold on the test config.
func WithSLAThresholdMinutes(minutes int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.SLA.ThresholdMinutes = minutes
	}
}
