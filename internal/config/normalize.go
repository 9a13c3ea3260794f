package config

import (
	"fmt"
	"strings"
)

// normalize expands paths and fills in derived defaults after decoding.
func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIngest()
	c.normalizeFeed()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"data_dir", &c.Paths.DataDir},
		{"log_dir", &c.Paths.LogDir},
		{"socket_path", &c.Paths.SocketPath},
	}
	for _, field := range fields {
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", field.name, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeIngest() {
	c.Ingest.AgentID = strings.TrimSpace(c.Ingest.AgentID)
	c.Ingest.CallLogPath = strings.TrimSpace(c.Ingest.CallLogPath)
	if c.Ingest.PollInterval <= 0 {
		c.Ingest.PollInterval = defaultPollInterval
	}
	if c.Ingest.RetryFlushInterval <= 0 {
		c.Ingest.RetryFlushInterval = defaultRetryFlushInterval
	}
	if c.Ingest.MergeWindowHours <= 0 {
		c.Ingest.MergeWindowHours = defaultMergeWindowHours
	}
}

func (c *Config) normalizeFeed() {
	c.Feed.Bind = strings.TrimSpace(c.Feed.Bind)
	if c.Feed.PingInterval <= 0 {
		c.Feed.PingInterval = defaultFeedPingInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
