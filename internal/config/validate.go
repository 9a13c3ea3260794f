package config

import (
	"errors"
	"fmt"
)

// Validate reports configuration problems that would prevent the daemon
// from operating correctly.
func (c *Config) Validate() error {
	var problems []error

	if c.Ingest.AgentID == "" {
		problems = append(problems, errors.New("ingest.agent_id is required"))
	}
	if c.SLA.ThresholdMinutes <= 0 {
		problems = append(problems, fmt.Errorf("sla.threshold_minutes must be positive, got %d", c.SLA.ThresholdMinutes))
	}
	if c.Ingest.MergeWindowHours <= 0 {
		problems = append(problems, fmt.Errorf("ingest.merge_window_hours must be positive, got %d", c.Ingest.MergeWindowHours))
	}
	if c.Store.BusyTimeoutMillis < 0 {
		problems = append(problems, fmt.Errorf("store.busy_timeout_millis must not be negative, got %d", c.Store.BusyTimeoutMillis))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.Join(problems...)
}
