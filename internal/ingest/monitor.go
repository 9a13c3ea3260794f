package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"calldesk/internal/callstore"
	"calldesk/internal/logging"
)

// Monitor polls the device call log and feeds observations through the
// ingestor. Observations that fail on transient store errors are queued
// locally and retried under the same idempotency key, so an offline device
// catches up without duplicating records.
type Monitor struct {
	logger       *slog.Logger
	source       CallLog
	ingestor     *Ingestor
	lines        *Lines
	pollInterval time.Duration

	mu        sync.Mutex
	running   bool
	suspended bool
	lastScan  time.Time
	pending   []Observation

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor builds a call-log monitor. A nil source disables polling
// (useful on devices that only act on synced state).
func NewMonitor(source CallLog, ingestor *Ingestor, lines *Lines, pollInterval time.Duration, logger *slog.Logger) *Monitor {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &Monitor{
		logger:       logging.NewComponentLogger(logger, "call-monitor"),
		source:       source,
		ingestor:     ingestor,
		lines:        lines,
		pollInterval: pollInterval,
		lastScan:     time.Now().UTC().Add(-24 * time.Hour),
	}
}

// Start launches the polling loop.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return errors.New("call monitor unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("call monitor already running")
	}
	if m.source == nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop halts the polling loop and waits for in-flight work.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Suspended reports whether ingestion is paused awaiting a business-line
// selection.
func (m *Monitor) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// PendingRetries reports the number of queued observations awaiting retry.
func (m *Monitor) PendingRetries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Resume clears the suspension flag after a business line was selected.
func (m *Monitor) Resume() {
	m.mu.Lock()
	m.suspended = false
	m.mu.Unlock()
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.poll()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	ctx := m.ctx
	if ctx == nil {
		return
	}

	if m.lines != nil && m.lines.SelectionRequired() {
		m.markSuspended()
		return
	}

	m.flushPending(ctx)

	m.mu.Lock()
	since := m.lastScan
	m.mu.Unlock()

	scanStart := time.Now().UTC()
	observations, err := m.source.Scan(ctx, since)
	if err != nil {
		m.logger.Warn("call log scan failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "call_log_scan_failed"),
			logging.String(logging.FieldErrorHint, "check call log source availability"),
			logging.String(logging.FieldImpact, "new calls are not ingested until the next poll"))
		return
	}

	m.mu.Lock()
	m.lastScan = scanStart
	m.mu.Unlock()

	for _, obs := range observations {
		m.ingest(ctx, obs)
	}
}

func (m *Monitor) ingest(ctx context.Context, obs Observation) {
	_, err := m.ingestor.Ingest(ctx, obs)
	switch {
	case err == nil:
	case errors.Is(err, ErrLineSelectionRequired):
		m.markSuspended()
	case callstore.IsTransient(err):
		m.enqueue(obs)
		m.logger.Warn("ingestion deferred on transient store error",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ingest_deferred"),
			logging.String(logging.FieldImpact, "observation queued for retry"))
	default:
		// Ingestion errors never block the polling loop.
		m.logger.Error("ingestion failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ingest_failed"),
			logging.String(logging.FieldErrorHint, "inspect the store; the observation was dropped"))
	}
}

func (m *Monitor) enqueue(obs Observation) {
	m.mu.Lock()
	m.pending = append(m.pending, obs)
	m.mu.Unlock()
}

func (m *Monitor) flushPending(ctx context.Context) {
	m.mu.Lock()
	queued := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, obs := range queued {
		// Same idempotency key on retry: duplicates resolve to no-ops.
		m.ingest(ctx, obs)
	}
}

func (m *Monitor) markSuspended() {
	m.mu.Lock()
	already := m.suspended
	m.suspended = true
	m.mu.Unlock()
	if !already {
		m.logger.Warn("ingestion suspended",
			logging.String(logging.FieldEventType, "line_selection_required"),
			logging.String(logging.FieldErrorHint, "run 'calldesk line set <id>' to choose the business line"),
			logging.String(logging.FieldImpact, "no calls are ingested until a business line is chosen"))
	}
}
