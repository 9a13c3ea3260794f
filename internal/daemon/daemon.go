package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"calldesk/internal/api"
	"calldesk/internal/callstore"
	"calldesk/internal/config"
	"calldesk/internal/feed"
	"calldesk/internal/ingest"
	"calldesk/internal/logging"
	"calldesk/internal/merge"
	"calldesk/internal/notifications"
	"calldesk/internal/reservation"
	"calldesk/internal/sla"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *callstore.Store

	lines       *ingest.Lines
	monitor     *ingest.Monitor
	lineMonitor *lineMonitor
	hub         *feed.Hub
	watcher     *slaWatcher
	notifier    notifications.Service

	callSvc    *api.CallService
	clientSvc  *api.ClientService
	reservSvc  *reservation.Service
	apiSrv     *apiServer
	logPath    string
	lockPath   string
	lock       *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DBPath       string
	LockFilePath string
	AgentID      string
	CallStats    map[callstore.Status]int
	Ingest       IngestStatus
	FeedClients  int
}

// IngestStatus mirrors the ingestion pipeline state for status consumers.
type IngestStatus struct {
	Suspended      bool
	PendingRetries int
	DetectedLines  []string
	BusinessLine   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *callstore.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	businessLine, err := store.Setting(context.Background(), callstore.SettingBusinessLine)
	if err != nil {
		return nil, fmt.Errorf("load business line: %w", err)
	}
	lines := ingest.NewLines(businessLine)

	notifier := notifications.NewService(cfg)
	hub := feed.NewHub(logger, time.Duration(cfg.Feed.PingInterval)*time.Second)
	store.SetPublisher(hub)

	policy := merge.NewPolicy(cfg.MergeWindow())
	ingestor := ingest.NewIngestor(store, lines, policy, cfg.Ingest.AgentID, logger)

	var source ingest.CallLog
	if path := strings.TrimSpace(cfg.Ingest.CallLogPath); path != "" {
		source = ingest.NewFileCallLog(path)
	}
	monitor := ingest.NewMonitor(source, ingestor, lines, cfg.PollInterval(), logger)

	callSvc := api.NewCallService(store, cfg.SLAThreshold())
	reservSvc := reservation.NewService(store, reservation.NewView(), notifier, logger)

	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		lines:     lines,
		monitor:   monitor,
		hub:       hub,
		notifier:  notifier,
		callSvc:   callSvc,
		clientSvc: api.NewClientService(store),
		reservSvc: reservSvc,
		logPath:   filepath.Join(cfg.Paths.LogDir, "calldesk.log"),
		lockPath:  filepath.Join(cfg.Paths.LogDir, "calldeskd.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.lineMonitor = newLineMonitor(logger, lines, d.onLineChange)
	d.watcher = newSlaWatcher(callSvc, notifier, cfg.SLAThreshold(), logger)

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Start acquires the daemon lock and launches the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another calldesk daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.hub.Start(d.ctx); err != nil {
		d.releaseLock()
		return fmt.Errorf("start feed hub: %w", err)
	}
	if err := d.monitor.Start(d.ctx); err != nil {
		d.hub.Stop()
		d.releaseLock()
		return fmt.Errorf("start call monitor: %w", err)
	}
	if err := d.lineMonitor.Start(d.ctx); err != nil {
		// Line detection is best effort; single-line devices work without it.
		d.logger.Warn("line monitor unavailable", logging.Error(err))
	}
	d.watcher.Start(d.ctx)
	if d.apiSrv != nil {
		if err := d.apiSrv.start(d.ctx); err != nil {
			d.stopServices()
			d.releaseLock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("calldesk daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldAgentID, d.cfg.Ingest.AgentID))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.apiSrv != nil {
		d.apiSrv.stop()
	}
	d.stopServices()
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("calldesk daemon stopped")
}

func (d *Daemon) stopServices() {
	d.watcher.Stop()
	d.lineMonitor.Stop()
	d.monitor.Stop()
	d.hub.Stop()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		d.store.SetPublisher(nil)
		return d.store.Close()
	}
	return nil
}

// Calls returns the read-only call service.
func (d *Daemon) Calls() *api.CallService { return d.callSvc }

// Clients returns the registry service.
func (d *Daemon) Clients() *api.ClientService { return d.clientSvc }

// Reservations returns the reservation service.
func (d *Daemon) Reservations() *reservation.Service { return d.reservSvc }

// FeedHub returns the change-feed hub for HTTP mounting.
func (d *Daemon) FeedHub() *feed.Hub { return d.hub }

// SetBusinessLine persists the business line choice and resumes ingestion.
func (d *Daemon) SetBusinessLine(ctx context.Context, lineID string) error {
	trimmed := strings.TrimSpace(lineID)
	if trimmed == "" {
		return errors.New("line id is required")
	}
	if err := d.store.SetSetting(ctx, callstore.SettingBusinessLine, trimmed); err != nil {
		return fmt.Errorf("persist business line: %w", err)
	}
	d.lines.SetBusinessLine(trimmed)
	d.monitor.Resume()
	d.logger.Info("business line selected",
		logging.String("line_id", trimmed),
		logging.String(logging.FieldEventType, "business_line_selected"))
	return nil
}

// CallHealth returns aggregate record counts from the call store.
func (d *Daemon) CallHealth(ctx context.Context) (callstore.HealthSummary, error) {
	if d.store == nil {
		return callstore.HealthSummary{}, errors.New("call store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (callstore.DatabaseHealth, error) {
	if d.store == nil {
		return callstore.DatabaseHealth{}, errors.New("call store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("stats unavailable for status", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		AgentID:      d.cfg.Ingest.AgentID,
		CallStats:    stats,
		Ingest: IngestStatus{
			Suspended:      d.monitor.Suspended() || d.lines.SelectionRequired(),
			PendingRetries: d.monitor.PendingRetries(),
			DetectedLines:  d.lines.Detected(),
			BusinessLine:   d.lines.BusinessLine(),
		},
		FeedClients: d.hub.ClientCount(),
	}
}

// onLineChange reacts to telephony line attach/detach events.
func (d *Daemon) onLineChange(ctx context.Context, lineID string, added bool) {
	if !added || !d.lines.SelectionRequired() {
		return
	}
	detected := d.lines.Detected()
	d.logger.Warn("multiple telephony lines detected",
		logging.String(logging.FieldEventType, "line_selection_required"),
		logging.String("lines", strings.Join(detected, ",")),
		logging.String(logging.FieldImpact, "ingestion suspended until a business line is chosen"))
	if err := d.notifier.NotifyLineSelectionRequired(ctx, detected); err != nil {
		d.logger.Warn("line selection notification failed", logging.Error(err))
	}
}

// slaWatcher periodically scans open groups and notifies once per group when
// the response threshold is crossed.
type slaWatcher struct {
	calls     *api.CallService
	notifier  notifications.Service
	threshold time.Duration
	logger    *slog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	notified map[int64]struct{}
}

func newSlaWatcher(calls *api.CallService, notifier notifications.Service, threshold time.Duration, logger *slog.Logger) *slaWatcher {
	if threshold <= 0 {
		threshold = sla.DefaultThreshold
	}
	return &slaWatcher{
		calls:     calls,
		notifier:  notifier,
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "sla-watcher"),
		notified:  make(map[int64]struct{}),
	}
}

func (w *slaWatcher) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(runCtx)
}

func (w *slaWatcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

func (w *slaWatcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *slaWatcher) scan(ctx context.Context) {
	groups, err := w.calls.Groups(ctx)
	if err != nil {
		w.logger.Warn("sla scan failed", logging.Error(err))
		return
	}

	now := time.Now().UTC()
	open := make(map[int64]struct{}, len(groups))
	for _, group := range groups {
		if group == nil || group.Primary == nil {
			continue
		}
		open[group.Primary.ID] = struct{}{}
		if !sla.Exceeded(group, w.threshold, now) {
			continue
		}
		if _, seen := w.notified[group.Primary.ID]; seen {
			continue
		}
		w.notified[group.Primary.ID] = struct{}{}
		waiting := sla.Waiting(group, now)
		w.logger.Warn("callback overdue",
			logging.Int64(logging.FieldGroupID, group.Primary.ID),
			logging.String(logging.FieldCaller, group.Primary.CallerPhone),
			logging.String(logging.FieldEventType, "sla_exceeded"),
			logging.String("waiting", waiting.Round(time.Second).String()))
		if err := w.notifier.NotifySlaExceeded(ctx, group.Primary.CallerPhone, waiting); err != nil {
			w.logger.Warn("sla notification failed", logging.Error(err))
		}
	}

	// Completed or removed groups become eligible to alert again if the
	// caller comes back.
	for id := range w.notified {
		if _, still := open[id]; !still {
			delete(w.notified, id)
		}
	}
}
