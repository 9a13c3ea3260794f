package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"calldesk/internal/ingest"
	"calldesk/internal/logging"
)

// lineMonitor listens for udev netlink events to discover telephony line
// devices as they attach. Detection drives the multi-line suspension logic:
// when a second line appears before a business line is chosen, ingestion
// pauses until an agent picks one.
type lineMonitor struct {
	logger   *slog.Logger
	lines    *ingest.Lines
	onChange func(ctx context.Context, lineID string, added bool)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newLineMonitor(logger *slog.Logger, lines *ingest.Lines, onChange func(ctx context.Context, lineID string, added bool)) *lineMonitor {
	return &lineMonitor{
		logger:   logging.NewComponentLogger(logger, "line-monitor"),
		lines:    lines,
		onChange: onChange,
	}
}

// Start begins listening for udev netlink events.
func (m *lineMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; line detection will rely on call-log line ids",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "attached lines are not discovered until they carry a call"),
		)
		return nil // Non-fatal - lines are still discovered from call-log entries
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	// Pass quit channel to goroutine to avoid reading m.quit without lock
	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("line monitor started",
		logging.String(logging.FieldEventType, "line_monitor_started"))
	return nil
}

// Stop shuts down the line monitor.
func (m *lineMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("line monitor stopped",
		logging.String(logging.FieldEventType, "line_monitor_stopped"))
}

// Running reports whether the line monitor is active.
func (m *lineMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *lineMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	matcher := m.buildMatcher()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, matcher)

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("line monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "line_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "line detection may be affected"),
			)
		}
	}
}

// buildMatcher matches tty device attach and detach events. Telephony
// adapters surface as tty devices (ttyACM*, ttyUSB*).
func (m *lineMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}

func (m *lineMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	devname := m.extractDeviceName(uevent)
	if devname == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	if !isTelephonyDevice(devname) {
		m.logger.Debug("ignoring non-telephony tty device",
			logging.String("device", devname))
		return
	}

	added := uevent.Action == netlink.ADD
	if added {
		if !m.lines.AddDetected(devname) {
			return
		}
		m.logger.Info("telephony line attached",
			logging.String(logging.FieldEventType, "line_attached"),
			logging.String("line_id", devname),
		)
	} else {
		m.logger.Info("telephony line detached",
			logging.String(logging.FieldEventType, "line_detached"),
			logging.String("line_id", devname),
		)
	}

	if m.onChange != nil {
		m.onChange(ctx, devname, added)
	}
}

func (m *lineMonitor) extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return "/dev/" + parts[len(parts)-1]
}

// isTelephonyDevice filters tty events down to the USB serial device classes
// telephony adapters register as.
func isTelephonyDevice(devname string) bool {
	base := devname
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.HasPrefix(base, "ttyACM") || strings.HasPrefix(base, "ttyUSB")
}
