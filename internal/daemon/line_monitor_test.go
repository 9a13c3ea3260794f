package daemon

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"calldesk/internal/ingest"
)

func TestLineMonitorLifecycle(t *testing.T) {
	t.Run("nil monitor is safe", func(t *testing.T) {
		var m *lineMonitor
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start on nil monitor: %v", err)
		}
		m.Stop()
		if m.Running() {
			t.Error("nil monitor must not report running")
		}
	})

	t.Run("stop on unstarted monitor is safe", func(t *testing.T) {
		m := newLineMonitor(nil, ingest.NewLines(""), nil)
		m.Stop()
		m.Stop()
		if m.Running() {
			t.Error("expected Running() false after Stop on unstarted monitor")
		}
	})

	t.Run("start without netlink access is non-fatal", func(t *testing.T) {
		m := newLineMonitor(nil, ingest.NewLines(""), nil)
		// Connect typically fails in the test environment; that must not be
		// a hard error.
		_ = m.Start(context.Background())
		m.Stop()
	})
}

func TestLineMonitorMatcher(t *testing.T) {
	m := newLineMonitor(nil, ingest.NewLines(""), nil)
	matcher := m.buildMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	add := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "tty", "DEVNAME": "/dev/ttyACM0"},
	}
	if !matcher.Evaluate(add) {
		t.Error("expected matcher to accept tty add event")
	}

	remove := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "tty", "DEVNAME": "/dev/ttyACM0"},
	}
	if !matcher.Evaluate(remove) {
		t.Error("expected matcher to accept tty remove event")
	}

	block := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "block", "DEVNAME": "/dev/sda"},
	}
	if matcher.Evaluate(block) {
		t.Error("expected matcher to reject non-tty subsystem")
	}
}

func TestLineMonitorHandleEvent(t *testing.T) {
	t.Run("records attached line and notifies", func(t *testing.T) {
		lines := ingest.NewLines("")
		var gotLine string
		var gotAdded bool
		m := newLineMonitor(nil, lines, func(ctx context.Context, lineID string, added bool) {
			gotLine = lineID
			gotAdded = added
		})

		m.handleEvent(context.Background(), netlink.UEvent{
			Action: netlink.ADD,
			Env:    map[string]string{"SUBSYSTEM": "tty", "DEVNAME": "/dev/ttyACM0"},
		})

		if gotLine != "/dev/ttyACM0" || !gotAdded {
			t.Fatalf("unexpected callback: line=%q added=%v", gotLine, gotAdded)
		}
		detected := lines.Detected()
		if len(detected) != 1 || detected[0] != "/dev/ttyACM0" {
			t.Fatalf("expected line recorded, got %v", detected)
		}
	})

	t.Run("duplicate attach does not re-notify", func(t *testing.T) {
		lines := ingest.NewLines("", "/dev/ttyACM0")
		var calls int
		m := newLineMonitor(nil, lines, func(ctx context.Context, lineID string, added bool) {
			calls++
		})

		m.handleEvent(context.Background(), netlink.UEvent{
			Action: netlink.ADD,
			Env:    map[string]string{"SUBSYSTEM": "tty", "DEVNAME": "/dev/ttyACM0"},
		})

		if calls != 0 {
			t.Fatalf("expected no callback for already-known line, got %d", calls)
		}
	})

	t.Run("ignores non-telephony tty devices", func(t *testing.T) {
		lines := ingest.NewLines("")
		var calls int
		m := newLineMonitor(nil, lines, func(ctx context.Context, lineID string, added bool) {
			calls++
		})

		m.handleEvent(context.Background(), netlink.UEvent{
			Action: netlink.ADD,
			Env:    map[string]string{"SUBSYSTEM": "tty", "DEVNAME": "/dev/tty1"},
		})

		if calls != 0 || len(lines.Detected()) != 0 {
			t.Fatalf("expected console tty to be ignored, calls=%d detected=%v", calls, lines.Detected())
		}
	})

	t.Run("detach notifies with added false", func(t *testing.T) {
		lines := ingest.NewLines("", "/dev/ttyUSB0")
		var gotAdded bool
		var calls int
		m := newLineMonitor(nil, lines, func(ctx context.Context, lineID string, added bool) {
			calls++
			gotAdded = added
		})

		m.handleEvent(context.Background(), netlink.UEvent{
			Action: netlink.REMOVE,
			Env:    map[string]string{"SUBSYSTEM": "tty", "DEVNAME": "/dev/ttyUSB0"},
		})

		if calls != 1 || gotAdded {
			t.Fatalf("expected detach callback, calls=%d added=%v", calls, gotAdded)
		}
	})

	t.Run("derives device name from DEVPATH", func(t *testing.T) {
		lines := ingest.NewLines("")
		var gotLine string
		m := newLineMonitor(nil, lines, func(ctx context.Context, lineID string, added bool) {
			gotLine = lineID
		})

		m.handleEvent(context.Background(), netlink.UEvent{
			Action: netlink.ADD,
			Env: map[string]string{
				"SUBSYSTEM": "tty",
				"DEVPATH":   "/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/tty/ttyACM1",
			},
		})

		if gotLine != "/dev/ttyACM1" {
			t.Fatalf("expected /dev/ttyACM1 from DEVPATH, got %q", gotLine)
		}
	})
}
