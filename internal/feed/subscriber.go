package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"calldesk/internal/logging"
)

const (
	dialTimeout      = 10 * time.Second
	reconnectMin     = time.Second
	reconnectMax     = 30 * time.Second
	reconnectBackoff = 2
)

// Handler consumes feed events on the device side. Resync is called after
// every successful (re)connect, before any event is delivered, so a missed
// window of events never leaves stale state behind. Apply receives validated
// events; implementations re-fetch the affected rows rather than trusting
// the event beyond its identity.
type Handler interface {
	Resync(ctx context.Context) error
	Apply(ctx context.Context, event Event) error
}

// Subscription is a live feed connection. Close tears it down; the zero
// value is not usable, obtain one from Subscribe.
type Subscription struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed sync.Once
}

// Close terminates the subscription and waits for its goroutine.
func (s *Subscription) Close() {
	s.closed.Do(func() {
		s.cancel()
	})
	s.wg.Wait()
}

// Subscribe connects to the daemon's feed endpoint and keeps the handler in
// sync until the subscription is closed. Reconnects are automatic with
// exponential backoff; each reconnect starts with a full resync.
func Subscribe(ctx context.Context, url, token string, handler Handler, logger *slog.Logger) *Subscription {
	runCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel}
	sub.wg.Add(1)

	go func() {
		defer sub.wg.Done()
		runSubscriber(runCtx, url, token, handler, logging.NewComponentLogger(logger, "feed-subscriber"))
	}()
	return sub
}

func runSubscriber(ctx context.Context, url, token string, handler Handler, logger *slog.Logger) {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := dial(ctx, url, token)
		if err != nil {
			logger.Warn("feed connect failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "device state may lag until reconnect"))
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = reconnectMin

		if err := handler.Resync(ctx); err != nil {
			logger.Warn("resync failed; reconnecting", logging.Error(err))
			conn.Close()
			if !sleepCtx(ctx, backoff) {
				return
			}
			continue
		}
		logger.Info("feed connected",
			logging.String(logging.FieldEventType, "feed_connected"))

		readLoop(ctx, conn, handler, logger)
		conn.Close()

		// Brief pause so a flapping server does not cause a hot loop.
		if !sleepCtx(ctx, reconnectMin) {
			return
		}
	}
}

func dial(ctx context.Context, url, token string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, header)
	return conn, err
}

func readLoop(ctx context.Context, conn *websocket.Conn, handler Handler, logger *slog.Logger) {
	// Unblock the read when the subscription closes.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	conn.SetPingHandler(func(appData string) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("feed connection lost", logging.Error(err))
			}
			return
		}

		event, err := DecodeEvent(data)
		if err != nil {
			logger.Warn("dropping malformed feed event", logging.Error(err))
			continue
		}
		if err := handler.Apply(ctx, event); err != nil {
			logger.Warn("feed event apply failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "state refreshes on the next resync"))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * reconnectBackoff
	if next > reconnectMax {
		return reconnectMax
	}
	return next
}
