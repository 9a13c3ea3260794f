package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"calldesk/internal/config"
)

const userAgent = "Calldesk-Go/0.1.0"

// Service defines the notification surface exposed to daemon components.
type Service interface {
	NotifySlaExceeded(ctx context.Context, callerPhone string, waiting time.Duration) error
	NotifyMultiAgentCall(ctx context.Context, groupID int64, agents []string) error
	NotifyLineSelectionRequired(ctx context.Context, lines []string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		sla:        cfg.Notifications.SLA,
		multiAgent: cfg.Notifications.MultiAgent,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	sla        bool
	multiAgent bool
	errors     bool
}

func (n *ntfyService) NotifySlaExceeded(ctx context.Context, callerPhone string, waiting time.Duration) error {
	if !n.sla {
		return nil
	}
	waiting = waiting.Round(time.Minute)
	data := payload{
		title:    "Calldesk - Callback Overdue",
		message:  fmt.Sprintf("%s has been waiting %s for a callback", strings.TrimSpace(callerPhone), waiting),
		tags:     []string{"calldesk", "sla", "overdue"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMultiAgentCall(ctx context.Context, groupID int64, agents []string) error {
	if !n.multiAgent {
		return nil
	}
	data := payload{
		title:   "Calldesk - Multiple Agents",
		message: fmt.Sprintf("Call group %d was seen by %s - coordinate before calling back", groupID, strings.Join(agents, ", ")),
		tags:    []string{"calldesk", "multi-agent"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLineSelectionRequired(ctx context.Context, lines []string) error {
	data := payload{
		title:    "Calldesk - Line Selection Required",
		message:  fmt.Sprintf("Multiple telephony lines detected (%s); ingestion is paused until one is chosen", strings.Join(lines, ", ")),
		tags:     []string{"calldesk", "line", "action-required"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Calldesk - Error",
		message:  builder.String(),
		tags:     []string{"calldesk", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Calldesk - Test",
		message:  "Notification system test",
		tags:     []string{"calldesk", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySlaExceeded(context.Context, string, time.Duration) error    { return nil }
func (noopService) NotifyMultiAgentCall(context.Context, int64, []string) error       { return nil }
func (noopService) NotifyLineSelectionRequired(context.Context, []string) error       { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
