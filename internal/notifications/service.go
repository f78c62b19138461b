package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voxdub/internal/config"
)

const userAgent = "voxdub/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event fields. Keys depend on the event.
type Payload map[string]any

// Service publishes events to the configured transport.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventJobCompleted: cfg.Notifications.JobCompleted,
			EventJobFailed:    cfg.Notifications.JobFailed,
			EventError:        true,
			EventTest:         true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobCompleted:
		body := fmt.Sprintf("✅ Dub ready: %s → %s", displayName(payload), text(payload, "targetLanguage"))
		if provider := text(payload, "provider"); provider != "" {
			body += fmt.Sprintf("\nVoice: %s", provider)
		}
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body += fmt.Sprintf("\nTook %s", d.Round(time.Second))
		}
		return message{
			title: "voxdub - Complete",
			body:  body,
			tags:  []string{"voxdub", "job", "completed"},
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("❌ Dub failed: %s", displayName(payload))
		if step := text(payload, "step"); step != "" {
			body += fmt.Sprintf(" during %s", strings.TrimSuffix(strings.ToLower(step), "..."))
		}
		if reason := text(payload, "error"); reason != "" {
			body += "\n" + reason
		}
		return message{
			title:    "voxdub - Failed",
			body:     body,
			tags:     []string{"voxdub", "job", "failed"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := text(payload, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if reason := text(payload, "error"); reason != "" {
			b.WriteString(reason)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "voxdub - Error",
			body:     b.String(),
			tags:     []string{"voxdub", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "voxdub - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"voxdub", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func displayName(payload Payload) string {
	if name := text(payload, "filename"); name != "" {
		return name
	}
	return text(payload, "jobID")
}

func text(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		if v != nil {
			return strings.TrimSpace(v.Error())
		}
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	}
	return ""
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
