package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sunny/internal/config"
	"sunny/internal/sessions"
)

const userAgent = "Sunny-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifySessionStarted(ctx context.Context, session *sessions.Session) error
	NotifyRecordingStarted(ctx context.Context, session *sessions.Session) error
	NotifySessionCompleted(ctx context.Context, session *sessions.Session) error
	NotifySessionCancelled(ctx context.Context, session *sessions.Session) error
	NotifySessionFailed(ctx context.Context, session *sessions.Session) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no topic is configured a noop implementation is returned.
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
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		sessionEvents: cfg.Notifications.SessionEvents,
		errorEvents:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	sessionEvents bool
	errorEvents   bool
}

func sessionLabel(session *sessions.Session) string {
	if session == nil {
		return "unknown session"
	}
	if session.MeetingURL != "" {
		return fmt.Sprintf("session %d (%s)", session.ID, session.MeetingURL)
	}
	return fmt.Sprintf("session %d", session.ID)
}

func (n *ntfyService) NotifySessionStarted(ctx context.Context, session *sessions.Session) error {
	if !n.sessionEvents {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Sunny - Session Started",
		message: fmt.Sprintf("Joining meeting for %s", sessionLabel(session)),
		tags:    []string{"sunny", "session", "started"},
	})
}

func (n *ntfyService) NotifyRecordingStarted(ctx context.Context, session *sessions.Session) error {
	if !n.sessionEvents {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Sunny - Recording",
		message: fmt.Sprintf("Recording %s", sessionLabel(session)),
		tags:    []string{"sunny", "recording", "started"},
	})
}

func (n *ntfyService) NotifySessionCompleted(ctx context.Context, session *sessions.Session) error {
	if !n.sessionEvents {
		return nil
	}
	message := fmt.Sprintf("Report ready for %s", sessionLabel(session))
	if session != nil && session.ReportFile != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, session.ReportFile)
	}
	return n.send(ctx, payload{
		title:    "Sunny - Complete",
		message:  message,
		tags:     []string{"sunny", "session", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifySessionCancelled(ctx context.Context, session *sessions.Session) error {
	if !n.sessionEvents {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Sunny - Cancelled",
		message: fmt.Sprintf("Cancelled %s", sessionLabel(session)),
		tags:    []string{"sunny", "session", "cancelled"},
	})
}

func (n *ntfyService) NotifySessionFailed(ctx context.Context, session *sessions.Session) error {
	if !n.errorEvents {
		return nil
	}
	message := fmt.Sprintf("Failed %s", sessionLabel(session))
	if session != nil && session.ErrorMessage != "" {
		message = fmt.Sprintf("%s\n%s: %s", message, session.ErrorStage, session.ErrorMessage)
	}
	return n.send(ctx, payload{
		title:    "Sunny - Failed",
		message:  message,
		tags:     []string{"sunny", "session", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errorEvents {
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
	return n.send(ctx, payload{
		title:    "Sunny - Error",
		message:  builder.String(),
		tags:     []string{"sunny", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Sunny - Test",
		message:  "Notification system test",
		tags:     []string{"sunny", "test"},
		priority: "low",
	})
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

func (noopService) NotifySessionStarted(context.Context, *sessions.Session) error   { return nil }
func (noopService) NotifyRecordingStarted(context.Context, *sessions.Session) error { return nil }
func (noopService) NotifySessionCompleted(context.Context, *sessions.Session) error { return nil }
func (noopService) NotifySessionCancelled(context.Context, *sessions.Session) error { return nil }
func (noopService) NotifySessionFailed(context.Context, *sessions.Session) error    { return nil }
func (noopService) NotifyError(context.Context, error, string) error                { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
