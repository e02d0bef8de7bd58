// Package notifications pushes run progress to ntfy. Without a configured
// topic every call is a cheap no-op, so callers never need to guard.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"overdub/internal/config"
)

const userAgent = "Overdub/0.1.0"

// Service is the notification surface exposed to the pipeline.
type Service interface {
	NotifyRunStarted(ctx context.Context, source string) error
	NotifyStageCompleted(ctx context.Context, stage, detail string) error
	NotifyRunCompleted(ctx context.Context, source string, duration time.Duration) error
	NotifyRunDegraded(ctx context.Context, source, detail string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, source string) error {
	return n.send(ctx, payload{
		title:   "Overdub - Run Started",
		message: fmt.Sprintf("Started dubbing: %s", strings.TrimSpace(source)),
		tags:    []string{"overdub", "run", "started"},
	})
}

func (n *ntfyService) NotifyStageCompleted(ctx context.Context, stage, detail string) error {
	message := fmt.Sprintf("Stage complete: %s", strings.TrimSpace(stage))
	if detail = strings.TrimSpace(detail); detail != "" {
		message = fmt.Sprintf("%s\n%s", message, detail)
	}
	return n.send(ctx, payload{
		title:   "Overdub - Progress",
		message: message,
		tags:    []string{"overdub", "stage", "completed"},
	})
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, source string, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	return n.send(ctx, payload{
		title:    "Overdub - Complete",
		message:  fmt.Sprintf("Dub ready: %s (%s)", strings.TrimSpace(source), duration),
		tags:     []string{"overdub", "run", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyRunDegraded(ctx context.Context, source, detail string) error {
	message := fmt.Sprintf("Dub finished with issues: %s", strings.TrimSpace(source))
	if detail = strings.TrimSpace(detail); detail != "" {
		message = fmt.Sprintf("%s\n%s", message, detail)
	}
	return n.send(ctx, payload{
		title:   "Overdub - Degraded",
		message: message,
		tags:    []string{"overdub", "run", "degraded"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Overdub - Error",
		message:  builder.String(),
		tags:     []string{"overdub", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Overdub - Test",
		message:  "Notification system test",
		tags:     []string{"overdub", "test"},
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

func (noopService) NotifyRunStarted(context.Context, string) error                  { return nil }
func (noopService) NotifyStageCompleted(context.Context, string, string) error      { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, time.Duration) error { return nil }
func (noopService) NotifyRunDegraded(context.Context, string, string) error         { return nil }
func (noopService) NotifyError(context.Context, error, string) error                { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
