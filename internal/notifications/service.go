package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"subgen/internal/config"
)

const userAgent = "subgen/0.1.0"

// Service defines the events watch mode reports.
type Service interface {
	NotifyPackaged(ctx context.Context, source, bundle string) error
	NotifyFailed(ctx context.Context, source string, err error) error
	NotifyWatchStopped(ctx context.Context, processed, failed int64, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
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

func (n *ntfyService) NotifyPackaged(ctx context.Context, source, bundle string) error {
	message := fmt.Sprintf("Subtitles ready: %s", filepath.Base(strings.TrimSpace(source)))
	if bundle = strings.TrimSpace(bundle); bundle != "" {
		message = fmt.Sprintf("%s\nBundle: %s", message, bundle)
	}
	return n.send(ctx, payload{
		title:   "subgen - Packaged",
		message: message,
		tags:    []string{"subgen", "package", "completed"},
	})
}

func (n *ntfyService) NotifyFailed(ctx context.Context, source string, err error) error {
	var builder strings.Builder
	builder.WriteString("Failed: ")
	builder.WriteString(filepath.Base(strings.TrimSpace(source)))
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}
	return n.send(ctx, payload{
		title:    "subgen - Error",
		message:  builder.String(),
		tags:     []string{"subgen", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyWatchStopped(ctx context.Context, processed, failed int64, duration time.Duration) error {
	duration = max(duration.Round(time.Second), 0)
	title := "subgen - Watch Stopped"
	message := fmt.Sprintf("Watch stopped after %s: %d files packaged", duration, processed)
	if failed > 0 {
		title = "subgen - Watch Stopped (with errors)"
		message = fmt.Sprintf("Watch stopped after %s: %d packaged, %d failed", duration, processed, failed)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"subgen", "watch", "stopped"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "subgen - Test",
		message:  "Notification system test",
		tags:     []string{"subgen", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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
	if data.priority != "" {
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

func (noopService) NotifyPackaged(context.Context, string, string) error { return nil }
func (noopService) NotifyFailed(context.Context, string, error) error    { return nil }
func (noopService) NotifyWatchStopped(context.Context, int64, int64, time.Duration) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
