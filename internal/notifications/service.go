package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"camtrap/internal/config"
	"camtrap/internal/detection"
	"camtrap/internal/textutil"
)

const userAgent = "camtrap/0.1.0"

// Service defines the notification surface used by the workflow and the CLI.
type Service interface {
	NotifyDetectionComplete(ctx context.Context, dataset string, summary detection.Summary, duration time.Duration) error
	NotifyExportComplete(ctx context.Context, format, outputPath string, images int) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
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
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		detection: cfg.Notifications.Detection,
		exports:   cfg.Notifications.Exports,
		errors:    cfg.Notifications.Errors,
	}
}

// NewNoop returns a service that drops every notification.
func NewNoop() Service { return noopService{} }

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	detection bool
	exports   bool
	errors    bool
}

func (n *ntfyService) NotifyDetectionComplete(ctx context.Context, dataset string, summary detection.Summary, duration time.Duration) error {
	if !n.detection {
		return nil
	}
	label := textutil.DatasetLabel(dataset)
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d images in %s: %d with animals, %d with humans, %d with vehicles, %d empty",
		summary.Images, roundDuration(duration), summary.Animals, summary.Humans, summary.Vehicles, summary.Empty)
	if summary.Failed > 0 {
		fmt.Fprintf(&b, "\n%d images could not be processed", summary.Failed)
	}
	return n.send(ctx, payload{
		title:   "camtrap - Processing Complete: " + label,
		message: b.String(),
		tags:    []string{"camtrap", "detection", "completed"},
	})
}

func (n *ntfyService) NotifyExportComplete(ctx context.Context, format, outputPath string, images int) error {
	if !n.exports {
		return nil
	}
	return n.send(ctx, payload{
		title:   "camtrap - Export Complete",
		message: fmt.Sprintf("%s export finished (%d images)\n%s", textutil.Title(format), images, strings.TrimSpace(outputPath)),
		tags:    []string{"camtrap", "export", format},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	if err != nil {
		builder.WriteString(": ")
		builder.WriteString(err.Error())
	}
	return n.send(ctx, payload{
		title:    "camtrap - Error",
		message:  builder.String(),
		tags:     []string{"camtrap", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "camtrap - Test",
		message:  "Notification system test",
		tags:     []string{"camtrap", "test"},
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

func roundDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifyDetectionComplete(context.Context, string, detection.Summary, time.Duration) error {
	return nil
}
func (noopService) NotifyExportComplete(context.Context, string, string, int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
