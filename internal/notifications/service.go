package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dispatchscan/internal/config"
)

const userAgent = "dispatchscan/0.1.0"

// Service defines the notification surface used by the station.
type Service interface {
	NotifyScanFailure(ctx context.Context, channel, barcode, message string) error
	NotifyDeviceError(ctx context.Context, source string, err error) error
	NotifySessionEnded(ctx context.Context, channel string, scanned int, duration time.Duration) error
	TestNotification(ctx context.Context) error
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
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		failures:     cfg.Notifications.Failures,
		deviceErrors: cfg.Notifications.DeviceErrors,
		station:      strings.TrimSpace(cfg.Station.Operator),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	failures     bool
	deviceErrors bool
	station      string
}

func (n *ntfyService) NotifyScanFailure(ctx context.Context, channel, barcode, message string) error {
	if !n.failures {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "unknown error"
	}
	body := fmt.Sprintf("Scan %s on %s was not recorded: %s", strings.TrimSpace(barcode), strings.TrimSpace(channel), message)
	if n.station != "" {
		body += "\nStation: " + n.station
	}
	return n.send(ctx, payload{
		title:   "Dispatch - Scan Failed",
		message: body,
		tags:    []string{"dispatch", "scan", "failed"},
	})
}

func (n *ntfyService) NotifyDeviceError(ctx context.Context, source string, err error) error {
	if !n.deviceErrors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Capture device error")
	if source = strings.TrimSpace(source); source != "" {
		builder.WriteString(" on ")
		builder.WriteString(source)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	builder.WriteString("\nManual entry remains available.")
	return n.send(ctx, payload{
		title:    "Dispatch - Scanner Offline",
		message:  builder.String(),
		tags:     []string{"dispatch", "device", "error"},
		priority: "high",
	})
}

func (n *ntfyService) NotifySessionEnded(ctx context.Context, channel string, scanned int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	return n.send(ctx, payload{
		title:    "Dispatch - Session Ended",
		message:  fmt.Sprintf("Session on %s ended: %d scans recorded in %s", strings.TrimSpace(channel), scanned, duration),
		tags:     []string{"dispatch", "session", "completed"},
		priority: "low",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Dispatch - Test",
		message:  "Notification system test",
		tags:     []string{"dispatch", "test"},
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

func (noopService) NotifyScanFailure(context.Context, string, string, string) error      { return nil }
func (noopService) NotifyDeviceError(context.Context, string, error) error               { return nil }
func (noopService) NotifySessionEnded(context.Context, string, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
