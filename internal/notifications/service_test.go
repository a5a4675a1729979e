package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dispatchscan/internal/config"
	"dispatchscan/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T) (*httptest.Server, chan captured) {
	t.Helper()
	ch := make(chan captured, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, ch
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyDeviceError(context.Background(), "device /dev/ttyACM0", errors.New("gone")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("nil config should yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	server, ch := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Station.Operator = "bay-3"
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	tests := []struct {
		name           string
		send           func() error
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "scan failure",
			send:        func() error { return svc.NotifyScanFailure(ctx, "amazon", "ORD-1", "Duplicate scan") },
			expectTitle: "Dispatch - Scan Failed",
			expectBody:  "Scan ORD-1 on amazon was not recorded: Duplicate scan\nStation: bay-3",
			expectTags:  "dispatch,scan,failed",
		},
		{
			name:           "device error",
			send:           func() error { return svc.NotifyDeviceError(ctx, "device /dev/ttyACM0", errors.New("no device present")) },
			expectTitle:    "Dispatch - Scanner Offline",
			expectBody:     "Capture device error on device /dev/ttyACM0: no device present\nManual entry remains available.",
			expectTags:     "dispatch,device,error",
			expectPriority: "high",
		},
		{
			name:           "session ended",
			send:           func() error { return svc.NotifySessionEnded(ctx, "flipkart", 12, 90*time.Minute) },
			expectTitle:    "Dispatch - Session Ended",
			expectBody:     "Session on flipkart ended: 12 scans recorded in 1h30m0s",
			expectTags:     "dispatch,session,completed",
			expectPriority: "low",
		},
		{
			name:           "test",
			send:           func() error { return svc.TestNotification(ctx) },
			expectTitle:    "Dispatch - Test",
			expectBody:     "Notification system test",
			expectTags:     "dispatch,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.send(); err != nil {
				t.Fatalf("send: %v", err)
			}
			got := <-ch
			if got.title != tc.expectTitle || got.body != tc.expectBody || got.tags != tc.expectTags || got.priority != tc.expectPriority {
				t.Fatalf("unexpected notification %+v", got)
			}
		})
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	server, ch := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Failures = false
	cfg.Notifications.DeviceErrors = false
	svc := notifications.NewService(&cfg)

	_ = svc.NotifyScanFailure(context.Background(), "amazon", "ORD-1", "x")
	_ = svc.NotifyDeviceError(context.Background(), "device", errors.New("x"))
	select {
	case got := <-ch:
		t.Fatalf("disabled notifications were sent: %+v", got)
	default:
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
