package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dispatchscan/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Capture.LockDir = filepath.Join(base, "locks")
	cfgVal.Capture.Source = config.CaptureSourceNone
	cfgVal.Station.Operator = "tester"
	cfgVal.Station.WarehouseID = "WH-1"
	cfgVal.Station.StatusBind = ""
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIBaseURL points the config at a fake backend.
func WithAPIBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.BaseURL = url
	}
}

// WithChannels restricts the allowed session channels.
func WithChannels(channels ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Station.Channels = append([]string(nil), channels...)
	}
}

// WithCaptureCommand selects the command capture source with argv.
func WithCaptureCommand(argv ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.Source = config.CaptureSourceCommand
		b.cfg.Capture.Command = append([]string(nil), argv...)
	}
}

// WithNtfyTopic sets the notification endpoint.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithStubbedBinaries writes shell scripts for the provided names and
// prepends them to PATH. Each entry maps a binary name to its script body.
func WithStubbedBinaries(scripts map[string]string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for name, body := range scripts {
			if body == "" {
				body = "exit 0\n"
			}
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
