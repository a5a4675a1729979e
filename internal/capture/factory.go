package capture

import (
	"fmt"
	"log/slog"

	"dispatchscan/internal/config"
)

// FromConfig builds the configured source. It returns nil when capture is
// disabled and the station runs on manual entry only.
func FromConfig(cfg *config.Config, logger *slog.Logger) (Source, error) {
	switch cfg.Capture.Source {
	case config.CaptureSourceNone, "":
		return nil, nil
	case config.CaptureSourceDevice:
		return &DeviceSource{
			Path:         cfg.Capture.Device,
			LockDir:      cfg.Capture.LockDir,
			Logger:       logger,
			WatchRemoval: true,
		}, nil
	case config.CaptureSourceCommand:
		return &CommandSource{
			Argv:   append([]string(nil), cfg.Capture.Command...),
			Logger: logger,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported capture source %q", cfg.Capture.Source)
	}
}
