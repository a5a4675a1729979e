package config

const (
	defaultConfigPath            = "~/.config/dispatchscan/config.toml"
	defaultStateDir              = "~/.local/share/dispatchscan"
	defaultLogDir                = "~/.local/share/dispatchscan/logs"
	defaultLockDir               = "~/.local/share/dispatchscan/locks"
	defaultAPIBaseURL            = "http://127.0.0.1:8000/api"
	defaultCaptureSource         = CaptureSourceNone
	defaultCaptureDevice         = "/dev/ttyACM0"
	defaultScanAction            = "dispatch"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultNotifyRequestTimeout  = 10
	defaultStatusBind            = "127.0.0.1:7580"
	defaultOperatorFallbackLabel = "station"
)

// Capture source identifiers accepted in [capture].source.
const (
	CaptureSourceDevice  = "device"
	CaptureSourceCommand = "command"
	CaptureSourceNone    = "none"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		API: API{
			BaseURL: defaultAPIBaseURL,
		},
		Station: Station{
			DefaultAction: defaultScanAction,
			StatusBind:    defaultStatusBind,
		},
		Capture: Capture{
			Source:  defaultCaptureSource,
			Device:  defaultCaptureDevice,
			Command: []string{"zbarcam", "--raw", "--nodisplay", "/dev/video0"},
			LockDir: defaultLockDir,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Failures:       true,
			DeviceErrors:   true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
