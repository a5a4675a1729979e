package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/logging"
)

// Persisted setting keys.
const (
	KeyAutoSubmit     = "dispatch_auto_submit"
	KeyValidationMode = "dispatch_validation_mode"
)

// SettingsStore is the persistence the session needs for scanner settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSettings(ctx context.Context, values map[string]string) error
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	Settings dispatch.Settings   `json:"settings"`
	Channel  string              `json:"channel,omitempty"`
	Locked   bool                `json:"locked"`
	Action   dispatch.ScanAction `json:"scan_action"`
}

// State holds the settings and session lock for one scanning session.
type State struct {
	mu       sync.RWMutex
	store    SettingsStore
	logger   *slog.Logger
	allow    func(string) bool
	settings dispatch.Settings
	channel  string
	action   dispatch.ScanAction
}

// Option configures a State.
type Option func(*State)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *State) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithChannelFilter restricts which channel names may be locked.
func WithChannelFilter(allow func(string) bool) Option {
	return func(s *State) {
		s.allow = allow
	}
}

// WithAction sets the initial scan action.
func WithAction(action dispatch.ScanAction) Option {
	return func(s *State) {
		if action != "" {
			s.action = action
		}
	}
}

// Load builds session state, reading scanner settings from store. Missing or
// unparsable keys fall back to the defaults individually.
func Load(ctx context.Context, store SettingsStore, opts ...Option) (*State, error) {
	if store == nil {
		return nil, errors.New("session: settings store required")
	}
	s := &State{
		store:    store,
		logger:   logging.NewNop(),
		settings: dispatch.DefaultSettings(),
		action:   dispatch.ActionDispatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "session")

	if raw, ok, err := store.GetSetting(ctx, KeyAutoSubmit); err != nil {
		return nil, fmt.Errorf("load %s: %w", KeyAutoSubmit, err)
	} else if ok {
		if value, parseErr := strconv.ParseBool(strings.TrimSpace(raw)); parseErr == nil {
			s.settings.AutoSubmit = value
		} else {
			s.warnInvalid(KeyAutoSubmit, raw)
		}
	}

	if raw, ok, err := store.GetSetting(ctx, KeyValidationMode); err != nil {
		return nil, fmt.Errorf("load %s: %w", KeyValidationMode, err)
	} else if ok {
		if mode, parseErr := dispatch.ParseValidationMode(raw); parseErr == nil {
			s.settings.ValidationMode = mode
		} else {
			s.warnInvalid(KeyValidationMode, raw)
		}
	}

	s.logger.Debug("scanner settings loaded",
		logging.Bool("auto_submit", s.settings.AutoSubmit),
		logging.String(logging.FieldValidationMode, string(s.settings.ValidationMode)),
	)
	return s, nil
}

func (s *State) warnInvalid(key, raw string) {
	logging.WarnWithContext(s.logger, "ignoring invalid stored setting", "setting_invalid",
		logging.String("key", key),
		logging.String("value", raw),
		logging.String(logging.FieldErrorHint, "re-apply settings with dispatchscan settings set"),
		logging.String(logging.FieldImpact, "default value used for this session"),
	)
}

// Settings returns the current scanner settings.
func (s *State) Settings() dispatch.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// ApplySettings persists next and, once the write succeeds, makes it current.
func (s *State) ApplySettings(ctx context.Context, next dispatch.Settings) error {
	mode, err := dispatch.ParseValidationMode(string(next.ValidationMode))
	if err != nil {
		return err
	}
	next.ValidationMode = mode

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SetSettings(ctx, map[string]string{
		KeyAutoSubmit:     strconv.FormatBool(next.AutoSubmit),
		KeyValidationMode: string(next.ValidationMode),
	}); err != nil {
		return fmt.Errorf("persist scanner settings: %w", err)
	}
	s.settings = next
	s.logger.Info("scanner settings applied",
		logging.String(logging.FieldEventType, "settings_applied"),
		logging.Bool("auto_submit", next.AutoSubmit),
		logging.String(logging.FieldValidationMode, string(next.ValidationMode)),
	)
	return nil
}

// Channel returns the locked channel and whether one is set.
func (s *State) Channel() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel, s.channel != ""
}

// Lock selects the session channel. It fails with dispatch.ErrChannelLocked
// when a channel is already locked, leaving it unchanged.
func (s *State) Lock(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return dispatch.Wrap(dispatch.ErrUserInput, "session", "lock", "channel name required", nil)
	}
	if s.allow != nil && !s.allow(name) {
		return dispatch.Wrap(dispatch.ErrUserInput, "session", "lock", fmt.Sprintf("channel %q is not configured", name), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != "" {
		return fmt.Errorf("%w: %s", dispatch.ErrChannelLocked, s.channel)
	}
	s.channel = name
	s.logger.Info("session channel locked",
		logging.String(logging.FieldEventType, "channel_locked"),
		logging.String(logging.FieldChannel, name),
	)
	return nil
}

// Unlock clears the channel. The operator must have confirmed; an unconfirmed
// unlock is rejected and the channel stays locked.
func (s *State) Unlock(confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel == "" {
		return nil
	}
	if !confirmed {
		return dispatch.Wrap(dispatch.ErrUserInput, "session", "unlock", "unlock requires confirmation", nil)
	}
	previous := s.channel
	s.channel = ""
	s.logger.Info("session channel unlocked",
		logging.String(logging.FieldEventType, "channel_unlocked"),
		logging.String(logging.FieldChannel, previous),
	)
	return nil
}

// Action returns the selected scan action.
func (s *State) Action() dispatch.ScanAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.action
}

// SetAction selects the scan action for subsequent scans.
func (s *State) SetAction(action dispatch.ScanAction) error {
	parsed, err := dispatch.ParseScanAction(string(action))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.action = parsed
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Settings: s.settings,
		Channel:  s.channel,
		Locked:   s.channel != "",
		Action:   s.action,
	}
}
