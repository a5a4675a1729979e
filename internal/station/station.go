package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"dispatchscan/internal/backend"
	"dispatchscan/internal/capture"
	"dispatchscan/internal/config"
	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/logging"
	"dispatchscan/internal/metrics"
	"dispatchscan/internal/notifications"
	"dispatchscan/internal/pipeline"
	"dispatchscan/internal/session"
	"dispatchscan/internal/statusapi"
	"dispatchscan/internal/store"
)

// ErrStationBusy reports that another session holds the station lock.
var ErrStationBusy = errors.New("another dispatchscan session is already running on this station")

// Options configures Open. Config is required.
type Options struct {
	Config    *config.Config
	Logger    *slog.Logger
	SessionID string
	// Confirmer answers cancel confirmations. Nil declines every cancel.
	Confirmer pipeline.Confirmer
	// Reporter receives every feedback after the station's own handling.
	Reporter pipeline.Reporter
	// Backend overrides the HTTP client built from Config.
	Backend pipeline.Backend
	// Source overrides the capture source built from Config.
	Source   capture.Source
	Notifier notifications.Service
	Now      func() time.Time
}

// Station is one running scanning session.
type Station struct {
	cfg       *config.Config
	logger    *slog.Logger
	sessionID string
	startedAt time.Time

	lockPath string
	lock     *flock.Flock

	store    *store.Store
	session  *session.State
	backend  pipeline.Backend
	pipeline *pipeline.Pipeline
	capture  *capture.Controller
	notifier notifications.Service
	metrics  *metrics.Recorder
	status   *statusapi.Server
	reporter pipeline.Reporter

	// captureMu orders capture start and stop against channel unlock.
	captureMu sync.Mutex

	mu      sync.Mutex
	runCtx  context.Context
	handle  *capture.StopHandle
	closed  bool
	pending sync.WaitGroup
}

// Open acquires the station lock and builds every session component. Nothing
// touches the network until Start.
func Open(ctx context.Context, opts Options) (*Station, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("station: config required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldSessionID, sessionID))
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Station{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "station"),
		sessionID: sessionID,
		startedAt: now(),
		lockPath:  cfg.StationLockPath(),
		reporter:  opts.Reporter,
		notifier:  opts.Notifier,
		metrics:   metrics.New(),
	}
	s.lock = flock.New(s.lockPath)
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire station lock: %w", err)
	}
	if !ok {
		return nil, ErrStationBusy
	}

	if err := s.build(ctx, opts, logger, now); err != nil {
		s.releaseLock()
		if s.store != nil {
			_ = s.store.Close()
		}
		return nil, err
	}
	return s, nil
}

func (s *Station) build(ctx context.Context, opts Options, logger *slog.Logger, now func() time.Time) error {
	cfg := s.cfg
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open station store: %w", err)
	}
	s.store = st

	action, err := dispatch.ParseScanAction(cfg.Station.DefaultAction)
	if err != nil {
		action = dispatch.ActionDispatch
	}
	state, err := session.Load(ctx, st,
		session.WithLogger(logger),
		session.WithChannelFilter(cfg.ChannelAllowed),
		session.WithAction(action),
	)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	s.session = state

	s.backend = opts.Backend
	if s.backend == nil {
		client, err := backend.New(cfg.API.BaseURL, cfg.API.Token,
			backend.WithTimeout(cfg.APIRequestTimeout()),
			backend.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("backend client: %w", err)
		}
		s.backend = client
	}
	if s.notifier == nil {
		s.notifier = notifications.NewService(cfg)
	}

	p, err := pipeline.New(pipeline.Options{
		Session:     state,
		Backend:     s.backend,
		Confirmer:   opts.Confirmer,
		Reporter:    pipeline.ReporterFunc(s.report),
		Journal:     st,
		Metrics:     s.metrics,
		Logger:      logger,
		WarehouseID: cfg.Station.WarehouseID,
		SessionID:   s.sessionID,
		Now:         now,
	})
	if err != nil {
		return err
	}
	s.pipeline = p

	source := opts.Source
	if source == nil {
		source, err = capture.FromConfig(cfg, logger)
		if err != nil {
			return fmt.Errorf("capture source: %w", err)
		}
	}
	s.capture = capture.NewController(source,
		capture.WithChannelCheck(func() bool {
			_, ok := state.Channel()
			return ok
		}),
		capture.WithControllerLogger(logger),
	)

	s.status = statusapi.New(cfg.Station.StatusBind, s,
		statusapi.WithToken(cfg.Station.StatusToken),
		statusapi.WithMetrics(s.metrics.Handler()),
		statusapi.WithLogger(logger),
	)
	return nil
}

// Start seeds the ledger from the backend and starts the status API. A
// seeding failure is logged and the session continues with an empty ledger.
func (s *Station) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	if seeder, ok := s.backend.(pipeline.Seeder); ok {
		if err := s.pipeline.Seed(ctx, seeder); err != nil {
			logging.WarnWithContext(s.logger, "recent scans unavailable", "ledger_seed_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check api.base_url and the backend token"),
				logging.String(logging.FieldImpact, "ledger starts empty; today's count starts at zero"),
			)
		}
	}
	if err := s.status.Start(ctx); err != nil {
		return err
	}
	s.logger.Info("session started",
		logging.String(logging.FieldEventType, "session_started"),
		logging.String("operator", s.cfg.Station.Operator),
		logging.String("capture_source", s.capture.SourceName()),
	)
	return nil
}

// SessionID identifies this session in logs and the journal.
func (s *Station) SessionID() string { return s.sessionID }

// Pipeline exposes the scan pipeline.
func (s *Station) Pipeline() *pipeline.Pipeline { return s.pipeline }

// Session exposes the session state.
func (s *Station) Session() *session.State { return s.session }

// Store exposes the local station store.
func (s *Station) Store() *store.Store { return s.store }

// StatusAddr returns the status API address, or "" when disabled.
func (s *Station) StatusAddr() string { return s.status.Addr() }

// LockChannel locks the session to channel.
func (s *Station) LockChannel(channel string) error {
	if err := s.session.Lock(channel); err != nil {
		return err
	}
	name, _ := s.session.Channel()
	s.logger.Info("channel locked", logging.String(logging.FieldChannel, name))
	return nil
}

// UnlockChannel clears the channel lock. Capture is stopped first since it
// cannot run without a channel.
func (s *Station) UnlockChannel(confirmed bool) error {
	if !confirmed {
		return s.session.Unlock(false)
	}
	s.captureMu.Lock()
	defer s.captureMu.Unlock()
	s.stopCapture()
	return s.session.Unlock(true)
}

// ApplySettings persists settings and lets the pipeline react to them.
func (s *Station) ApplySettings(ctx context.Context, next dispatch.Settings) error {
	if err := s.session.ApplySettings(ctx, next); err != nil {
		return err
	}
	s.pipeline.SettingsChanged(s.session.Settings())
	return nil
}

// StartCapture acquires the capture source and routes detections into the
// pipeline. Acquisition failures are returned and never retried.
func (s *Station) StartCapture(ctx context.Context) error {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	s.mu.Lock()
	runCtx := s.runCtx
	s.mu.Unlock()
	if runCtx == nil {
		runCtx = ctx
	}

	handle, err := s.capture.Start(runCtx,
		func(text string) { s.pipeline.Detect(runCtx, text) },
		s.deviceLost,
	)
	if err != nil {
		if errors.Is(err, dispatch.ErrDeviceAcquisition) {
			s.notifyDevice(err)
		}
		return err
	}

	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()
	s.metrics.CaptureRunning(s.capture.SourceName(), true)
	go func() {
		<-handle.Done()
		s.metrics.CaptureRunning(s.capture.SourceName(), false)
	}()
	return nil
}

// StopCapture stops the capture source and waits for the device release.
func (s *Station) StopCapture() {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()
	s.stopCapture()
}

func (s *Station) stopCapture() {
	s.mu.Lock()
	handle := s.handle
	s.handle = nil
	s.mu.Unlock()
	if handle != nil {
		handle.Stop()
	}
}

// CaptureState reports the capture lifecycle state.
func (s *Station) CaptureState() capture.State { return s.capture.State() }

// Status implements statusapi.Provider.
func (s *Station) Status() statusapi.Status {
	return statusapi.Status{
		SessionID:    s.sessionID,
		StartedAt:    s.startedAt,
		Session:      s.session.Snapshot(),
		Capture:      string(s.capture.State()),
		CaptureName:  s.capture.SourceName(),
		Busy:         s.pipeline.Busy(),
		AwaitingNext: s.pipeline.AwaitingNext(),
		TodayCount:   s.pipeline.Ledger().TodayCount(),
	}
}

// RecentScans implements statusapi.Provider.
func (s *Station) RecentScans() []dispatch.ScanRecord {
	return s.pipeline.Ledger().Records()
}

// ReadyForNext implements statusapi.Provider.
func (s *Station) ReadyForNext() bool {
	return s.pipeline.ReadyForNext()
}

// Close stops capture, waits for in-flight scans, sends the session summary,
// and releases the store and station lock. It is safe to call more than once.
func (s *Station) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.StopCapture()
	s.pipeline.Wait()
	s.status.Stop()

	channel, _ := s.session.Channel()
	scanned := s.pipeline.Ledger().TodayCount()
	elapsed := time.Since(s.startedAt)
	if err := s.notifier.NotifySessionEnded(context.Background(), channel, scanned, elapsed); err != nil {
		s.logger.Debug("session summary notification failed", logging.Error(err))
	}
	s.pending.Wait()

	s.logger.Info("session ended",
		logging.String(logging.FieldEventType, "session_ended"),
		logging.Int("today_count", scanned),
		logging.Duration("duration", elapsed),
	)

	var closeErr error
	if s.store != nil {
		closeErr = s.store.Close()
	}
	s.releaseLock()
	return closeErr
}

func (s *Station) releaseLock() {
	if s.lock == nil {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release station lock", logging.Error(err), logging.String("lock", s.lockPath))
	}
}
