package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/logging"
)

// ErrAlreadyRunning is returned when Start is called outside the Stopped state.
var ErrAlreadyRunning = errors.New("capture already running")

// Controller owns the lifecycle of one capture source.
type Controller struct {
	source     Source
	logger     *slog.Logger
	hasChannel func() bool

	mu      sync.Mutex
	state   State
	current *StopHandle
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithChannelCheck refuses Start while check reports no session channel.
func WithChannelCheck(check func() bool) ControllerOption {
	return func(c *Controller) {
		c.hasChannel = check
	}
}

// WithControllerLogger attaches a logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController wraps source.
func NewController(source Source, opts ...ControllerOption) *Controller {
	c := &Controller{source: source, state: StateStopped, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "capture")
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SourceName describes the configured source.
func (c *Controller) SourceName() string {
	if c.source == nil {
		return "none"
	}
	return c.source.Name()
}

// Start acquires the device and begins delivering detections. The returned
// handle must be stopped to release the device; cancelling ctx also stops it.
func (c *Controller) Start(ctx context.Context, onDetect DetectFunc, onError ErrorFunc) (*StopHandle, error) {
	if c.source == nil {
		return nil, dispatch.Wrap(dispatch.ErrDeviceAcquisition, "capture", "start", "no capture source configured", nil)
	}
	if c.hasChannel != nil && !c.hasChannel() {
		return nil, dispatch.ErrNoChannel
	}
	if onDetect == nil {
		return nil, errors.New("capture: detect callback required")
	}

	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	c.state = StateStarting
	c.mu.Unlock()

	device, err := c.source.Acquire(ctx)
	if err != nil {
		c.setState(StateStopped)
		if !errors.Is(err, dispatch.ErrDeviceAcquisition) {
			err = dispatch.Wrap(dispatch.ErrDeviceAcquisition, "capture", "acquire", c.source.Name(), err)
		}
		logging.WarnWithContext(c.logger, "capture device acquisition failed", "capture_acquire_failed",
			logging.String("source", c.source.Name()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the device is connected and not used by another process, then start again"),
			logging.String(logging.FieldImpact, "camera capture unavailable; manual entry still works"),
		)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle := &StopHandle{cancel: cancel, device: device, done: make(chan struct{})}

	c.mu.Lock()
	c.state = StateRunning
	c.current = handle
	c.mu.Unlock()

	c.logger.Info("capture started",
		logging.String(logging.FieldEventType, "capture_started"),
		logging.String("source", c.source.Name()),
	)

	go handle.watch(runCtx, device)
	go c.readLoop(handle, device, onDetect, onError)
	return handle, nil
}

// Stop stops the running source, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	handle := c.current
	c.mu.Unlock()
	if handle != nil {
		handle.Stop()
	}
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Controller) readLoop(handle *StopHandle, device Device, onDetect DetectFunc, onError ErrorFunc) {
	defer func() {
		handle.cancel()
		handle.release()
		c.mu.Lock()
		if c.current == handle {
			c.current = nil
		}
		c.state = StateStopped
		c.mu.Unlock()
		c.logger.Info("capture stopped",
			logging.String(logging.FieldEventType, "capture_stopped"),
			logging.String("source", c.source.Name()),
		)
		close(handle.done)
	}()

	scanner := bufio.NewScanner(device)
	scanner.Buffer(make([]byte, 0, 256), maxLineBytes)
	scanner.Split(scanDecodedLines)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		onDetect(text)
	}

	if handle.stopping() {
		return
	}
	cause := handle.lossCause()
	if cause == nil {
		cause = scanner.Err()
	}
	reason := "capture source ended"
	if cause != nil {
		reason = "capture source failed"
	}
	err := dispatch.Wrap(dispatch.ErrDeviceAcquisition, "capture", "read", fmt.Sprintf("%s: %s", c.source.Name(), reason), cause)
	logging.WarnWithContext(c.logger, reason, "capture_lost",
		logging.String("source", c.source.Name()),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "reconnect the scanner and start capture again"),
		logging.String(logging.FieldImpact, "camera capture stopped; manual entry still works"),
	)
	if onError != nil {
		onError(err)
	}
}

// StopHandle stops a running capture source.
type StopHandle struct {
	cancel context.CancelFunc
	device Device
	done   chan struct{}

	mu       sync.Mutex
	released bool
	stopped  bool
	lost     error
}

// Stop releases the device and waits for the read loop to exit. It is
// idempotent and safe to call from any goroutine except a DetectFunc.
func (h *StopHandle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
	h.release()
	<-h.done
}

// Done is closed once the source has stopped and released the device.
func (h *StopHandle) Done() <-chan struct{} {
	return h.done
}

func (h *StopHandle) stopping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

func (h *StopHandle) lossCause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lost
}

func (h *StopHandle) release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.mu.Unlock()
	_ = h.device.Release()
}

// watch releases the device when ctx ends or the device reports loss, which
// unblocks the read loop.
func (h *StopHandle) watch(ctx context.Context, device Device) {
	var lost <-chan error
	if notifier, ok := device.(lossNotifier); ok {
		lost = notifier.Lost()
	}
	select {
	case <-ctx.Done():
		h.mu.Lock()
		h.stopped = true
		h.mu.Unlock()
	case err := <-lost:
		if err == nil {
			err = errors.New("device removed")
		}
		h.mu.Lock()
		h.lost = err
		h.mu.Unlock()
	case <-h.done:
		return
	}
	h.release()
}
