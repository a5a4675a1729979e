package capture

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"dispatchscan/internal/logging"
)

// removalWatcher listens for udev remove events for one device node.
type removalWatcher struct {
	device string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	removed chan error
	fired   bool
}

func newRemovalWatcher(device string, logger *slog.Logger) *removalWatcher {
	return &removalWatcher{
		device:  device,
		logger:  logging.NewComponentLogger(logger, "udev-watch"),
		removed: make(chan error, 1),
	}
}

// Start connects to the kernel uevent socket.
func (w *removalWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return fmt.Errorf("connect netlink: %w", err)
	}
	w.conn = conn
	w.quit = make(chan struct{})

	quit := w.quit
	go w.loop(ctx, conn, quit)
	return nil
}

// Removed receives once when the device disappears.
func (w *removalWatcher) Removed() <-chan error {
	return w.removed
}

// Stop closes the netlink socket.
func (w *removalWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
}

func (w *removalWatcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, w.matcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			if w.matches(uevent) {
				w.fire(fmt.Errorf("device %s removed", w.device))
			}
		case err := <-errs:
			w.logger.Debug("netlink monitor error", logging.Error(err))
		}
	}
}

// matcher selects remove events whose DEVNAME ends with the device node name.
// Kernel events carry the bare name and udev events the full /dev path.
func (w *removalWatcher) matcher() netlink.Matcher {
	action := "remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"DEVNAME": "(^|/)" + regexp.QuoteMeta(filepath.Base(w.device)) + "$",
		},
	})
	return rules
}

func (w *removalWatcher) matches(uevent netlink.UEvent) bool {
	if string(uevent.Action) != "remove" {
		return false
	}
	devname := uevent.Env["DEVNAME"]
	if devname == "" {
		return false
	}
	return filepath.Base(devname) == filepath.Base(w.device)
}

func (w *removalWatcher) fire(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fired {
		return
	}
	w.fired = true
	w.logger.Info("capture device removed",
		logging.String(logging.FieldEventType, "capture_device_removed"),
		logging.String("device", w.device),
	)
	w.removed <- err
}
