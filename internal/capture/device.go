package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/logging"
)

// DeviceSource reads a scanner exposed as a character device, such as a USB
// CDC-ACM serial scanner at /dev/ttyACM0.
type DeviceSource struct {
	Path    string
	LockDir string
	Logger  *slog.Logger
	// WatchRemoval subscribes to udev remove events for the device.
	WatchRemoval bool
}

// Name implements Source.
func (s *DeviceSource) Name() string {
	return "device " + s.Path
}

// Acquire checks presence and permissions, takes an exclusive lock, and opens
// the device.
func (s *DeviceSource) Acquire(ctx context.Context) (Device, error) {
	path := strings.TrimSpace(s.Path)
	if path == "" {
		return nil, acquireError(s.Path, "no device configured", nil)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, acquireError(path, "no device present", err)
		}
		return nil, acquireError(path, "stat device", err)
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return nil, acquireError(path, "permission denied", err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}

	lock, err := s.lock(resolved)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(resolved, os.O_RDONLY|unix.O_NOCTTY, 0)
	if err != nil {
		_ = lock.Unlock()
		if errors.Is(err, fs.ErrPermission) {
			return nil, acquireError(path, "permission denied", err)
		}
		if errors.Is(err, unix.EBUSY) {
			return nil, acquireError(path, "device already in use", err)
		}
		return nil, acquireError(path, "open device", err)
	}
	disableEcho(file)

	dev := &deviceHandle{file: file, lock: lock}
	if s.WatchRemoval {
		dev.watcher = newRemovalWatcher(resolved, s.Logger)
		if err := dev.watcher.Start(ctx); err != nil {
			logging.WarnWithContext(s.Logger, "device removal watch unavailable", "capture_udev_unavailable",
				logging.String("device", resolved),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "ensure the process may open netlink sockets"),
				logging.String(logging.FieldImpact, "unplugging the scanner is detected only when reads fail"),
			)
			dev.watcher = nil
		}
	}
	return dev, nil
}

func (s *DeviceSource) lock(device string) (*flock.Flock, error) {
	dir := strings.TrimSpace(s.LockDir)
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, acquireError(device, "create lock directory", err)
	}
	name := strings.NewReplacer("/", "_").Replace(strings.TrimPrefix(device, "/")) + ".lock"
	lock := flock.New(filepath.Join(dir, name))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, acquireError(device, "lock device", err)
	}
	if !locked {
		return nil, acquireError(device, "device already in use", nil)
	}
	return lock, nil
}

// disableEcho turns off terminal echo so decoded text is not reflected back
// to the scanner. Non-terminal devices are left untouched.
func disableEcho(file *os.File) {
	fd := int(file.Fd())
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return
	}
	termios.Lflag &^= unix.ECHO | unix.ECHONL
	_ = unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}

func acquireError(device, message string, err error) error {
	return dispatch.Wrap(dispatch.ErrDeviceAcquisition, "capture", "acquire", fmt.Sprintf("%s: %s", device, message), err)
}

type deviceHandle struct {
	file    *os.File
	lock    *flock.Flock
	watcher *removalWatcher

	once sync.Once
	err  error
}

func (d *deviceHandle) Read(p []byte) (int, error) {
	return d.file.Read(p)
}

func (d *deviceHandle) Lost() <-chan error {
	if d.watcher == nil {
		return nil
	}
	return d.watcher.Removed()
}

func (d *deviceHandle) Release() error {
	d.once.Do(func() {
		if d.watcher != nil {
			d.watcher.Stop()
		}
		d.err = d.file.Close()
		if err := d.lock.Unlock(); err != nil && d.err == nil {
			d.err = err
		}
	})
	return d.err
}
