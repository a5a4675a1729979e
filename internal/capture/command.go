package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"dispatchscan/internal/logging"
)

const defaultStartupGrace = 500 * time.Millisecond

// CommandSource runs an external decoder that prints one decoded barcode per
// line on stdout, for example `zbarcam --raw --nodisplay /dev/video0`.
type CommandSource struct {
	Argv   []string
	Logger *slog.Logger
	// StartupGrace is how long Acquire waits for an early failing exit, which
	// is how decoders report a missing or busy camera.
	StartupGrace time.Duration
}

// Name implements Source.
func (s *CommandSource) Name() string {
	if len(s.Argv) == 0 {
		return "command"
	}
	return "command " + s.Argv[0]
}

// Acquire starts the decoder process.
func (s *CommandSource) Acquire(ctx context.Context) (Device, error) {
	if len(s.Argv) == 0 || strings.TrimSpace(s.Argv[0]) == "" {
		return nil, acquireError("command", "no decoder command configured", nil)
	}
	binary, err := exec.LookPath(s.Argv[0])
	if err != nil {
		return nil, acquireError(s.Argv[0], "decoder not installed", err)
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, acquireError(s.Argv[0], "create pipe", err)
	}

	cmd := exec.Command(binary, s.Argv[1:]...) //nolint:gosec
	cmd.Stdout = writer
	stderr := &tailBuffer{limit: 2048}
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, acquireError(s.Argv[0], "start decoder", err)
	}
	_ = writer.Close()

	proc := &processHandle{
		cmd:    cmd,
		reader: reader,
		exited: make(chan struct{}),
		lost:   make(chan error, 1),
		stderr: stderr,
		logger: logging.NewComponentLogger(s.Logger, "decoder"),
	}
	go proc.wait()

	grace := s.StartupGrace
	if grace <= 0 {
		grace = defaultStartupGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-proc.exited:
		if proc.exitErr != nil {
			_ = reader.Close()
			detail := "decoder exited"
			if tail := stderr.String(); tail != "" {
				detail += ": " + tail
			}
			return nil, acquireError(s.Argv[0], detail, proc.exitErr)
		}
	case <-timer.C:
	case <-ctx.Done():
		_ = proc.Release()
		return nil, acquireError(s.Argv[0], "start cancelled", ctx.Err())
	}
	return proc, nil
}

type processHandle struct {
	cmd    *exec.Cmd
	reader *os.File
	exited chan struct{}
	lost   chan error
	stderr *tailBuffer
	logger *slog.Logger

	exitErr error
	once    sync.Once
}

func (p *processHandle) wait() {
	p.exitErr = p.cmd.Wait()
	close(p.exited)
	if p.exitErr != nil {
		p.lost <- fmt.Errorf("decoder exited: %w", p.exitErr)
	}
}

func (p *processHandle) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

func (p *processHandle) Lost() <-chan error {
	return p.lost
}

// Release terminates the decoder process group and waits for it to exit.
func (p *processHandle) Release() error {
	p.once.Do(func() {
		select {
		case <-p.exited:
		default:
			if p.cmd.Process != nil {
				_ = syscall.Kill(-p.cmd.Process.Pid, syscall.SIGTERM)
				select {
				case <-p.exited:
				case <-time.After(2 * time.Second):
					_ = syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
					<-p.exited
				}
			}
		}
		_ = p.reader.Close()
		if tail := p.stderr.String(); tail != "" {
			p.logger.Debug("decoder stderr", logging.String("tail", tail))
		}
	})
	var exitErr *exec.ExitError
	if p.exitErr != nil && !errors.As(p.exitErr, &exitErr) {
		return p.exitErr
	}
	return nil
}

// tailBuffer keeps the last limit bytes written.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
