package capture

import (
	"context"
	"io"
)

// State is the capture lifecycle position.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
)

// Device is acquired capture hardware producing newline or carriage-return
// terminated decoded text.
type Device interface {
	io.Reader
	// Release frees the hardware. It unblocks pending reads and is safe to
	// call more than once.
	Release() error
}

// lossNotifier is implemented by devices that can report removal or exit
// while running.
type lossNotifier interface {
	Lost() <-chan error
}

// Source acquires a Device.
type Source interface {
	Name() string
	Acquire(ctx context.Context) (Device, error)
}

// DetectFunc receives one non-empty decoded string.
type DetectFunc func(text string)

// ErrorFunc receives terminal errors from a running source.
type ErrorFunc func(err error)
