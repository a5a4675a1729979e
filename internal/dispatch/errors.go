package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUserInput covers empty scans, missing channel, and malformed operator input.
	ErrUserInput = errors.New("user input error")
	// ErrValidationRejected means the backend refused the scan during validation.
	ErrValidationRejected = errors.New("validation rejected")
	// ErrSubmissionFailed covers network and server-side submission failures.
	ErrSubmissionFailed = errors.New("submission failed")
	// ErrDeviceAcquisition means the capture hardware could not be opened.
	ErrDeviceAcquisition = errors.New("device acquisition failed")
	// ErrChannelLocked is returned when selecting a channel while one is locked.
	ErrChannelLocked = errors.New("session channel locked")
	// ErrNoChannel is returned when an operation requires a locked channel.
	ErrNoChannel = errors.New("no session channel selected")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later feedback classification.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrSubmissionFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Category names the operator-facing class of err.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserInput), errors.Is(err, ErrNoChannel), errors.Is(err, ErrChannelLocked):
		return "input"
	case errors.Is(err, ErrValidationRejected):
		return "validation"
	case errors.Is(err, ErrDeviceAcquisition):
		return "device"
	default:
		return "submission"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "dispatch failure"
	}
	return strings.Join(parts, ": ")
}
