package pipeline

import (
	"time"

	"dispatchscan/internal/dispatch"
)

// Kind is the closed set of outcomes reported to the operator.
type Kind string

const (
	KindSuccess   Kind = "success"
	KindWarning   Kind = "warning"
	KindFailure   Kind = "failure"
	KindInput     Kind = "input"
	KindIdle      Kind = "idle"
	KindPopulated Kind = "populated"
	KindBusy      Kind = "busy"
)

// Origin tells where a scan came from.
type Origin string

const (
	OriginCapture Origin = "capture"
	OriginManual  Origin = "manual"
)

// Feedback is one outcome delivered to the operator surface.
type Feedback struct {
	Kind       Kind                       `json:"kind"`
	Message    string                     `json:"message"`
	RawText    string                     `json:"raw_text,omitempty"`
	Origin     Origin                     `json:"origin,omitempty"`
	Action     dispatch.ScanAction        `json:"scan_action,omitempty"`
	Mode       dispatch.ValidationMode    `json:"validation_mode,omitempty"`
	Record     *dispatch.ScanRecord       `json:"record,omitempty"`
	Validation *dispatch.ValidationResult `json:"validation,omitempty"`
	Err        error                      `json:"-"`
	At         time.Time                  `json:"at"`
}

// Reporter receives every feedback the pipeline produces.
type Reporter interface {
	Report(Feedback)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Feedback)

func (f ReporterFunc) Report(fb Feedback) { f(fb) }

type nopReporter struct{}

func (nopReporter) Report(Feedback) {}

func successMessage(mode dispatch.ValidationMode, action dispatch.ScanAction) string {
	if mode == dispatch.ModeLoose {
		return "Scan recorded"
	}
	if action == dispatch.ActionCancel {
		return "Order cancelled"
	}
	return "Order dispatched"
}
