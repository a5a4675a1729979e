package pipeline

import (
	"context"
	"time"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/store"
)

// Validator checks a barcode against the backend.
type Validator interface {
	Validate(ctx context.Context, raw string) (*dispatch.ValidationResult, error)
}

// Submitter records a scan with the backend.
type Submitter interface {
	Submit(ctx context.Context, req dispatch.ScanRequest, mode dispatch.ValidationMode, action dispatch.ScanAction) (*dispatch.ScanRecord, error)
}

// Backend combines the two calls a scan can make.
type Backend interface {
	Validator
	Submitter
}

// Seeder provides the bootstrap reads used to prime the ledger.
type Seeder interface {
	Summary(ctx context.Context) (*dispatch.Summary, error)
	RecentScans(ctx context.Context, dateFrom time.Time, limit int) ([]dispatch.ScanRecord, error)
}

// Confirmer asks the operator to approve a cancellation. It blocks until the
// operator answers or ctx ends.
type Confirmer interface {
	ConfirmCancel(ctx context.Context, raw string, result *dispatch.ValidationResult) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, raw string, result *dispatch.ValidationResult) (bool, error)

func (f ConfirmerFunc) ConfirmCancel(ctx context.Context, raw string, result *dispatch.ValidationResult) (bool, error) {
	return f(ctx, raw, result)
}

// SessionState is the read side of the session the pipeline consults per scan.
type SessionState interface {
	Settings() dispatch.Settings
	Channel() (string, bool)
	Action() dispatch.ScanAction
}

// Journal persists successful submissions locally.
type Journal interface {
	AppendJournal(ctx context.Context, entry store.JournalEntry) (int64, error)
}

// Recorder receives pipeline measurements.
type Recorder interface {
	ScanAdmitted(origin Origin)
	ScanDropped(origin Origin)
	Outcome(kind Kind)
	BackendLatency(operation string, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ScanAdmitted(Origin)                        {}
func (nopRecorder) ScanDropped(Origin)                         {}
func (nopRecorder) Outcome(Kind)                               {}
func (nopRecorder) BackendLatency(string, time.Duration, error) {}
