package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dispatchscan/internal/backend"
	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/logging"
	"dispatchscan/internal/store"
)

// Options wires a Pipeline to its collaborators. Session and Backend are required.
type Options struct {
	Session     SessionState
	Backend     Backend
	Confirmer   Confirmer
	Reporter    Reporter
	Journal     Journal
	Metrics     Recorder
	Logger      *slog.Logger
	WarehouseID string
	SessionID   string
	Now         func() time.Time
}

// Draft is the manual-entry form: the scan text plus optional carrier fields.
type Draft struct {
	Text   string              `json:"text"`
	Fields dispatch.FormFields `json:"fields"`
}

// Pipeline orchestrates validation and submission for one scanning session.
type Pipeline struct {
	guard       Guard
	ledger      *Ledger
	session     SessionState
	backend     Backend
	confirmer   Confirmer
	reporter    Reporter
	journal     Journal
	metrics     Recorder
	logger      *slog.Logger
	warehouseID string
	sessionID   string
	now         func() time.Time

	mu           sync.Mutex
	draft        Draft
	awaitingNext bool

	wg sync.WaitGroup
}

// New builds a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Session == nil {
		return nil, errors.New("pipeline: session state required")
	}
	if opts.Backend == nil {
		return nil, errors.New("pipeline: backend required")
	}
	p := &Pipeline{
		session:     opts.Session,
		backend:     opts.Backend,
		confirmer:   opts.Confirmer,
		reporter:    opts.Reporter,
		journal:     opts.Journal,
		metrics:     opts.Metrics,
		logger:      logging.NewComponentLogger(opts.Logger, "pipeline"),
		warehouseID: strings.TrimSpace(opts.WarehouseID),
		sessionID:   opts.SessionID,
		now:         opts.Now,
	}
	if p.reporter == nil {
		p.reporter = nopReporter{}
	}
	if p.metrics == nil {
		p.metrics = nopRecorder{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.ledger = NewLedger(LedgerCapacity, p.now)
	return p, nil
}

// Ledger exposes the recent-scan ledger.
func (p *Pipeline) Ledger() *Ledger { return p.ledger }

// Busy reports whether a scan holds the guard.
func (p *Pipeline) Busy() bool { return p.guard.Busy() }

// AwaitingNext reports whether the auto-submit gate is holding the guard.
func (p *Pipeline) AwaitingNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.awaitingNext
}

// Wait blocks until all capture-originated scans have finished.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Draft returns the current manual-entry form.
func (p *Pipeline) Draft() Draft {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

// SetDraftText replaces the manual-entry text.
func (p *Pipeline) SetDraftText(text string) {
	p.mu.Lock()
	p.draft.Text = text
	p.mu.Unlock()
}

// SetFields replaces the optional carrier fields.
func (p *Pipeline) SetFields(fields dispatch.FormFields) {
	p.mu.Lock()
	p.draft.Fields = fields
	p.mu.Unlock()
}

// clearDraft resets the form after submitted was recorded. Text captured
// while the submission was in flight is kept.
func (p *Pipeline) clearDraft(submitted string) {
	p.mu.Lock()
	if strings.TrimSpace(p.draft.Text) == submitted {
		p.draft.Text = ""
	}
	p.draft.Fields = dispatch.FormFields{}
	p.mu.Unlock()
}

// Detect handles one decoded string from the capture source. In auto-submit
// mode the scan is admitted and processed in the background; the return value
// reports whether it was admitted. Otherwise the text only populates the draft.
func (p *Pipeline) Detect(ctx context.Context, raw string) bool {
	payload := dispatch.ScanPayload{RawText: strings.TrimSpace(raw)}
	if payload.Blank() {
		return false
	}
	if _, ok := p.session.Channel(); !ok {
		p.emit(p.inputFeedback(payload, OriginCapture, "Select a channel first"))
		return false
	}

	settings := p.session.Settings()
	if !settings.AutoSubmit {
		p.mu.Lock()
		unchanged := p.draft.Text == payload.RawText
		p.draft.Text = payload.RawText
		p.mu.Unlock()
		if !unchanged {
			p.emit(Feedback{
				Kind:    KindPopulated,
				Message: "Scan captured, submit to record",
				RawText: payload.RawText,
				Origin:  OriginCapture,
				At:      p.now(),
			})
		}
		return false
	}

	if !p.guard.TryAdmit() {
		p.metrics.ScanDropped(OriginCapture)
		p.logger.Debug("scan dropped while busy", logging.String(logging.FieldBarcode, payload.RawText))
		return false
	}
	p.metrics.ScanAdmitted(OriginCapture)

	fields := p.Draft().Fields
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.emit(p.process(ctx, payload, fields, OriginCapture))
	}()
	return true
}

// Submit runs a manual scan synchronously and returns its feedback.
func (p *Pipeline) Submit(ctx context.Context, raw string, fields dispatch.FormFields) Feedback {
	payload := dispatch.ScanPayload{RawText: strings.TrimSpace(raw)}
	if _, ok := p.session.Channel(); !ok {
		return p.emit(p.inputFeedback(payload, OriginManual, "Select a channel first"))
	}
	if payload.Blank() {
		return p.emit(p.inputFeedback(payload, OriginManual, "Please enter a value"))
	}
	if !p.guard.TryAdmit() {
		p.metrics.ScanDropped(OriginManual)
		message := "A scan is already being processed"
		if p.AwaitingNext() {
			message = "Confirm ready for next scan first"
		}
		return p.emit(Feedback{Kind: KindBusy, Message: message, RawText: payload.RawText, Origin: OriginManual, At: p.now()})
	}
	p.metrics.ScanAdmitted(OriginManual)
	return p.emit(p.process(ctx, payload, fields, OriginManual))
}

// SubmitDraft submits the current manual-entry form.
func (p *Pipeline) SubmitDraft(ctx context.Context) Feedback {
	draft := p.Draft()
	return p.Submit(ctx, draft.Text, draft.Fields)
}

// ReadyForNext releases a guard held by the auto-submit gate. It returns false
// when nothing was waiting.
func (p *Pipeline) ReadyForNext() bool {
	p.mu.Lock()
	held := p.awaitingNext
	p.awaitingNext = false
	p.mu.Unlock()
	if !held {
		return false
	}
	p.guard.Release()
	p.emit(Feedback{Kind: KindIdle, Message: "Ready for next scan", At: p.now()})
	return true
}

// SettingsChanged lets the pipeline react to applied settings. Turning
// auto-submit off opens a held gate since no residual detections can submit.
func (p *Pipeline) SettingsChanged(settings dispatch.Settings) {
	if !settings.AutoSubmit {
		p.ReadyForNext()
	}
}

// Seed primes the ledger from the backend. Failures leave the ledger empty and
// are returned for the caller to report.
func (p *Pipeline) Seed(ctx context.Context, seeder Seeder) error {
	if seeder == nil {
		return nil
	}
	summary, err := seeder.Summary(ctx)
	if err != nil {
		return fmt.Errorf("seed ledger: %w", err)
	}
	now := p.now().Local()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	records, err := seeder.RecentScans(ctx, midnight, LedgerCapacity)
	if err != nil {
		p.ledger.Seed(nil, summary.TodayCount)
		return fmt.Errorf("seed ledger: %w", err)
	}
	p.ledger.Seed(records, summary.TodayCount)
	p.logger.Debug("ledger seeded",
		logging.Int("today_count", summary.TodayCount),
		logging.Int("records", len(records)),
	)
	return nil
}

func (p *Pipeline) process(ctx context.Context, payload dispatch.ScanPayload, fields dispatch.FormFields, origin Origin) Feedback {
	hold := false
	defer func() {
		if !hold {
			p.guard.Release()
		}
	}()

	settings := p.session.Settings()
	channel, ok := p.session.Channel()
	action := p.session.Action()
	base := Feedback{RawText: payload.RawText, Origin: origin, Action: action, Mode: settings.ValidationMode}
	if !ok {
		return p.inputFeedback(payload, origin, "Select a channel first")
	}

	// Validation and submission of one scan share a correlation id.
	ctx = logging.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, p.logger).With(
		logging.String(logging.FieldBarcode, payload.RawText),
		logging.String(logging.FieldChannel, channel),
		logging.String(logging.FieldScanAction, string(action)),
		logging.String(logging.FieldValidationMode, string(settings.ValidationMode)),
	)

	if settings.ValidationMode != dispatch.ModeLoose {
		start := time.Now()
		result, err := p.backend.Validate(ctx, payload.RawText)
		p.metrics.BackendLatency("validate", time.Since(start), err)
		if err != nil {
			logging.WarnWithContext(logger, "scan validation failed", "scan_validation_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check backend connectivity"),
				logging.String(logging.FieldImpact, "scan not recorded"),
			)
			return p.finish(base, KindFailure, backend.Message(err), err)
		}
		base.Validation = result
		if !result.IsValid {
			message := strings.TrimSpace(result.Message)
			if message == "" {
				message = "Order not found"
			}
			logger.Info("scan rejected by validation", logging.String(logging.FieldEventType, "scan_rejected"), logging.String("reason", message))
			return p.finish(base, KindFailure, message, dispatch.Wrap(dispatch.ErrValidationRejected, "pipeline", "validate", message, nil))
		}
		if action == dispatch.ActionCancel {
			confirmed, err := p.confirmCancel(ctx, payload.RawText, result)
			if err != nil || !confirmed {
				logger.Info("cancellation not confirmed", logging.String(logging.FieldEventType, "cancel_declined"))
				return p.finish(base, KindIdle, "Cancellation not confirmed", err)
			}
		} else if result.AlreadyDispatched {
			message := strings.TrimSpace(result.Message)
			if message == "" {
				message = "Order already dispatched"
			}
			logger.Info("scan already dispatched", logging.String(logging.FieldEventType, "scan_already_dispatched"))
			return p.finish(base, KindWarning, message, dispatch.Wrap(dispatch.ErrValidationRejected, "pipeline", "validate", message, nil))
		}
	}

	req := dispatch.ScanRequest{
		PlatformOrderID: payload.RawText,
		BarcodeData:     payload.RawText,
		WarehouseID:     p.warehouseID,
		AWBNumber:       strings.TrimSpace(fields.AWBNumber),
		CourierPartner:  strings.TrimSpace(fields.CourierPartner),
		PlatformName:    channel,
	}
	start := time.Now()
	record, err := p.backend.Submit(ctx, req, settings.ValidationMode, action)
	p.metrics.BackendLatency("submit", time.Since(start), err)
	if err != nil {
		logging.WarnWithContext(logger, "scan submission failed", "scan_submission_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-scan once the backend issue is resolved"),
			logging.String(logging.FieldImpact, "scan not recorded"),
		)
		return p.finish(base, KindFailure, backend.Message(err), err)
	}

	p.ledger.Append(*record)
	p.recordJournal(ctx, *record, settings.ValidationMode)
	p.clearDraft(payload.RawText)
	base.Record = record

	if settings.AutoSubmit && origin == OriginCapture {
		hold = true
		p.mu.Lock()
		p.awaitingNext = true
		p.mu.Unlock()
	}
	logger.Info("scan recorded",
		logging.String(logging.FieldEventType, "scan_recorded"),
		logging.Int64("record_id", record.ID),
		logging.Bool("awaiting_next", hold),
	)
	return p.finish(base, KindSuccess, successMessage(settings.ValidationMode, action), nil)
}

func (p *Pipeline) confirmCancel(ctx context.Context, raw string, result *dispatch.ValidationResult) (bool, error) {
	if p.confirmer == nil {
		return false, nil
	}
	return p.confirmer.ConfirmCancel(ctx, raw, result)
}

func (p *Pipeline) recordJournal(ctx context.Context, record dispatch.ScanRecord, mode dispatch.ValidationMode) {
	if p.journal == nil {
		return
	}
	if _, err := p.journal.AppendJournal(ctx, store.JournalEntry{
		SessionID:      p.sessionID,
		Record:         record,
		ValidationMode: mode,
		RecordedAt:     p.now(),
	}); err != nil {
		logging.WarnWithContext(p.logger, "failed to journal scan", "journal_write_failed",
			logging.String("order", record.PlatformOrderID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
			logging.String(logging.FieldImpact, "local history misses this scan; backend copy is intact"),
		)
	}
}

func (p *Pipeline) finish(base Feedback, kind Kind, message string, err error) Feedback {
	base.Kind = kind
	base.Message = message
	base.Err = err
	base.At = p.now()
	return base
}

func (p *Pipeline) inputFeedback(payload dispatch.ScanPayload, origin Origin, message string) Feedback {
	return Feedback{
		Kind:    KindInput,
		Message: message,
		RawText: payload.RawText,
		Origin:  origin,
		Err:     dispatch.Wrap(dispatch.ErrUserInput, "pipeline", "admit", message, nil),
		At:      p.now(),
	}
}

func (p *Pipeline) emit(fb Feedback) Feedback {
	p.metrics.Outcome(fb.Kind)
	p.reporter.Report(fb)
	return fb
}
