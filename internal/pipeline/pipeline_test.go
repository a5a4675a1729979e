package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/logging"
	"dispatchscan/internal/pipeline"
	"dispatchscan/internal/store"
)

type fakeSession struct {
	mu       sync.Mutex
	settings dispatch.Settings
	channel  string
	action   dispatch.ScanAction
}

func (f *fakeSession) Settings() dispatch.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

func (f *fakeSession) Channel() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channel, f.channel != ""
}

func (f *fakeSession) Action() dispatch.ScanAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.action
}

type submitCall struct {
	req    dispatch.ScanRequest
	mode   dispatch.ValidationMode
	action dispatch.ScanAction
}

type stubBackend struct {
	mu        sync.Mutex
	validated []string
	submitted []submitCall
	results   map[string]*dispatch.ValidationResult
	validErr  error
	submitErr error
	hold      chan struct{}
	nextID    int64
	requests  []string
}

func newStubBackend() *stubBackend {
	return &stubBackend{results: map[string]*dispatch.ValidationResult{}}
}

func (s *stubBackend) Validate(ctx context.Context, raw string) (*dispatch.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validated = append(s.validated, raw)
	id, _ := logging.RequestIDFromContext(ctx)
	s.requests = append(s.requests, id)
	if s.validErr != nil {
		return nil, s.validErr
	}
	if result, ok := s.results[raw]; ok {
		return result, nil
	}
	return &dispatch.ValidationResult{IsValid: false, Message: "Order " + raw + " not found"}, nil
}

func (s *stubBackend) Submit(ctx context.Context, req dispatch.ScanRequest, mode dispatch.ValidationMode, action dispatch.ScanAction) (*dispatch.ScanRecord, error) {
	s.mu.Lock()
	s.submitted = append(s.submitted, submitCall{req: req, mode: mode, action: action})
	id, _ := logging.RequestIDFromContext(ctx)
	s.requests = append(s.requests, id)
	hold := s.hold
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.nextID++
	return &dispatch.ScanRecord{
		ID:              s.nextID,
		PlatformOrderID: req.PlatformOrderID,
		PlatformName:    req.PlatformName,
		ScannedAt:       time.Now(),
		ScanAction:      action,
		AWBNumber:       req.AWBNumber,
	}, nil
}

func (s *stubBackend) validations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.validated)
}

func (s *stubBackend) submissions() []submitCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]submitCall(nil), s.submitted...)
}

type feedbackLog struct {
	mu    sync.Mutex
	items []pipeline.Feedback
}

func (l *feedbackLog) Report(fb pipeline.Feedback) {
	l.mu.Lock()
	l.items = append(l.items, fb)
	l.mu.Unlock()
}

func (l *feedbackLog) kinds() []pipeline.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]pipeline.Kind, 0, len(l.items))
	for _, fb := range l.items {
		out = append(out, fb.Kind)
	}
	return out
}

type journalStub struct {
	mu      sync.Mutex
	entries []store.JournalEntry
}

func (j *journalStub) AppendJournal(_ context.Context, entry store.JournalEntry) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return int64(len(j.entries)), nil
}

type harness struct {
	pipe     *pipeline.Pipeline
	session  *fakeSession
	backend  *stubBackend
	feedback *feedbackLog
	journal  *journalStub
}

func newHarness(t *testing.T, settings dispatch.Settings, action dispatch.ScanAction, confirmer pipeline.Confirmer) *harness {
	t.Helper()
	h := &harness{
		session:  &fakeSession{settings: settings, channel: "amazon", action: action},
		backend:  newStubBackend(),
		feedback: &feedbackLog{},
		journal:  &journalStub{},
	}
	pipe, err := pipeline.New(pipeline.Options{
		Session:     h.session,
		Backend:     h.backend,
		Confirmer:   confirmer,
		Reporter:    h.feedback,
		Journal:     h.journal,
		WarehouseID: "WH-1",
		SessionID:   "sess-1",
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	h.pipe = pipe
	return h
}

var (
	strictManual = dispatch.Settings{AutoSubmit: false, ValidationMode: dispatch.ModeStrict}
	strictAuto   = dispatch.Settings{AutoSubmit: true, ValidationMode: dispatch.ModeStrict}
	looseManual  = dispatch.Settings{AutoSubmit: false, ValidationMode: dispatch.ModeLoose}
)

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := pipeline.New(pipeline.Options{Backend: newStubBackend()}); err == nil {
		t.Fatal("expected error without session")
	}
	if _, err := pipeline.New(pipeline.Options{Session: &fakeSession{}}); err == nil {
		t.Fatal("expected error without backend")
	}
}

func TestScenarioStrictDispatchValidOrder(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionDispatch, nil)
	h.backend.results["ORD-1001"] = &dispatch.ValidationResult{IsValid: true}

	fb := h.pipe.Submit(context.Background(), "ORD-1001", dispatch.FormFields{AWBNumber: "AWB-9"})

	if fb.Kind != pipeline.KindSuccess || fb.Message != "Order dispatched" {
		t.Fatalf("feedback = %+v", fb)
	}
	calls := h.backend.submissions()
	if len(calls) != 1 {
		t.Fatalf("submissions = %d, want 1", len(calls))
	}
	req := calls[0].req
	if req.PlatformOrderID != "ORD-1001" || req.BarcodeData != "ORD-1001" || req.PlatformName != "amazon" || req.WarehouseID != "WH-1" || req.AWBNumber != "AWB-9" {
		t.Fatalf("unexpected request %+v", req)
	}
	if calls[0].mode != dispatch.ModeStrict || calls[0].action != dispatch.ActionDispatch {
		t.Fatalf("unexpected mode/action %+v", calls[0])
	}
	records := h.pipe.Ledger().Records()
	if len(records) != 1 || records[0].PlatformOrderID != "ORD-1001" {
		t.Fatalf("ledger = %+v", records)
	}
	if got := h.pipe.Ledger().TodayCount(); got != 1 {
		t.Fatalf("today count = %d, want 1", got)
	}
	if h.pipe.Busy() {
		t.Fatal("manual success must release the guard")
	}
	if len(h.journal.entries) != 1 || h.journal.entries[0].SessionID != "sess-1" {
		t.Fatalf("journal = %+v", h.journal.entries)
	}
}

func TestScenarioStrictAlreadyDispatched(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionDispatch, nil)
	h.backend.results["ORD-1001"] = &dispatch.ValidationResult{IsValid: true, AlreadyDispatched: true, Message: "Order ORD-1001 already dispatched"}

	fb := h.pipe.Submit(context.Background(), "ORD-1001", dispatch.FormFields{})

	if fb.Kind != pipeline.KindWarning || fb.Message != "Order ORD-1001 already dispatched" {
		t.Fatalf("feedback = %+v", fb)
	}
	if !errors.Is(fb.Err, dispatch.ErrValidationRejected) {
		t.Fatalf("expected validation marker, got %v", fb.Err)
	}
	if h.backend.validations() != 1 {
		t.Fatalf("validations = %d, want 1", h.backend.validations())
	}
	if n := len(h.backend.submissions()); n != 0 {
		t.Fatalf("submissions = %d, want 0", n)
	}
	if h.pipe.Ledger().TodayCount() != 0 || h.pipe.Busy() {
		t.Fatal("counter or guard mutated")
	}
}

func TestScenarioLooseSkipsValidation(t *testing.T) {
	for _, action := range []dispatch.ScanAction{dispatch.ActionDispatch, dispatch.ActionCancel} {
		t.Run(string(action), func(t *testing.T) {
			confirmCalled := false
			h := newHarness(t, looseManual, action, pipeline.ConfirmerFunc(func(context.Context, string, *dispatch.ValidationResult) (bool, error) {
				confirmCalled = true
				return false, nil
			}))

			fb := h.pipe.Submit(context.Background(), "XYZ-9", dispatch.FormFields{})

			if fb.Kind != pipeline.KindSuccess || fb.Message != "Scan recorded" {
				t.Fatalf("feedback = %+v", fb)
			}
			if h.backend.validations() != 0 {
				t.Fatal("loose mode must not validate")
			}
			if confirmCalled {
				t.Fatal("loose mode must not ask for confirmation")
			}
			calls := h.backend.submissions()
			if len(calls) != 1 || calls[0].mode != dispatch.ModeLoose || calls[0].action != action {
				t.Fatalf("submissions = %+v", calls)
			}
		})
	}
}

func TestScenarioCancelDeclined(t *testing.T) {
	var asked string
	h := newHarness(t, strictManual, dispatch.ActionCancel, pipeline.ConfirmerFunc(func(_ context.Context, raw string, _ *dispatch.ValidationResult) (bool, error) {
		asked = raw
		return false, nil
	}))
	h.backend.results["ORD-7"] = &dispatch.ValidationResult{IsValid: true, AlreadyDispatched: true}

	fb := h.pipe.Submit(context.Background(), "ORD-7", dispatch.FormFields{})

	if asked != "ORD-7" {
		t.Fatalf("confirmer asked about %q", asked)
	}
	if fb.Kind != pipeline.KindIdle {
		t.Fatalf("feedback = %+v", fb)
	}
	if len(h.backend.submissions()) != 0 {
		t.Fatal("declined cancel must not submit")
	}
	if h.pipe.Busy() {
		t.Fatal("guard must be released after decline")
	}
	if h.pipe.Ledger().Len() != 0 {
		t.Fatal("ledger must not change")
	}
}

func TestCancelConfirmedSubmits(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionCancel, pipeline.ConfirmerFunc(func(context.Context, string, *dispatch.ValidationResult) (bool, error) {
		return true, nil
	}))
	h.backend.results["ORD-7"] = &dispatch.ValidationResult{IsValid: true, AlreadyDispatched: true}

	fb := h.pipe.Submit(context.Background(), "ORD-7", dispatch.FormFields{})

	if fb.Kind != pipeline.KindSuccess || fb.Message != "Order cancelled" {
		t.Fatalf("feedback = %+v", fb)
	}
	calls := h.backend.submissions()
	if len(calls) != 1 || calls[0].action != dispatch.ActionCancel {
		t.Fatalf("submissions = %+v", calls)
	}
}

func TestCancelWithoutConfirmerIsDeclined(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionCancel, nil)
	h.backend.results["ORD-7"] = &dispatch.ValidationResult{IsValid: true}

	if fb := h.pipe.Submit(context.Background(), "ORD-7", dispatch.FormFields{}); fb.Kind != pipeline.KindIdle {
		t.Fatalf("feedback = %+v", fb)
	}
	if len(h.backend.submissions()) != 0 {
		t.Fatal("unconfirmed cancel must not submit")
	}
}

func TestScenarioRapidDetectionsSubmitOnce(t *testing.T) {
	h := newHarness(t, strictAuto, dispatch.ActionDispatch, nil)
	h.backend.results["ORD-2002"] = &dispatch.ValidationResult{IsValid: true}
	release := make(chan struct{})
	h.backend.hold = release

	ctx := context.Background()
	if !h.pipe.Detect(ctx, "ORD-2002") {
		t.Fatal("first detection should be admitted")
	}
	time.Sleep(50 * time.Millisecond)
	if h.pipe.Detect(ctx, "ORD-2002") {
		t.Fatal("second detection must be dropped while busy")
	}
	close(release)
	h.pipe.Wait()

	if n := len(h.backend.submissions()); n != 1 {
		t.Fatalf("submissions = %d, want 1", n)
	}
}

func TestBurstOfDetectionsWhileProcessing(t *testing.T) {
	h := newHarness(t, strictAuto, dispatch.ActionDispatch, nil)
	h.backend.results["ORD-3"] = &dispatch.ValidationResult{IsValid: true}
	release := make(chan struct{})
	h.backend.hold = release

	ctx := context.Background()
	var wg sync.WaitGroup
	admitted := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted <- h.pipe.Detect(ctx, "ORD-3")
		}()
	}
	wg.Wait()
	close(admitted)
	close(release)
	h.pipe.Wait()

	count := 0
	for ok := range admitted {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("admitted = %d, want 1", count)
	}
	if n := len(h.backend.submissions()); n != 1 {
		t.Fatalf("submissions = %d, want 1", n)
	}
}

func TestAutoSubmitHoldsGuardUntilReadyForNext(t *testing.T) {
	h := newHarness(t, strictAuto, dispatch.ActionDispatch, nil)
	h.backend.results["ORD-4"] = &dispatch.ValidationResult{IsValid: true}
	ctx := context.Background()

	if !h.pipe.Detect(ctx, "ORD-4") {
		t.Fatal("detection should be admitted")
	}
	h.pipe.Wait()

	if !h.pipe.Busy() || !h.pipe.AwaitingNext() {
		t.Fatal("guard should stay held after capture success in auto-submit mode")
	}
	if h.pipe.Detect(ctx, "ORD-4") {
		t.Fatal("residual detection must be dropped")
	}
	if !h.pipe.ReadyForNext() {
		t.Fatal("ReadyForNext should report the released gate")
	}
	if h.pipe.Busy() || h.pipe.AwaitingNext() {
		t.Fatal("guard should be free after ReadyForNext")
	}
	if h.pipe.ReadyForNext() {
		t.Fatal("second ReadyForNext should be a no-op")
	}
	if n := len(h.backend.submissions()); n != 1 {
		t.Fatalf("submissions = %d, want 1", n)
	}
}

func TestAutoSubmitFailureReleasesGuard(t *testing.T) {
	h := newHarness(t, strictAuto, dispatch.ActionDispatch, nil)
	h.pipe.Detect(context.Background(), "UNKNOWN")
	h.pipe.Wait()

	if h.pipe.Busy() || h.pipe.AwaitingNext() {
		t.Fatal("non-success outcomes must release the guard")
	}
	kinds := h.feedback.kinds()
	if len(kinds) != 1 || kinds[0] != pipeline.KindFailure {
		t.Fatalf("feedback kinds = %v", kinds)
	}
}

func TestManualSubmitBlockedWhileAwaitingNext(t *testing.T) {
	h := newHarness(t, strictAuto, dispatch.ActionDispatch, nil)
	h.backend.results["ORD-5"] = &dispatch.ValidationResult{IsValid: true}
	h.backend.results["ORD-6"] = &dispatch.ValidationResult{IsValid: true}
	ctx := context.Background()

	h.pipe.Detect(ctx, "ORD-5")
	h.pipe.Wait()

	fb := h.pipe.Submit(ctx, "ORD-6", dispatch.FormFields{})
	if fb.Kind != pipeline.KindBusy || fb.Message != "Confirm ready for next scan first" {
		t.Fatalf("feedback = %+v", fb)
	}
	h.pipe.ReadyForNext()
	if fb := h.pipe.Submit(ctx, "ORD-6", dispatch.FormFields{}); fb.Kind != pipeline.KindSuccess {
		t.Fatalf("feedback = %+v", fb)
	}
	if h.pipe.Busy() {
		t.Fatal("manual submissions never hold the gate")
	}
}

func TestDetectionPopulatesDraftWhenAutoSubmitOff(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionDispatch, nil)
	h.backend.results["ORD-8"] = &dispatch.ValidationResult{IsValid: true}
	ctx := context.Background()

	if h.pipe.Detect(ctx, " ORD-8 ") {
		t.Fatal("detection must not submit when auto-submit is off")
	}
	h.pipe.Detect(ctx, "ORD-8")
	if h.pipe.Busy() {
		t.Fatal("guard must stay released")
	}
	if got := h.pipe.Draft().Text; got != "ORD-8" {
		t.Fatalf("draft = %q", got)
	}
	if kinds := h.feedback.kinds(); len(kinds) != 1 || kinds[0] != pipeline.KindPopulated {
		t.Fatalf("feedback kinds = %v", kinds)
	}
	if h.backend.validations() != 0 || len(h.backend.submissions()) != 0 {
		t.Fatal("no backend calls expected")
	}

	h.pipe.SetFields(dispatch.FormFields{CourierPartner: "bluedart"})
	fb := h.pipe.SubmitDraft(ctx)
	if fb.Kind != pipeline.KindSuccess {
		t.Fatalf("feedback = %+v", fb)
	}
	if got := h.backend.submissions()[0].req.CourierPartner; got != "bluedart" {
		t.Fatalf("courier = %q", got)
	}
	if draft := h.pipe.Draft(); draft.Text != "" || !draft.Fields.Empty() {
		t.Fatalf("draft should be cleared, got %+v", draft)
	}
}

func TestDetectionDuringSubmitSurvivesDraftReset(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionDispatch, nil)
	h.backend.results["ORD-1"] = &dispatch.ValidationResult{IsValid: true}
	release := make(chan struct{})
	h.backend.hold = release
	ctx := context.Background()

	h.pipe.SetDraftText("ORD-1")
	done := make(chan pipeline.Feedback, 1)
	go func() { done <- h.pipe.SubmitDraft(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for len(h.backend.submissions()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("submission never reached the backend")
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.pipe.Detect(ctx, "ORD-2")
	close(release)

	if fb := <-done; fb.Kind != pipeline.KindSuccess {
		t.Fatalf("feedback = %+v", fb)
	}
	if got := h.pipe.Draft().Text; got != "ORD-2" {
		t.Fatalf("draft = %q, want the scan captured during submission", got)
	}
	if kinds := h.feedback.kinds(); len(kinds) != 2 || kinds[0] != pipeline.KindPopulated || kinds[1] != pipeline.KindSuccess {
		t.Fatalf("feedback kinds = %v", kinds)
	}
}

func TestInputErrorsNeverReachBackend(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionDispatch, nil)
	ctx := context.Background()

	fb := h.pipe.Submit(ctx, "   ", dispatch.FormFields{})
	if fb.Kind != pipeline.KindInput || fb.Message != "Please enter a value" {
		t.Fatalf("feedback = %+v", fb)
	}
	if !errors.Is(fb.Err, dispatch.ErrUserInput) {
		t.Fatalf("expected input marker, got %v", fb.Err)
	}

	h.session.channel = ""
	fb = h.pipe.Submit(ctx, "ORD-1", dispatch.FormFields{})
	if fb.Kind != pipeline.KindInput || fb.Message != "Select a channel first" {
		t.Fatalf("feedback = %+v", fb)
	}
	if h.pipe.Detect(ctx, "ORD-1") {
		t.Fatal("detection without channel must not be admitted")
	}
	if h.pipe.Busy() {
		t.Fatal("input errors must not consume the guard")
	}
	if h.backend.validations() != 0 || len(h.backend.submissions()) != 0 {
		t.Fatal("no backend calls expected")
	}
}

func TestBlankDetectionIsNoise(t *testing.T) {
	h := newHarness(t, strictAuto, dispatch.ActionDispatch, nil)
	if h.pipe.Detect(context.Background(), "\r\n") {
		t.Fatal("blank detection admitted")
	}
	if kinds := h.feedback.kinds(); len(kinds) != 0 {
		t.Fatalf("blank detections produce no feedback, got %v", kinds)
	}
}

func TestInvalidOrderFailsWithServiceMessage(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionDispatch, nil)
	fb := h.pipe.Submit(context.Background(), "NOPE", dispatch.FormFields{})
	if fb.Kind != pipeline.KindFailure || fb.Message != "Order NOPE not found" {
		t.Fatalf("feedback = %+v", fb)
	}
	if len(h.backend.submissions()) != 0 {
		t.Fatal("invalid order must not submit")
	}
}

func TestValidationCallErrorFails(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionDispatch, nil)
	h.backend.validErr = errors.New("dial tcp: connection refused")

	fb := h.pipe.Submit(context.Background(), "ORD-1", dispatch.FormFields{})
	if fb.Kind != pipeline.KindFailure {
		t.Fatalf("feedback = %+v", fb)
	}
	if len(h.backend.submissions()) != 0 || h.pipe.Busy() {
		t.Fatal("validation errors must not submit and must release the guard")
	}
}

func TestSubmissionFailureLeavesLedgerAlone(t *testing.T) {
	h := newHarness(t, looseManual, dispatch.ActionDispatch, nil)
	h.backend.submitErr = dispatch.Wrap(dispatch.ErrSubmissionFailed, "backend", "submit", "post scan", errors.New("boom"))
	h.pipe.SetDraftText("ORD-9")

	fb := h.pipe.SubmitDraft(context.Background())
	if fb.Kind != pipeline.KindFailure || !errors.Is(fb.Err, dispatch.ErrSubmissionFailed) {
		t.Fatalf("feedback = %+v", fb)
	}
	if h.pipe.Ledger().Len() != 0 || h.pipe.Ledger().TodayCount() != 0 {
		t.Fatal("ledger or counter mutated on failure")
	}
	if h.pipe.Busy() {
		t.Fatal("guard must be released")
	}
	if h.pipe.Draft().Text != "ORD-9" {
		t.Fatal("draft should survive a failed submission")
	}
	if len(h.journal.entries) != 0 {
		t.Fatal("failed submissions must not be journaled")
	}
}

func TestSettingsChangedOpensHeldGate(t *testing.T) {
	h := newHarness(t, strictAuto, dispatch.ActionDispatch, nil)
	h.backend.results["ORD-1"] = &dispatch.ValidationResult{IsValid: true}
	h.pipe.Detect(context.Background(), "ORD-1")
	h.pipe.Wait()

	h.pipe.SettingsChanged(strictAuto)
	if !h.pipe.AwaitingNext() {
		t.Fatal("gate should stay held while auto-submit remains on")
	}
	h.pipe.SettingsChanged(strictManual)
	if h.pipe.Busy() {
		t.Fatal("turning auto-submit off should release the gate")
	}
}

type stubSeeder struct {
	summary  *dispatch.Summary
	records  []dispatch.ScanRecord
	scansErr error
	from     time.Time
}

func (s *stubSeeder) Summary(context.Context) (*dispatch.Summary, error) {
	return s.summary, nil
}

func (s *stubSeeder) RecentScans(_ context.Context, from time.Time, _ int) ([]dispatch.ScanRecord, error) {
	s.from = from
	return s.records, s.scansErr
}

func TestSeedPrimesLedger(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionDispatch, nil)
	seeder := &stubSeeder{
		summary: &dispatch.Summary{TodayCount: 42},
		records: []dispatch.ScanRecord{{PlatformOrderID: "A"}, {PlatformOrderID: "B"}},
	}
	if err := h.pipe.Seed(context.Background(), seeder); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if h.pipe.Ledger().TodayCount() != 42 || h.pipe.Ledger().Len() != 2 {
		t.Fatalf("ledger = %d records, %d today", h.pipe.Ledger().Len(), h.pipe.Ledger().TodayCount())
	}
	if seeder.from.Hour() != 0 || seeder.from.Minute() != 0 {
		t.Fatalf("seed should start at local midnight, got %v", seeder.from)
	}

	seeder.scansErr = fmt.Errorf("boom")
	if err := h.pipe.Seed(context.Background(), seeder); err == nil {
		t.Fatal("expected seed error")
	}
	if h.pipe.Ledger().TodayCount() != 42 {
		t.Fatal("counter should still come from the summary")
	}
}

func TestScanSharesRequestIDAcrossCalls(t *testing.T) {
	h := newHarness(t, strictManual, dispatch.ActionDispatch, nil)
	h.backend.results["ORD-11"] = &dispatch.ValidationResult{IsValid: true}
	h.backend.results["ORD-12"] = &dispatch.ValidationResult{IsValid: true}

	h.pipe.Submit(context.Background(), "ORD-11", dispatch.FormFields{})
	h.pipe.Submit(context.Background(), "ORD-12", dispatch.FormFields{})

	h.backend.mu.Lock()
	ids := append([]string(nil), h.backend.requests...)
	h.backend.mu.Unlock()
	if len(ids) != 4 {
		t.Fatalf("requests = %v, want validate+submit twice", ids)
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Fatalf("first scan ids = %q/%q, want one shared id", ids[0], ids[1])
	}
	if ids[2] != ids[3] || ids[2] == ids[0] {
		t.Fatalf("second scan ids = %q/%q, want a fresh shared id", ids[2], ids[3])
	}
}
