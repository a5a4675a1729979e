package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeBackend is an httptest server speaking the dispatch endpoints. Orders
// are keyed by barcode text; unknown barcodes fail validation.
type FakeBackend struct {
	Server *httptest.Server

	mu          sync.Mutex
	orders      map[string]*fakeOrder
	validations []string
	submissions []FakeSubmission
	submitGate  chan struct{}
	submitError string
	nextID      int64
	todayCount  int
}

type fakeOrder struct {
	dispatched bool
	cancelled  bool
}

// FakeSubmission captures one POST /dispatch/scan call.
type FakeSubmission struct {
	Query map[string]string
	Body  map[string]any
}

// NewFakeBackend starts a fake backend and registers cleanup. Its base URL is
// Server.URL + "/api".
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{orders: make(map[string]*fakeOrder)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/dispatch/validate", fb.handleValidate)
	mux.HandleFunc("POST /api/dispatch/scan", fb.handleScan)
	mux.HandleFunc("GET /api/dispatch/summary", fb.handleSummary)
	mux.HandleFunc("GET /api/dispatch/scans", fb.handleScans)
	fb.Server = httptest.NewServer(mux)
	t.Cleanup(func() {
		fb.mu.Lock()
		if fb.submitGate != nil {
			close(fb.submitGate)
			fb.submitGate = nil
		}
		fb.mu.Unlock()
		fb.Server.Close()
	})
	return fb
}

// BaseURL returns the API root for backend.New.
func (fb *FakeBackend) BaseURL() string {
	return fb.Server.URL + "/api"
}

// AddOrder registers a known order.
func (fb *FakeBackend) AddOrder(barcode string, dispatched bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.orders[barcode] = &fakeOrder{dispatched: dispatched}
}

// SetTodayCount seeds the summary endpoint.
func (fb *FakeBackend) SetTodayCount(n int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.todayCount = n
}

// FailSubmissions makes every submission answer 400 with detail.
func (fb *FakeBackend) FailSubmissions(detail string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.submitError = detail
}

// HoldSubmissions blocks submissions until the returned release func runs.
func (fb *FakeBackend) HoldSubmissions() (release func()) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	gate := make(chan struct{})
	fb.submitGate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			fb.mu.Lock()
			defer fb.mu.Unlock()
			if fb.submitGate == gate {
				close(gate)
				fb.submitGate = nil
			}
		})
	}
}

// Validations returns the barcodes validated so far.
func (fb *FakeBackend) Validations() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.validations...)
}

// Submissions returns the submissions received so far.
func (fb *FakeBackend) Submissions() []FakeSubmission {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]FakeSubmission(nil), fb.submissions...)
}

func (fb *FakeBackend) handleValidate(w http.ResponseWriter, r *http.Request) {
	barcode := r.URL.Query().Get("barcode_data")
	fb.mu.Lock()
	fb.validations = append(fb.validations, barcode)
	order, ok := fb.orders[barcode]
	fb.mu.Unlock()

	switch {
	case !ok:
		writeFakeJSON(w, http.StatusOK, map[string]any{"is_valid": false, "already_dispatched": false, "message": "Order " + barcode + " not found"})
	case order.dispatched:
		writeFakeJSON(w, http.StatusOK, map[string]any{"is_valid": true, "already_dispatched": true, "message": "Order " + barcode + " already dispatched"})
	default:
		writeFakeJSON(w, http.StatusOK, map[string]any{"is_valid": true, "already_dispatched": false, "message": "Order " + barcode + " ready"})
	}
}

func (fb *FakeBackend) handleScan(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	query := map[string]string{}
	for key := range r.URL.Query() {
		query[key] = r.URL.Query().Get(key)
	}

	fb.mu.Lock()
	fb.submissions = append(fb.submissions, FakeSubmission{Query: query, Body: body})
	gate := fb.submitGate
	failure := fb.submitError
	fb.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if failure != "" {
		writeFakeJSON(w, http.StatusBadRequest, map[string]any{"detail": failure})
		return
	}

	orderID, _ := body["platform_order_id"].(string)
	fb.mu.Lock()
	fb.nextID++
	id := fb.nextID
	fb.todayCount++
	if order, ok := fb.orders[orderID]; ok {
		if query["scan_action"] == "cancel" {
			order.cancelled = true
		} else {
			order.dispatched = true
		}
	}
	fb.mu.Unlock()

	record := map[string]any{
		"id":                id,
		"platform_order_id": orderID,
		"platform_name":     body["platform_name"],
		"scanned_at":        time.Now().UTC().Format(time.RFC3339),
		"scanned_by":        "fake",
		"scan_action":       query["scan_action"],
	}
	for _, key := range []string{"awb_number", "courier_partner"} {
		if v, ok := body[key].(string); ok && strings.TrimSpace(v) != "" {
			record[key] = v
		}
	}
	writeFakeJSON(w, http.StatusOK, record)
}

func (fb *FakeBackend) handleSummary(w http.ResponseWriter, _ *http.Request) {
	fb.mu.Lock()
	count := fb.todayCount
	fb.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, map[string]any{"today_count": count, "total_count": count})
}

func (fb *FakeBackend) handleScans(w http.ResponseWriter, _ *http.Request) {
	writeFakeJSON(w, http.StatusOK, []any{})
}

func writeFakeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
