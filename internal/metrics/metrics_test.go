package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"dispatchscan/internal/pipeline"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ScanAdmitted(pipeline.OriginCapture)
	r.ScanDropped(pipeline.OriginCapture)
	r.ScanDropped(pipeline.OriginCapture)
	r.Outcome(pipeline.KindSuccess)
	r.BackendLatency("submit", 20*time.Millisecond, nil)
	r.BackendLatency("submit", time.Second, errors.New("boom"))
	r.CaptureRunning("device /dev/ttyACM0", true)

	if got := testutil.ToFloat64(r.dropped.WithLabelValues("capture")); got != 2 {
		t.Fatalf("dropped = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.admitted.WithLabelValues("capture")); got != 1 {
		t.Fatalf("admitted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.outcomes.WithLabelValues("success")); got != 1 {
		t.Fatalf("success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.capture.WithLabelValues("device /dev/ttyACM0")); got != 1 {
		t.Fatalf("capture gauge = %v", got)
	}
	if n := testutil.CollectAndCount(r.latency); n != 2 {
		t.Fatalf("latency series = %d, want 2", n)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	r := New()
	r.Outcome(pipeline.KindWarning)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `dispatchscan_feedback_total{kind="warning"} 1`) {
		t.Fatalf("exposition missing counter:\n%s", body)
	}

	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 1 || families[0].GetName() != "dispatchscan_feedback_total" {
		t.Fatalf("families = %v", families)
	}
}
