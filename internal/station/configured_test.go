package station_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/logging"
	"dispatchscan/internal/pipeline"
	"dispatchscan/internal/station"
	"dispatchscan/internal/testsupport"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// The station builds its decoder and notifier from config here, so the
// command source and ntfy client run for real.
func TestConfiguredDecoderAndNotifications(t *testing.T) {
	var (
		mu    sync.Mutex
		posts []string
	)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		posts = append(posts, string(body))
		mu.Unlock()
	}))
	t.Cleanup(ntfy.Close)
	posted := func(substr string) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, p := range posts {
			if strings.Contains(p, substr) {
				return true
			}
		}
		return false
	}

	fake := testsupport.NewFakeBackend(t)
	fake.AddOrder("ORD-7", false)
	cfg := testsupport.NewConfig(t,
		testsupport.WithAPIBaseURL(fake.BaseURL()),
		testsupport.WithChannels("Amazon"),
		testsupport.WithNtfyTopic(ntfy.URL+"/dispatch"),
		testsupport.WithStubbedBinaries(map[string]string{
			"fakedecoder": "printf 'ORD-7\\nORD-7\\n'\nexec sleep 30\n",
		}),
		testsupport.WithCaptureCommand("fakedecoder"),
	)

	feedback := make(chan pipeline.Feedback, 32)
	st, err := station.Open(context.Background(), station.Options{
		Config:    cfg,
		Logger:    logging.NewNop(),
		SessionID: "configured",
		Reporter:  pipeline.ReporterFunc(func(fb pipeline.Feedback) { feedback <- fb }),
	})
	if err != nil {
		t.Fatalf("open station: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := st.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := st.LockChannel("Amazon"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	release := fake.HoldSubmissions()
	if err := st.StartCapture(ctx); err != nil {
		t.Fatalf("start capture: %v", err)
	}
	waitFor(t, "held submission", func() bool { return len(fake.Submissions()) == 1 })
	if !st.Status().Busy {
		t.Fatal("guard should be held while the submission is in flight")
	}
	release()

	var success pipeline.Feedback
	waitFor(t, "success feedback", func() bool {
		select {
		case fb := <-feedback:
			if fb.Kind == pipeline.KindSuccess {
				success = fb
				return true
			}
		default:
		}
		return false
	})
	if success.RawText != "ORD-7" || success.Origin != pipeline.OriginCapture {
		t.Fatalf("success = %+v", success)
	}
	if !st.Status().AwaitingNext {
		t.Fatal("auto-submit should hold the gate after a capture success")
	}
	if got := fake.Validations(); len(got) != 1 || got[0] != "ORD-7" {
		t.Fatalf("validations = %v, want the repeated detection dropped", got)
	}

	if !st.ReadyForNext() {
		t.Fatal("ReadyForNext should release the held gate")
	}
	fb := st.Pipeline().Submit(ctx, "ORD-404", dispatch.FormFields{})
	if fb.Kind != pipeline.KindFailure {
		t.Fatalf("feedback = %+v", fb)
	}
	waitFor(t, "failure notification", func() bool { return posted("ORD-404") })

	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(fake.Submissions()) != 1 {
		t.Fatalf("submissions = %d, want 1", len(fake.Submissions()))
	}
}
