package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	rec := NewRecorder()
	done := rec.WorkflowStarted()
	rec.Variant("catalog", true, 1024)
	rec.Variant("catalog", false, 0)
	rec.Retry()
	rec.WorkflowFinished("catalog", "partial", 150*time.Millisecond)
	done()
	rec.SetFonts(3)

	if got := testutil.ToFloat64(rec.variants.WithLabelValues("catalog", "written")); got != 1 {
		t.Fatalf("expected 1 written variant, got %v", got)
	}
	if got := testutil.ToFloat64(rec.bytes); got != 1024 {
		t.Fatalf("expected 1024 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.inFlight); got != 0 {
		t.Fatalf("in-flight gauge should return to 0, got %v", got)
	}
	if got := testutil.ToFloat64(rec.fonts); got != 3 {
		t.Fatalf("fonts gauge mismatch: %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	rec := NewRecorder()
	rec.WorkflowFinished("local", "done", time.Second)

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/-/metrics", nil))
	body := w.Body.String()
	if !strings.Contains(body, `fonthub_workflows_total{result="done",source="local"} 1`) {
		t.Fatalf("workflow counter missing from exposition:\n%s", body)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.WorkflowStarted()()
	rec.Variant("x", true, 1)
	rec.Retry()
	rec.WorkflowFinished("x", "done", time.Second)
	rec.SetFonts(1)
	if rec.Registry() != nil {
		t.Fatalf("nil recorder should have no registry")
	}
}
