package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mikey/phish-guard/internal/events"
)

func TestHandleEvent(t *testing.T) {
	m := New()

	m.HandleEvent(events.Detected(events.DetectionDetails{MessageID: "m1", Warnings: []string{"urgency"}}))
	m.HandleEvent(events.Detected(events.DetectionDetails{MessageID: "m2", Warnings: []string{"urgency"}}))
	m.HandleEvent(events.CountUpdate(2))
	m.HandleEvent(events.CountUpdate(1))

	if got := testutil.ToFloat64(m.phishingCount); got != 1 {
		t.Fatalf("phishing count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.detections); got != 2 {
		t.Fatalf("detections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues(string(events.TypeCountUpdate))); got != 2 {
		t.Fatalf("count update events = %v, want 2", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveAssessment("high")
	m.ObserveAssessmentError()
	m.ObserveCacheLookup(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`phishguard_assessments_total{risk_level="high"} 1`,
		"phishguard_assessment_errors_total 1",
		`phishguard_cache_lookups_total{result="hit"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
