package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/phish-guard/internal/adapters/classifier"
	"github.com/mikey/phish-guard/internal/core"
	"github.com/mikey/phish-guard/internal/verdict"
)

type fakeAssessor struct {
	risk  string
	err   error
	calls []core.Message
}

func (f *fakeAssessor) Analyze(ctx context.Context, msg *core.Message) (*core.Analysis, error) {
	f.calls = append(f.calls, *msg)
	if f.err != nil {
		return nil, f.err
	}
	a := &core.Analysis{
		EmailID:   msg.ID,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Sender:    msg.Sender,
		RiskLevel: f.risk,
		Warnings:  []core.RemoteWarning{},
	}
	if f.risk != core.RiskNone {
		a.Warnings = append(a.Warnings, core.RemoteWarning{Title: "Suspicious", Details: "Looks like phishing", Severity: f.risk})
	}
	return a, nil
}

type countingObserver struct {
	levels []string
	errors int
}

func (o *countingObserver) ObserveAssessment(level string) { o.levels = append(o.levels, level) }
func (o *countingObserver) ObserveAssessmentError()        { o.errors++ }

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, DetectPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDetectSingle(t *testing.T) {
	assessor := &fakeAssessor{risk: core.RiskHigh}
	obs := &countingObserver{}
	h := New(assessor, zaptest.NewLogger(t), WithObserver(obs)).Handler()

	rec := post(t, h, `{"email":{"id":"m1","content":"verify now","sender":"a@b.test"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}

	var got analysisJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.EmailID != "m1" || got.RiskLevel != core.RiskHigh || got.Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected analysis %+v", got)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].Severity != core.RiskHigh {
		t.Fatalf("unexpected warnings %+v", got.Warnings)
	}
	if len(assessor.calls) != 1 || assessor.calls[0].Content != "verify now" {
		t.Fatalf("unexpected calls %+v", assessor.calls)
	}
	if len(obs.levels) != 1 || obs.levels[0] != core.RiskHigh {
		t.Fatalf("observer saw %v", obs.levels)
	}
}

func TestDetectBatch(t *testing.T) {
	assessor := &fakeAssessor{risk: core.RiskNone}
	h := New(assessor, zap.NewNop()).Handler()

	rec := post(t, h, `{"emails":[{"id":"a","content":"x","sender":"s"},{"id":"b","content":"y","sender":"s"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []analysisJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 2 || got[0].EmailID != "a" || got[1].EmailID != "b" {
		t.Fatalf("unexpected batch %+v", got)
	}
	if len(got[0].Warnings) != 0 || got[0].Warnings == nil {
		t.Fatalf("expected an empty warnings array, got %#v", got[0].Warnings)
	}
}

func TestDetectBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"empty body", "", "No JSON payload provided"},
		{"not json", "hello", "No JSON payload provided"},
		{"wrong shape", `{"message":{}}`, "Invalid payload structure"},
		{"null email", `{"email":null}`, "Invalid payload structure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakeAssessor{risk: core.RiskNone}, zap.NewNop()).Handler()
			rec := post(t, h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			var body map[string]string
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			if body["error"] != tt.wantMsg {
				t.Fatalf("error = %q, want %q", body["error"], tt.wantMsg)
			}
		})
	}
}

func TestDetectTooLarge(t *testing.T) {
	h := New(&fakeAssessor{risk: core.RiskNone}, zap.NewNop(), WithMaxRequestBytes(16)).Handler()
	rec := post(t, h, `{"email":{"id":"m1","content":"this is far too long"}}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDetectLLMFailureIsBadGateway(t *testing.T) {
	obs := &countingObserver{}
	h := New(&fakeAssessor{err: errors.New("quota exceeded")}, zap.NewNop(), WithObserver(obs)).Handler()

	rec := post(t, h, `{"email":{"id":"m1","content":"x","sender":"s"}}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if obs.errors != 1 {
		t.Fatalf("observer errors = %d", obs.errors)
	}
}

func TestPreflightAndMethods(t *testing.T) {
	h := New(&fakeAssessor{}, zap.NewNop()).Handler()

	req := httptest.NewRequest(http.MethodOptions, DetectPath, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header on preflight")
	}

	req = httptest.NewRequest(http.MethodGet, DetectPath, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rec.Code)
	}
}

// The engine's client and this service agree on the wire contract.
func TestClassifierClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(New(&fakeAssessor{risk: core.RiskMedium}, zap.NewNop()).Handler())
	defer srv.Close()

	client := classifier.NewHTTPClient(srv.URL+DetectPath, 5*time.Second, zap.NewNop())
	rv, err := client.Classify(context.Background(), core.Message{ID: "m1", Content: "hello", Sender: "a@b.test"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if verdict.Map(rv.RiskLevel) != core.VerdictUnsure {
		t.Fatalf("risk %q mapped to %q", rv.RiskLevel, verdict.Map(rv.RiskLevel))
	}
	if len(rv.Warnings) != 1 || rv.Warnings[0].Details != "Looks like phishing" {
		t.Fatalf("unexpected warnings %+v", rv.Warnings)
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := New(&fakeAssessor{risk: core.RiskNone}, zap.NewNop())
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
