package analyzer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/core"
)

type stubClassifier struct {
	verdict *core.RemoteVerdict
	err     error
	calls   int
	block   chan struct{}
}

func (c *stubClassifier) Classify(ctx context.Context, msg core.Message) (*core.RemoteVerdict, error) {
	c.calls++
	if c.block != nil {
		<-c.block
	}
	return c.verdict, c.err
}

type stubSource struct {
	messages []core.Message
	err      error
}

func (s *stubSource) ListVisibleMessages(ctx context.Context) ([]core.Message, error) {
	return s.messages, s.err
}
func (s *stubSource) OnVisibleSetChanged(func())    {}
func (s *stubSource) OnMessageRemoved(func(string)) {}
func (s *stubSource) OnMessageOpened(func(string))  {}

type recordingRenderer struct {
	mu       sync.Mutex
	payloads []core.DisplayPayload
	errors   []string
}

func (r *recordingRenderer) ShowWarning(string, []core.Warning) {}
func (r *recordingRenderer) RetractWarning(string)              {}
func (r *recordingRenderer) UpdateCount(int)                    {}
func (r *recordingRenderer) ShowAnalysisResult(p core.DisplayPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}
func (r *recordingRenderer) ShowError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func TestAnalyzeRiskyVerdict(t *testing.T) {
	cls := &stubClassifier{verdict: &core.RemoteVerdict{
		RiskLevel: "risky",
		Warnings:  []core.RemoteWarning{{Title: "t", Details: "d"}},
	}}
	src := &stubSource{messages: []core.Message{{ID: "m1", Content: "x"}}}
	r := &recordingRenderer{}
	a := New(src, cls, r, zap.NewNop())

	got := a.Analyze(context.Background(), "m1")
	if got.Failed() {
		t.Fatalf("unexpected error: %v", got.Err)
	}
	if got.Verdict != core.VerdictScam || got.Summary != "d" {
		t.Fatalf("payload = %+v, want Scam/d", got)
	}
	if cls.calls != 1 {
		t.Fatalf("expected exactly one classify call, got %d", cls.calls)
	}
	if len(r.payloads) != 1 {
		t.Fatalf("expected one rendered payload, got %d", len(r.payloads))
	}
}

func TestAnalyzeTransportFailureIsNeverLegit(t *testing.T) {
	cls := &stubClassifier{err: &core.ClassificationError{Kind: core.KindTimeout, Err: context.DeadlineExceeded}}
	r := &recordingRenderer{}
	a := New(nil, cls, r, zap.NewNop())

	got := a.AnalyzeMessage(context.Background(), core.Message{ID: "m1", Content: "x"})
	if !got.Failed() {
		t.Fatal("expected failed payload")
	}
	if got.Verdict == core.VerdictLegit {
		t.Fatal("failed payload must not carry a Legit verdict")
	}
	var ce *core.ClassificationError
	if !errors.As(got.Err, &ce) || ce.Kind != core.KindTimeout {
		t.Fatalf("expected timeout classification error, got %v", got.Err)
	}
	if cls.calls != 1 {
		t.Fatalf("expected no retry, got %d calls", cls.calls)
	}
	if len(r.payloads) != 1 || !r.payloads[0].Failed() {
		t.Fatalf("expected rendered error state, got %+v", r.payloads)
	}
}

func TestAnalyzeMissingMessage(t *testing.T) {
	cls := &stubClassifier{}
	r := &recordingRenderer{}
	a := New(&stubSource{}, cls, r, zap.NewNop())

	got := a.Analyze(context.Background(), "nope")
	if !errors.Is(got.Err, core.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", got.Err)
	}
	if cls.calls != 0 {
		t.Fatal("classifier must not be called without a message")
	}
	if len(r.errors) != 1 {
		t.Fatalf("expected one user-visible error, got %v", r.errors)
	}
}

func TestAnalyzeUnavailableSource(t *testing.T) {
	a := New(&stubSource{err: core.ErrSourceUnavailable}, &stubClassifier{}, &recordingRenderer{}, zap.NewNop())
	got := a.Analyze(context.Background(), "m1")
	if !errors.Is(got.Err, core.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", got.Err)
	}
}

func TestAnalyzeDiscardsResultAfterSessionEnds(t *testing.T) {
	cls := &stubClassifier{
		verdict: &core.RemoteVerdict{RiskLevel: "none"},
		block:   make(chan struct{}),
	}
	r := &recordingRenderer{}
	a := New(nil, cls, r, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan core.DisplayPayload, 1)
	go func() { out <- a.AnalyzeMessage(ctx, core.Message{ID: "m1"}) }()

	cancel()
	close(cls.block)
	got := <-out

	if !errors.Is(got.Err, context.Canceled) {
		t.Fatalf("expected canceled payload, got %+v", got)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.payloads) != 0 {
		t.Fatalf("expected nothing rendered, got %+v", r.payloads)
	}
}

func TestAnalyzeAsyncYieldsOnePayload(t *testing.T) {
	cls := &stubClassifier{verdict: &core.RemoteVerdict{RiskLevel: "medium"}}
	src := &stubSource{messages: []core.Message{{ID: "m1"}}}
	a := New(src, cls, &recordingRenderer{}, zap.NewNop())

	ch := a.AnalyzeAsync(context.Background(), "m1")
	got, ok := <-ch
	if !ok || got.Verdict != core.VerdictUnsure {
		t.Fatalf("unexpected async payload %+v", got)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after one payload")
	}
}

func TestBuildPayloadSummaries(t *testing.T) {
	tests := []struct {
		name    string
		in      *core.RemoteVerdict
		verdict core.Verdict
		summary string
	}{
		{"first details", &core.RemoteVerdict{RiskLevel: "high", Warnings: []core.RemoteWarning{{Details: "a"}, {Details: "b"}}}, core.VerdictScam, "a"},
		{"safe", &core.RemoteVerdict{RiskLevel: "none"}, core.VerdictLegit, safeSummary},
		{"unknown without details", &core.RemoteVerdict{RiskLevel: "??"}, core.VerdictUnsure, noDetailsSummary},
		{"empty details", &core.RemoteVerdict{RiskLevel: "medium", Warnings: []core.RemoteWarning{{Title: "t"}}}, core.VerdictUnsure, noDetailsSummary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPayload("m1", tt.in)
			if got.Verdict != tt.verdict || got.Summary != tt.summary {
				t.Fatalf("BuildPayload() = %+v", got)
			}
		})
	}
}
