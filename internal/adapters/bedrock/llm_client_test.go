package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/core"
	"github.com/mikey/phish-guard/internal/utils"
)

type fakeInvoker struct {
	body  []byte
	err   error
	input *bedrockruntime.InvokeModelInput
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func newTestClient(modelID string, inv invoker) *BedrockClient {
	logger := zap.NewNop()
	return &BedrockClient{
		client:        inv,
		modelID:       modelID,
		maxTokens:     200,
		temperature:   0.1,
		topP:          0.9,
		maxBodySize:   4096,
		logger:        logger,
		textProcessor: utils.NewTextProcessor(logger),
	}
}

const answer = `{"title":"Invoice scam","details":"Unexpected invoice with link","severity":"medium"}`

func TestAnalyzeEmailModelFamilies(t *testing.T) {
	answerJSON, _ := json.Marshal(answer)

	tests := []struct {
		name     string
		modelID  string
		response string
		wantKey  string
	}{
		{
			name:     "claude messages",
			modelID:  "anthropic.claude-3-haiku-20240307-v1:0",
			response: `{"content":[{"type":"text","text":` + string(answerJSON) + `}]}`,
			wantKey:  "messages",
		},
		{
			name:     "titan",
			modelID:  "amazon.titan-text-express-v1",
			response: `{"results":[{"outputText":` + string(answerJSON) + `}]}`,
			wantKey:  "inputText",
		},
		{
			name:     "generic",
			modelID:  "meta.llama3-8b-instruct-v1:0",
			response: `{"generation":` + string(answerJSON) + `}`,
			wantKey:  "prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInvoker{body: []byte(tt.response)}
			client := newTestClient(tt.modelID, inv)

			got, err := client.AnalyzeEmail(context.Background(), &core.Message{Content: "Pay the attached invoice", Sender: "billing@vendor.test"})
			if err != nil {
				t.Fatalf("AnalyzeEmail() error = %v", err)
			}
			if got.Severity != core.SeverityMedium || got.ModelUsed != tt.modelID {
				t.Fatalf("unexpected assessment %+v", got)
			}

			var sent map[string]any
			if err := json.Unmarshal(inv.input.Body, &sent); err != nil {
				t.Fatalf("request body is not JSON: %v", err)
			}
			if _, ok := sent[tt.wantKey]; !ok {
				t.Fatalf("request body %v missing %q", sent, tt.wantKey)
			}
		})
	}
}

func TestAnalyzeEmailInvokeError(t *testing.T) {
	client := newTestClient("anthropic.claude-v2", &fakeInvoker{err: errors.New("throttled")})
	if _, err := client.AnalyzeEmail(context.Background(), &core.Message{Content: "hi"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnalyzeEmailEmptyClaudeResponse(t *testing.T) {
	client := newTestClient("anthropic.claude-v2", &fakeInvoker{body: []byte(`{"content":[]}`)})
	if _, err := client.AnalyzeEmail(context.Background(), &core.Message{Content: "hi"}); err == nil {
		t.Fatal("expected error")
	}
}
