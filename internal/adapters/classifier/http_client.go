// Package classifier implements the remote phishing classifier client.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/core"
)

// maxResponseSize bounds how much of a response body is read
const maxResponseSize = 1 << 20

type emailPayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

type requestBody struct {
	Email emailPayload `json:"email"`
}

// HTTPClient posts messages to the classifier endpoint
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a classifier client. A zero timeout leaves the call
// bounded only by the caller's context.
func NewHTTPClient(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Classify sends msg to the classifier. Every failure is returned as a
// *core.ClassificationError; no retry is attempted. The content is sent
// as-is; the classifier service trims it for its model prompt.
func (c *HTTPClient) Classify(ctx context.Context, msg core.Message) (*core.RemoteVerdict, error) {
	body, err := json.Marshal(requestBody{Email: emailPayload{
		ID:      msg.ID,
		Content: msg.Content,
		Sender:  msg.Sender,
	}})
	if err != nil {
		return nil, &core.ClassificationError{Kind: core.KindTransport, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &core.ClassificationError{Kind: core.KindTransport, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &core.ClassificationError{Kind: transportKind(err), Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("Classifier responded",
		zap.String("message_id", msg.ID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, &core.ClassificationError{Kind: core.KindStatus, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &core.ClassificationError{Kind: transportKind(err), Err: fmt.Errorf("read response: %w", err)}
	}

	var verdict core.RemoteVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, &core.ClassificationError{Kind: core.KindDecode, Err: err}
	}
	if verdict.RiskLevel == "" {
		return nil, &core.ClassificationError{Kind: core.KindDecode, Err: errors.New("response has no risk_level")}
	}

	return &verdict, nil
}

func transportKind(err error) core.ClassificationErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.KindTimeout
	}
	return core.KindTransport
}
