// Package analyzer runs the on-demand remote classification of one message.
package analyzer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/core"
	"github.com/mikey/phish-guard/internal/verdict"
)

const (
	safeSummary      = "The email appears safe."
	noDetailsSummary = "The classifier gave no details for this verdict."
)

// Analyzer classifies a single user-selected message. It never touches the
// detection store.
type Analyzer struct {
	source     core.MessageSource
	classifier core.Classifier
	renderer   core.Renderer
	logger     *zap.Logger
}

// New creates an analyzer; source may be nil when only AnalyzeMessage is used
func New(source core.MessageSource, classifier core.Classifier, renderer core.Renderer, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		source:     source,
		classifier: classifier,
		renderer:   renderer,
		logger:     logger,
	}
}

// Analyze looks messageID up in the visible set and classifies it
func (a *Analyzer) Analyze(ctx context.Context, messageID string) core.DisplayPayload {
	msg, err := a.find(ctx, messageID)
	if err != nil {
		a.logger.Warn("Cannot analyze message", zap.String("message_id", messageID), zap.Error(err))
		if ctx.Err() == nil {
			a.renderer.ShowError(core.ErrMessageNotFound.Error())
		}
		return core.DisplayPayload{MessageID: messageID, Err: err}
	}
	return a.AnalyzeMessage(ctx, msg)
}

// AnalyzeAsync runs Analyze on its own goroutine. The channel yields exactly
// one payload and is then closed.
func (a *Analyzer) AnalyzeAsync(ctx context.Context, messageID string) <-chan core.DisplayPayload {
	out := make(chan core.DisplayPayload, 1)
	go func() {
		defer close(out)
		out <- a.Analyze(ctx, messageID)
	}()
	return out
}

// AnalyzeMessage performs exactly one classification call for msg and
// renders the outcome. If ctx ends before the call resolves the outcome is
// discarded instead of rendered.
func (a *Analyzer) AnalyzeMessage(ctx context.Context, msg core.Message) core.DisplayPayload {
	if msg.ID == "" {
		msg.ID = core.SyntheticID(msg.Sender, msg.Content)
	}

	result, err := a.classifier.Classify(ctx, msg)
	if ctxErr := ctx.Err(); ctxErr != nil {
		a.logger.Debug("Discarding analysis for ended session", zap.String("message_id", msg.ID))
		return core.DisplayPayload{MessageID: msg.ID, Err: ctxErr}
	}

	if err != nil {
		a.logger.Error("Remote classification failed", zap.String("message_id", msg.ID), zap.Error(err))
		payload := core.DisplayPayload{
			MessageID: msg.ID,
			Summary:   fmt.Sprintf("Could not analyze this email: %v", err),
			Err:       err,
		}
		a.renderer.ShowAnalysisResult(payload)
		return payload
	}

	payload := BuildPayload(msg.ID, result)
	a.logger.Info("Message analyzed",
		zap.String("message_id", msg.ID),
		zap.String("risk_level", result.RiskLevel),
		zap.String("verdict", string(payload.Verdict)))
	a.renderer.ShowAnalysisResult(payload)
	return payload
}

// BuildPayload maps a remote verdict onto its display payload. The summary is
// the first warning's details when there is one.
func BuildPayload(messageID string, result *core.RemoteVerdict) core.DisplayPayload {
	payload := core.DisplayPayload{
		MessageID: messageID,
		Verdict:   verdict.Map(result.RiskLevel),
	}

	switch {
	case len(result.Warnings) > 0 && result.Warnings[0].Details != "":
		payload.Summary = result.Warnings[0].Details
	case payload.Verdict == core.VerdictLegit:
		payload.Summary = safeSummary
	default:
		payload.Summary = noDetailsSummary
	}
	return payload
}

func (a *Analyzer) find(ctx context.Context, messageID string) (core.Message, error) {
	if a.source == nil || messageID == "" {
		return core.Message{}, core.ErrMessageNotFound
	}

	msgs, err := a.source.ListVisibleMessages(ctx)
	if err != nil {
		if errors.Is(err, core.ErrSourceUnavailable) {
			return core.Message{}, fmt.Errorf("%w: %v", core.ErrMessageNotFound, err)
		}
		return core.Message{}, err
	}

	for _, msg := range msgs {
		if msg.ID == messageID {
			return msg, nil
		}
	}
	return core.Message{}, core.ErrMessageNotFound
}
