package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/core"
)

type emailPayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

type detectRequest struct {
	Email  *emailPayload  `json:"email"`
	Emails []emailPayload `json:"emails"`
}

type warningJSON struct {
	Title    string `json:"title"`
	Details  string `json:"details"`
	Severity string `json:"severity"`
}

type analysisJSON struct {
	EmailID   string        `json:"email_id"`
	Timestamp string        `json:"timestamp"`
	Sender    string        `json:"sender"`
	RiskLevel string        `json:"risk_level"`
	Warnings  []warningJSON `json:"warnings"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, s.logger, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxRequestBytes+1))
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "No JSON payload provided")
		return
	}
	if int64(len(body)) > s.maxRequestBytes {
		writeError(w, s.logger, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	var req detectRequest
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &req) != nil {
		writeError(w, s.logger, http.StatusBadRequest, "No JSON payload provided")
		return
	}

	switch {
	case req.Email != nil:
		analysis, ok := s.analyze(w, r, *req.Email)
		if !ok {
			return
		}
		writeJSON(w, s.logger, http.StatusOK, analysis)

	case req.Emails != nil:
		results := make([]analysisJSON, 0, len(req.Emails))
		for _, email := range req.Emails {
			analysis, ok := s.analyze(w, r, email)
			if !ok {
				return
			}
			results = append(results, analysis)
		}
		writeJSON(w, s.logger, http.StatusOK, results)

	default:
		writeError(w, s.logger, http.StatusBadRequest, "Invalid payload structure")
	}
}

// analyze runs one assessment; on failure it has already written a 502
func (s *Server) analyze(w http.ResponseWriter, r *http.Request, email emailPayload) (analysisJSON, bool) {
	analysis, err := s.assessor.Analyze(r.Context(), &core.Message{
		ID:      email.ID,
		Content: email.Content,
		Sender:  email.Sender,
	})
	if err != nil {
		s.logger.Error("Phishing assessment failed",
			zap.String("email_id", email.ID),
			zap.Error(err))
		if s.observer != nil {
			s.observer.ObserveAssessmentError()
		}
		writeError(w, s.logger, http.StatusBadGateway, "Assessment failed: "+err.Error())
		return analysisJSON{}, false
	}

	if s.observer != nil {
		s.observer.ObserveAssessment(analysis.RiskLevel)
	}
	s.logger.Info("Email assessed",
		zap.String("email_id", analysis.EmailID),
		zap.String("sender", analysis.Sender),
		zap.String("risk_level", analysis.RiskLevel),
		zap.Int("warnings", len(analysis.Warnings)))

	return toJSON(analysis), true
}

func toJSON(a *core.Analysis) analysisJSON {
	warnings := make([]warningJSON, 0, len(a.Warnings))
	for _, w := range a.Warnings {
		warnings = append(warnings, warningJSON{Title: w.Title, Details: w.Details, Severity: w.Severity})
	}
	return analysisJSON{
		EmailID:   a.EmailID,
		Timestamp: a.Timestamp.UTC().Format(time.RFC3339),
		Sender:    a.Sender,
		RiskLevel: a.RiskLevel,
		Warnings:  warnings,
	}
}
