package core

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/whitelist"
)

// AssessmentService is the classifier service behind /api/detect-phishing
type AssessmentService struct {
	llmClient    LLMClient
	cache        CacheRepository
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	whitelist    *whitelist.Checker
}

// NewAssessmentService creates a new assessment service
func NewAssessmentService(
	llmClient LLMClient,
	cache CacheRepository,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
	allowlist *whitelist.Checker,
) *AssessmentService {
	return &AssessmentService{
		llmClient:    llmClient,
		cache:        cache,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
		whitelist:    allowlist,
	}
}

// Analyze produces the wire analysis for one message
func (s *AssessmentService) Analyze(ctx context.Context, msg *Message) (*Analysis, error) {
	analysis := &Analysis{
		EmailID:   msg.ID,
		Timestamp: time.Now(),
		Sender:    msg.Sender,
		Warnings:  []RemoteWarning{},
	}

	if s.whitelist != nil && s.whitelist.IsWhitelisted(msg.Sender) {
		s.logger.Info("Skipping phishing check for whitelisted domain",
			zap.String("sender", msg.Sender),
			zap.String("action", "whitelist_bypass"))
		analysis.RiskLevel = RiskNone
		return analysis, nil
	}

	assessment, err := s.assess(ctx, msg)
	if err != nil {
		return nil, err
	}

	if assessment.Severity != SeverityNone {
		analysis.Warnings = append(analysis.Warnings, RemoteWarning{
			Title:    assessment.Title,
			Details:  assessment.Details,
			Severity: assessment.Severity,
		})
	}
	analysis.RiskLevel = RiskLevel(analysis.Warnings)

	return analysis, nil
}

func (s *AssessmentService) assess(ctx context.Context, msg *Message) (*Assessment, error) {
	fingerprint := SyntheticID(msg.Sender, msg.Content)

	if s.cacheEnabled {
		if entry, err := s.cache.Get(ctx, fingerprint); err == nil {
			s.logger.Debug("Cache hit for message", zap.String("fingerprint", fingerprint))
			return entry.Assessment, nil
		}
	}

	assessment, err := s.llmClient.AnalyzeEmail(ctx, msg)
	if err != nil {
		return nil, err
	}
	assessment.Severity = normalizeSeverity(assessment.Severity)

	if s.cacheEnabled {
		now := time.Now()
		entry := &CacheEntry{
			Fingerprint: fingerprint,
			Assessment:  assessment,
			LastSeen:    now,
			ExpiresAt:   now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return assessment, nil
}

// normalizeSeverity folds free-form model output onto the known severities
func normalizeSeverity(severity string) string {
	s := strings.ToLower(strings.TrimSpace(severity))
	switch {
	case strings.Contains(s, SeverityHigh):
		return SeverityHigh
	case strings.Contains(s, SeverityMedium):
		return SeverityMedium
	case strings.Contains(s, SeverityLow):
		return SeverityLow
	case s == SeverityNone:
		return SeverityNone
	default:
		return SeverityMedium
	}
}
