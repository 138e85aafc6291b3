package core

import (
	"time"
)

// Severity levels produced by the classifier service
const (
	SeverityNone   = "none"
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Risk levels reported on the wire
const (
	RiskNone   = "none"
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Assessment is one phishing finding produced by an LLM
type Assessment struct {
	Title      string
	Details    string
	Severity   string
	ModelUsed  string
	AnalyzedAt time.Time
}

// Analysis is the classifier service's answer for one message
type Analysis struct {
	EmailID   string
	Timestamp time.Time
	Sender    string
	RiskLevel string
	Warnings  []RemoteWarning
}

// CacheEntry stores an assessment keyed by message fingerprint
type CacheEntry struct {
	Fingerprint string
	Assessment  *Assessment
	LastSeen    time.Time
	ExpiresAt   time.Time
}

// RiskLevel derives the overall risk level from the warnings' severities
func RiskLevel(warnings []RemoteWarning) string {
	if len(warnings) == 0 {
		return RiskNone
	}

	var medium, low int
	for _, w := range warnings {
		switch w.Severity {
		case SeverityHigh:
			return RiskHigh
		case SeverityMedium:
			medium++
		case SeverityLow:
			low++
		}
	}

	if medium > 0 {
		return RiskMedium
	}
	if low > 0 {
		return RiskLow
	}
	return RiskNone
}
