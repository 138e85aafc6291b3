package core

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Message is a read-only snapshot of one inbox entry
type Message struct {
	ID      string
	Content string
	Sender  string
}

// Warning is a heuristic hit resolved to its human readable form
type Warning struct {
	Rule    string
	Title   string
	Details string
}

// DetectionRecord tracks the heuristic warnings carried by a flagged message
type DetectionRecord struct {
	MessageID  string
	Warnings   []string
	DetectedAt time.Time
}

// RemoteWarning is one warning returned by the remote classifier
type RemoteWarning struct {
	Title    string `json:"title"`
	Details  string `json:"details"`
	Severity string `json:"severity,omitempty"`
}

// RemoteVerdict is the parsed response of the remote classifier
type RemoteVerdict struct {
	RiskLevel string          `json:"risk_level"`
	Warnings  []RemoteWarning `json:"warnings"`
}

// Verdict is the display classification derived from a risk level
type Verdict string

const (
	VerdictLegit  Verdict = "Legit"
	VerdictUnsure Verdict = "Unsure"
	VerdictScam   Verdict = "Scam"
)

// DisplayPayload is what the analyzer hands to the rendering surface.
// Err is set for failed analyses; Verdict is empty in that case.
type DisplayPayload struct {
	MessageID string
	Verdict   Verdict
	Summary   string
	Err       error
}

// Failed reports whether the payload describes an error state
func (p DisplayPayload) Failed() bool {
	return p.Err != nil
}

// SyntheticID derives a stable identifier for messages that carry none.
// Two messages only share an id if sender and content are identical.
func SyntheticID(sender, content string) string {
	sum := sha256.Sum256([]byte(sender + "\x00" + content))
	return "sha256:" + hex.EncodeToString(sum[:16])
}
