// Package verdict maps remote risk levels onto display verdicts.
package verdict

import (
	"strings"

	"github.com/mikey/phish-guard/internal/core"
)

// Map converts a classifier risk level into a verdict.
// Only the exact label "none" is Legit; anything unrecognized maps to
// Unsure so it is never shown as safe.
func Map(riskLevel string) core.Verdict {
	if riskLevel == core.RiskNone {
		return core.VerdictLegit
	}

	switch strings.ToLower(strings.TrimSpace(riskLevel)) {
	case "risky", core.RiskHigh:
		return core.VerdictScam
	default:
		return core.VerdictUnsure
	}
}
