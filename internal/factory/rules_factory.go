package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/config"
	"github.com/mikey/phish-guard/internal/heuristics"
)

// CreateRuleSet compiles the built-in rules followed by any configured extras
func CreateRuleSet(cfg *config.Config, logger *zap.Logger) (*heuristics.RuleSet, error) {
	extra, err := cfg.GetExtraRules()
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return heuristics.Default(), nil
	}

	rules, err := heuristics.Compile(append(heuristics.DefaultDefinitions(), extra...))
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded extra heuristic rules", zap.Int("count", len(extra)))
	return rules, nil
}
