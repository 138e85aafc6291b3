// Package heuristics holds the fixed rule set evaluated against message text.
package heuristics

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/mikey/phish-guard/internal/core"
)

// Rule is a named text check with the warning it raises
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Title   string
	Details string
}

// RuleDefinition is the uncompiled form used by configuration
type RuleDefinition struct {
	Name    string `mapstructure:"name"`
	Pattern string `mapstructure:"pattern"`
	Title   string `mapstructure:"title"`
	Details string `mapstructure:"details"`
}

// Default rule names
const (
	RuleUrgency         = "urgency"
	RuleSuspiciousLinks = "suspicious_links"
	RuleSuspiciousFrom  = "suspicious_sender"
	RuleGenericGreeting = "generic_greeting"
)

var defaultDefinitions = []RuleDefinition{
	{
		Name:    RuleUrgency,
		Pattern: `\b(urgent(ly)?|immediate(ly)?|account\s+(has\s+been\s+|is\s+)?suspended|verify\s+(your\s+)?account|action\s+required)\b`,
		Title:   "Urgent or threatening language",
		Details: "The message pressures you to act quickly or threatens your account.",
	},
	{
		Name:    RuleSuspiciousLinks,
		Pattern: `\b(bit\.ly|tinyurl\.com|goo\.gl|t\.co|ow\.ly|is\.gd|buff\.ly|cutt\.ly|rebrand\.ly)/|\bclick\s+here\b`,
		Title:   "Suspicious links",
		Details: "The message hides its destination behind a shortened URL or a generic \"click here\" link.",
	},
	{
		Name:    RuleSuspiciousFrom,
		Pattern: `\bno-?reply\b|\b(support|account|security)@`,
		Title:   "Suspicious sender address",
		Details: "The sender uses a generic service address often spoofed by phishing campaigns.",
	},
	{
		Name:    RuleGenericGreeting,
		Pattern: `\bdear\s+(valued\s+customer|user|account\s+holder|customer|member)\b`,
		Title:   "Generic greeting",
		Details: "The message does not address you by name.",
	},
}

// RuleSet is an immutable, ordered list of rules
type RuleSet struct {
	rules  []Rule
	byName map[string]Rule
}

// DefaultDefinitions returns a copy of the built-in rule definitions
func DefaultDefinitions() []RuleDefinition {
	defs := make([]RuleDefinition, len(defaultDefinitions))
	copy(defs, defaultDefinitions)
	return defs
}

// Default returns the built-in rule set
func Default() *RuleSet {
	rs, err := Compile(defaultDefinitions)
	if err != nil {
		panic(err)
	}
	return rs
}

// Compile builds a rule set from definitions, preserving their order.
// Patterns always match case-insensitively.
func Compile(defs []RuleDefinition) (*RuleSet, error) {
	rs := &RuleSet{
		rules:  make([]Rule, 0, len(defs)),
		byName: make(map[string]Rule, len(defs)),
	}

	for _, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, fmt.Errorf("rule with pattern %q has no name", def.Pattern)
		}
		if _, dup := rs.byName[name]; dup {
			return nil, fmt.Errorf("duplicate rule name %q", name)
		}

		re, err := regexp.Compile("(?i)" + def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", name, err)
		}

		rule := Rule{Name: name, Pattern: re, Title: def.Title, Details: def.Details}
		rs.rules = append(rs.rules, rule)
		rs.byName[name] = rule
	}

	return rs, nil
}

// Rules returns the rules in declaration order
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Evaluate returns the names of every rule matching content, in declaration order.
// Empty or unreadable content simply matches nothing.
func (rs *RuleSet) Evaluate(content string) []string {
	matches := []string{}
	if strings.TrimSpace(content) == "" {
		return matches
	}

	text := normalize(content)
	for _, rule := range rs.rules {
		if rule.Pattern.MatchString(text) {
			matches = append(matches, rule.Name)
		}
	}
	return matches
}

// EvaluateMessage evaluates the text a reader sees for a message: its body
// followed by the sender address.
func (rs *RuleSet) EvaluateMessage(msg core.Message) []string {
	if msg.Sender == "" {
		return rs.Evaluate(msg.Content)
	}
	return rs.Evaluate(msg.Content + "\n" + msg.Sender)
}

// Describe resolves rule names into warnings; unknown names are skipped
func (rs *RuleSet) Describe(names []string) []core.Warning {
	warnings := make([]core.Warning, 0, len(names))
	for _, name := range names {
		rule, ok := rs.byName[name]
		if !ok {
			continue
		}
		warnings = append(warnings, core.Warning{
			Rule:    rule.Name,
			Title:   rule.Title,
			Details: rule.Details,
		})
	}
	return warnings
}

// normalize folds compatibility characters (fullwidth letters and the like)
// and case so lookalike text still matches.
func normalize(content string) string {
	return cases.Fold().String(norm.NFKC.String(content))
}
