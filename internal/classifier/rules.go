package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
)

// RuleKind tags which ticket field a rule assigns.
type RuleKind string

const (
	RuleKindPriority RuleKind = "priority"
	RuleKindCategory RuleKind = "category"
)

// Rule assigns Value when any keyword occurs in the lower-cased ticket text.
// Confidence is only meaningful for priority rules.
type Rule struct {
	Kind       RuleKind `yaml:"kind"`
	Value      string   `yaml:"value"`
	Keywords   []string `yaml:"keywords"`
	Confidence float64  `yaml:"confidence,omitempty"`
}

// RuleSet is an ordered rule list. Within a kind, the first matching rule wins,
// so list order is the tie-break order.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
	// DefaultConfidence applies when no priority rule matches.
	DefaultConfidence float64 `yaml:"defaultConfidence"`
}

// DefaultRuleSet returns the built-in tables. Priority is checked urgent, high,
// medium; category is checked technical, billing, support, feature, account.
// Text mentioning both an error and a payment therefore lands in technical.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		DefaultConfidence: 0.5,
		Rules: []Rule{
			{Kind: RuleKindPriority, Value: string(domain.TicketPriorityUrgent), Confidence: 0.9, Keywords: []string{
				"urgent", "dringend", "critical", "kritisch", "emergency", "notfall", "asap", "sofort",
				"outage", "ausfall", "down", "security breach", "datenverlust", "data loss",
			}},
			{Kind: RuleKindPriority, Value: string(domain.TicketPriorityHigh), Confidence: 0.8, Keywords: []string{
				"important", "wichtig", "error", "fehler", "broken", "kaputt", "not working",
				"funktioniert nicht", "failed", "fehlgeschlagen", "crash", "absturz", "blocked",
			}},
			{Kind: RuleKindPriority, Value: string(domain.TicketPriorityMedium), Confidence: 0.7, Keywords: []string{
				"question", "frage", "help", "hilfe", "issue", "problem", "request", "anfrage", "slow", "langsam",
			}},
			{Kind: RuleKindCategory, Value: string(domain.TicketCategoryTechnical), Keywords: []string{
				"error", "fehler", "bug", "crash", "absturz", "server", "database", "datenbank",
				"api", "integration", "technical", "technisch", "timeout",
			}},
			{Kind: RuleKindCategory, Value: string(domain.TicketCategoryBilling), Keywords: []string{
				"payment", "zahlung", "invoice", "rechnung", "billing", "abrechnung", "refund",
				"erstattung", "charge", "subscription", "abonnement", "price", "preis",
			}},
			{Kind: RuleKindCategory, Value: string(domain.TicketCategorySupport), Keywords: []string{
				"help", "hilfe", "support", "question", "frage", "how to", "wie kann",
			}},
			{Kind: RuleKindCategory, Value: string(domain.TicketCategoryFeature), Keywords: []string{
				"feature", "funktion", "enhancement", "verbesserung", "suggestion", "vorschlag", "wish", "wunsch",
			}},
			{Kind: RuleKindCategory, Value: string(domain.TicketCategoryAccount), Keywords: []string{
				"account", "konto", "login", "anmeldung", "password", "passwort", "profile", "profil", "2fa",
			}},
		},
	}
}

// LoadRuleSet reads a YAML rule file. An empty path yields the defaults.
func LoadRuleSet(path string) (RuleSet, error) {
	if path == "" {
		return DefaultRuleSet(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rules %s: %w", path, err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if rs.DefaultConfidence == 0 {
		rs.DefaultConfidence = 0.5
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, fmt.Errorf("rules %s: %w", path, err)
	}
	return rs, nil
}

// Validate checks every rule names a known kind and value.
func (rs RuleSet) Validate() error {
	for i, r := range rs.Rules {
		switch r.Kind {
		case RuleKindPriority:
			if !domain.TicketPriority(r.Value).Valid() {
				return fmt.Errorf("rule %d: unknown priority %q", i, r.Value)
			}
			if r.Confidence < 0 || r.Confidence > 1 {
				return fmt.Errorf("rule %d: confidence %v out of range", i, r.Confidence)
			}
		case RuleKindCategory:
			if !domain.TicketCategory(r.Value).Valid() {
				return fmt.Errorf("rule %d: unknown category %q", i, r.Value)
			}
		default:
			return fmt.Errorf("rule %d: unknown kind %q", i, r.Kind)
		}
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule %d: no keywords", i)
		}
	}
	return nil
}

// firstMatch returns the first rule of kind whose keywords occur in text.
func (rs RuleSet) firstMatch(kind RuleKind, text string) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.Kind != kind {
			continue
		}
		for _, kw := range r.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return r, true
			}
		}
	}
	return Rule{}, false
}
