// Package classifier derives priority, category and sentiment from ticket text.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/textanalysis"
)

const (
	escalationThreshold = 0.7
	escalationBoost     = 0.1
	fallbackConfidence  = 0.1
)

// ErrEmptyInput is reported when title or description is blank.
var ErrEmptyInput = errors.New("title and description are required")

// Classification is the enrichment folded into a new ticket.
type Classification struct {
	Priority   domain.TicketPriority
	Category   domain.TicketCategory
	Sentiment  domain.Sentiment
	KeyPhrases []string
	Confidence float64
	// Escalated is set when negative sentiment raised the keyword priority.
	Escalated bool
}

// Status describes how a classification was produced.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFallback Status = "fallback"
)

// Result pairs a classification with how it was obtained. When Status is
// StatusFallback, Err carries the absorbed cause.
type Result struct {
	Classification
	Status Status
	Err    error
}

// Fallback is the fixed classification used whenever analysis fails.
func Fallback() Classification {
	return Classification{
		Priority:   domain.TicketPriorityMedium,
		Category:   domain.TicketCategoryOther,
		Sentiment:  domain.SentimentNeutral,
		KeyPhrases: []string{},
		Confidence: fallbackConfidence,
	}
}

// Engine classifies ticket text with an Analyzer and an ordered RuleSet.
type Engine struct {
	analyzer textanalysis.Analyzer
	rules    RuleSet
	language string
	logger   *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(analyzer textanalysis.Analyzer, rules RuleSet, language string, logger *zap.Logger) *Engine {
	if language == "" {
		language = "de"
	}
	return &Engine{analyzer: analyzer, rules: rules, language: language, logger: logger.Named("classifier")}
}

// Classify never fails the caller: any analysis error yields Fallback().
func (e *Engine) Classify(ctx context.Context, title, description string) Result {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(description) == "" {
		return e.fallback(ErrEmptyInput)
	}
	text := title + " " + description

	sentiment, err := e.analyzer.DetectSentiment(ctx, text, e.language)
	if err != nil {
		return e.fallback(fmt.Errorf("detect sentiment: %w", err))
	}
	phrases, err := e.analyzer.DetectKeyPhrases(ctx, text, e.language)
	if err != nil {
		return e.fallback(fmt.Errorf("detect key phrases: %w", err))
	}
	if phrases == nil {
		phrases = []string{}
	}

	c := e.scan(strings.ToLower(text))
	c.Sentiment = sentiment.Sentiment
	c.KeyPhrases = phrases

	if sentiment.Sentiment == domain.SentimentNegative && sentiment.Scores.Negative > escalationThreshold {
		if raised, ok := raise(c.Priority); ok {
			c.Priority = raised
			c.Confidence = domain.ClampConfidence(c.Confidence + escalationBoost)
			c.Escalated = true
		}
	}
	c.Confidence = domain.ClampConfidence(c.Confidence)

	return Result{Classification: c, Status: StatusOK}
}

// scan applies the keyword tables to lower-cased text.
func (e *Engine) scan(text string) Classification {
	c := Classification{
		Priority:   domain.TicketPriorityLow,
		Category:   domain.TicketCategoryOther,
		Confidence: e.rules.DefaultConfidence,
	}
	if r, ok := e.rules.firstMatch(RuleKindPriority, text); ok {
		c.Priority = domain.TicketPriority(r.Value)
		c.Confidence = r.Confidence
	}
	if r, ok := e.rules.firstMatch(RuleKindCategory, text); ok {
		c.Category = domain.TicketCategory(r.Value)
	}
	return c
}

func (e *Engine) fallback(err error) Result {
	e.logger.Warn("classification degraded to fallback", zap.Error(err))
	return Result{Classification: Fallback(), Status: StatusFallback, Err: err}
}

// raise moves low to medium and medium to high; high and urgent are unchanged.
func raise(p domain.TicketPriority) (domain.TicketPriority, bool) {
	switch p {
	case domain.TicketPriorityLow:
		return domain.TicketPriorityMedium, true
	case domain.TicketPriorityMedium:
		return domain.TicketPriorityHigh, true
	}
	return p, false
}

// UrgencyScore blends priority, sentiment and confidence into [0, 100].
func UrgencyScore(c Classification) int {
	score := 50.0
	switch c.Priority {
	case domain.TicketPriorityUrgent:
		score += 30
	case domain.TicketPriorityHigh:
		score += 15
	case domain.TicketPriorityLow:
		score -= 15
	}
	switch c.Sentiment {
	case domain.SentimentNegative:
		score += 20
	case domain.SentimentPositive:
		score -= 10
	}
	score += (c.Confidence - 0.5) * 20
	return domain.ClampUrgency(score)
}
