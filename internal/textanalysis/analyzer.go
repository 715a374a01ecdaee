// Package textanalysis provides the sentiment and key-phrase collaborators
// used by ticket classification.
package textanalysis

import (
	"context"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
)

// SentimentScores carries the per-class probabilities of a sentiment call.
type SentimentScores struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Mixed    float64 `json:"mixed"`
}

// SentimentResult is the verdict plus per-class scores.
type SentimentResult struct {
	Sentiment domain.Sentiment `json:"sentiment"`
	Scores    SentimentScores  `json:"scores"`
}

// Analyzer is an external text-analysis capability.
type Analyzer interface {
	DetectSentiment(ctx context.Context, text, language string) (SentimentResult, error)
	DetectKeyPhrases(ctx context.Context, text, language string) ([]string, error)
}
