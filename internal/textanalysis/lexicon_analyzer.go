package textanalysis

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
)

var positiveWords = map[string]struct{}{
	"thanks": {}, "thank": {}, "great": {}, "good": {}, "love": {}, "excellent": {}, "happy": {},
	"danke": {}, "super": {}, "gut": {}, "toll": {}, "perfekt": {}, "zufrieden": {},
}

var negativeWords = map[string]struct{}{
	"angry": {}, "bad": {}, "broken": {}, "terrible": {}, "awful": {}, "unacceptable": {}, "worst": {},
	"frustrated": {}, "disappointed": {}, "useless": {}, "fail": {}, "failed": {}, "error": {},
	"schlecht": {}, "kaputt": {}, "fehler": {}, "ärgerlich": {}, "enttäuscht": {}, "unzufrieden": {},
	"inakzeptabel": {}, "katastrophe": {},
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {}, "have": {}, "from": {},
	"der": {}, "die": {}, "das": {}, "und": {}, "nicht": {}, "mit": {}, "ist": {}, "ein": {}, "eine": {},
	"bei": {}, "auf": {}, "ich": {}, "wir": {}, "sie": {},
}

const maxKeyPhrases = 10

// LexiconAnalyzer is a local word-list analyzer used when no NLP endpoint is configured.
type LexiconAnalyzer struct{}

// NewLexiconAnalyzer returns a LexiconAnalyzer.
func NewLexiconAnalyzer() *LexiconAnalyzer {
	return &LexiconAnalyzer{}
}

// DetectSentiment scores the share of positive and negative words.
func (LexiconAnalyzer) DetectSentiment(_ context.Context, text, _ string) (SentimentResult, error) {
	var pos, neg int
	for _, word := range tokenize(text) {
		if _, ok := positiveWords[word]; ok {
			pos++
		}
		if _, ok := negativeWords[word]; ok {
			neg++
		}
	}

	total := float64(pos + neg)
	if total == 0 {
		return SentimentResult{
			Sentiment: domain.SentimentNeutral,
			Scores:    SentimentScores{Neutral: 1},
		}, nil
	}

	scores := SentimentScores{
		Positive: float64(pos) / (total + 1),
		Negative: float64(neg) / (total + 1),
	}
	scores.Neutral = 1 / (total + 1)

	result := SentimentResult{Scores: scores}
	switch {
	case pos > 0 && neg > 0 && pos == neg:
		result.Sentiment = domain.SentimentMixed
		result.Scores.Mixed = scores.Positive + scores.Negative
	case neg > pos:
		result.Sentiment = domain.SentimentNegative
	default:
		result.Sentiment = domain.SentimentPositive
	}
	return result, nil
}

// DetectKeyPhrases returns the most frequent non-stopword tokens, ties broken by first appearance.
func (LexiconAnalyzer) DetectKeyPhrases(_ context.Context, text, _ string) ([]string, error) {
	counts := map[string]int{}
	order := map[string]int{}
	for i, word := range tokenize(text) {
		if len([]rune(word)) < 4 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, seen := order[word]; !seen {
			order[word] = i
		}
		counts[word]++
	}

	phrases := make([]string, 0, len(counts))
	for word := range counts {
		phrases = append(phrases, word)
	}
	sort.Slice(phrases, func(a, b int) bool {
		if counts[phrases[a]] != counts[phrases[b]] {
			return counts[phrases[a]] > counts[phrases[b]]
		}
		return order[phrases[a]] < order[phrases[b]]
	})
	if len(phrases) > maxKeyPhrases {
		phrases = phrases[:maxKeyPhrases]
	}
	return phrases, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
