package textanalysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
)

func TestLexiconSentiment(t *testing.T) {
	a := NewLexiconAnalyzer()
	ctx := context.Background()

	res, err := a.DetectSentiment(ctx, "Totally broken, terrible and unacceptable!", "en")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNegative, res.Sentiment)
	assert.Greater(t, res.Scores.Negative, 0.7)

	res, err = a.DetectSentiment(ctx, "Danke, super Service", "de")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentPositive, res.Sentiment)

	res, err = a.DetectSentiment(ctx, "Please change my address", "en")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNeutral, res.Sentiment)

	res, err = a.DetectSentiment(ctx, "great product but broken login", "en")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentMixed, res.Sentiment)
}

func TestLexiconKeyPhrases(t *testing.T) {
	phrases, err := NewLexiconAnalyzer().DetectKeyPhrases(context.Background(),
		"Invoice missing. The invoice for March was never sent, invoice number 42", "en")
	require.NoError(t, err)
	require.NotEmpty(t, phrases)
	assert.Equal(t, "invoice", phrases[0])
	assert.NotContains(t, phrases, "the")
}

func TestHTTPAnalyzer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "de", req.LanguageCode)
		switch r.URL.Path {
		case "/sentiment":
			_ = json.NewEncoder(w).Encode(SentimentResult{
				Sentiment: domain.SentimentNegative,
				Scores:    SentimentScores{Negative: 0.91},
			})
		case "/key-phrases":
			_, _ = w.Write([]byte(`{"keyPhrases":[{"text":"payment gateway","score":0.9},{"text":"checkout","score":0.8}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(srv.URL+"/", time.Second, zap.NewNop())
	res, err := a.DetectSentiment(context.Background(), "text", "de")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNegative, res.Sentiment)
	assert.InDelta(t, 0.91, res.Scores.Negative, 1e-9)

	phrases, err := a.DetectKeyPhrases(context.Background(), "text", "de")
	require.NoError(t, err)
	assert.Equal(t, []string{"payment gateway", "checkout"}, phrases)
}

func TestHTTPAnalyzerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(srv.URL, time.Second, zap.NewNop())
	_, err := a.DetectSentiment(context.Background(), "text", "de")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
