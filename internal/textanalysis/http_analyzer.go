package textanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPAnalyzer calls a remote NLP service exposing /sentiment and /key-phrases.
type HTTPAnalyzer struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPAnalyzer creates a client for the NLP endpoint at baseURL.
func NewHTTPAnalyzer(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPAnalyzer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPAnalyzer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("nlp"),
	}
}

type analyzeRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

type keyPhrasesResponse struct {
	KeyPhrases []struct {
		Text  string  `json:"text"`
		Score float64 `json:"score"`
	} `json:"keyPhrases"`
}

// DetectSentiment implements Analyzer.
func (a *HTTPAnalyzer) DetectSentiment(ctx context.Context, text, language string) (SentimentResult, error) {
	var resp SentimentResult
	if err := a.post(ctx, "/sentiment", analyzeRequest{Text: text, LanguageCode: language}, &resp); err != nil {
		return SentimentResult{}, err
	}
	if resp.Sentiment == "" {
		return SentimentResult{}, fmt.Errorf("sentiment response missing verdict")
	}
	return resp, nil
}

// DetectKeyPhrases implements Analyzer.
func (a *HTTPAnalyzer) DetectKeyPhrases(ctx context.Context, text, language string) ([]string, error) {
	var resp keyPhrasesResponse
	if err := a.post(ctx, "/key-phrases", analyzeRequest{Text: text, LanguageCode: language}, &resp); err != nil {
		return nil, err
	}
	phrases := make([]string, 0, len(resp.KeyPhrases))
	for _, kp := range resp.KeyPhrases {
		phrases = append(phrases, kp.Text)
	}
	return phrases, nil
}

func (a *HTTPAnalyzer) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	a.logger.Debug("nlp call",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}
