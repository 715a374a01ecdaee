package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-pipeline/internal/config"
	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/mail"
	"github.com/spec-kit/ticket-pipeline/internal/service"
)

func withServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	viper.Set("server", srv.URL)
	viper.Set("token", "abc")
	t.Cleanup(func() {
		viper.Set("server", "")
		viper.Set("token", "")
	})
}

func TestClientUnwrapsEnvelope(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mail/quota", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"max24h":100,"sentLast24h":3,"maxSendRate":14}}`))
	})

	var q mail.Quota
	require.NoError(t, newAPIClient().get(context.Background(), "/mail/quota", nil, &q))
	assert.Equal(t, 100, q.Max24h)
	assert.Equal(t, 3, q.SentLast24h)
}

func TestClientSurfacesAPIError(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION_FAILED","message":"days must be positive"}}`))
	})

	var a service.Analytics
	err := newAPIClient().get(context.Background(), "/analytics", nil, &a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VALIDATION_FAILED")
}

func TestRenderAnalytics(t *testing.T) {
	var buf bytes.Buffer
	renderAnalytics(&buf, &service.Analytics{
		Days:                 7,
		TotalTickets:         4,
		ResolvedTickets:      1,
		ResolutionRate:       25,
		PriorityDistribution: map[string]int{"high": 3, "low": 1},
	})
	out := buf.String()
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "high")
}

func TestClassifyTextUsesDefaultRules(t *testing.T) {
	res, err := classifyText(context.Background(), config.ClassifierConfig{Language: "de"},
		"Payment Gateway Error", "Checkout fails with an error for every customer")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketCategoryTechnical, res.Category)

	var buf bytes.Buffer
	renderClassification(&buf, res)
	assert.Contains(t, buf.String(), "technical")
}
