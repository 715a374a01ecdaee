package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/x", "GET", 200, time.Millisecond)
	m.RecordError("/x", "GET", "NOT_FOUND")
	m.RecordEffect("notify", "ok")
}

func TestRequestLoggerCountsRequests(t *testing.T) {
	metrics := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), metrics))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap["requests"]["/ping|GET|200"])
}

func TestRecordEffect(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordEffect("notify", "degraded")
	metrics.RecordEffect("notify", "degraded")
	assert.Equal(t, int64(2), metrics.Snapshot()["effects"]["notify|degraded"])
}
