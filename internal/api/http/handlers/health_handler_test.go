package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	up   = pingFunc(func(context.Context) error { return nil })
	down = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func ready(t *testing.T, h *HealthHandler) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get("/ready", h.Ready)
	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestReadyAllUp(t *testing.T) {
	status, body := ready(t, NewHealthHandler("svc", "test", map[string]Pinger{"store": up, "redis": up}, "store"))
	assert.Equal(t, 200, status)
	assert.Equal(t, "ready", body["status"])
}

func TestReadyDegradedWhenOptionalDependencyDown(t *testing.T) {
	status, body := ready(t, NewHealthHandler("svc", "test", map[string]Pinger{"store": up, "redis": down}, "store"))
	assert.Equal(t, 200, status)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["dependencies"].(map[string]any)["redis"])
}

func TestReadyFailsWhenStoreDown(t *testing.T) {
	status, body := ready(t, NewHealthHandler("svc", "test", map[string]Pinger{"store": down, "redis": up}, "store"))
	assert.Equal(t, 503, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body["error"].(map[string]any)["code"])
}
