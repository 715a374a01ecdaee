package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/app"
	"github.com/spec-kit/ticket-pipeline/internal/config"
	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/mail"
)

func testConfig() *config.Config {
	return &config.Config{
		App:   config.AppConfig{Name: "ticket-pipeline", Version: "test"},
		Store: config.StoreConfig{Backend: config.BackendMemory},
		Auth:  config.AuthConfig{JWTSecret: "test-secret"},
		Notification: config.NotificationConfig{
			Enabled:           true,
			EmailFrom:         "noreply@example.com",
			DefaultRecipients: []string{"support@example.com"},
			RecipientDomain:   "example.com",
			Concurrency:       2,
			SendTimeout:       time.Second,
		},
		Classifier: config.ClassifierConfig{Language: "de"},
		Audit:      config.AuditConfig{Backend: config.BackendMemory, GroupPrefix: "/support/", Source: "test"},
		Assignment: config.AssignmentConfig{Agents: []string{"anna", "ben"}},
	}
}

func newTestServer(t *testing.T) (*fiber.App, *app.Container) {
	t.Helper()
	c, err := app.Build(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return NewServer(c), c
}

func doJSON(t *testing.T, server *fiber.App, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := server.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func createTicket(t *testing.T, server *fiber.App) map[string]any {
	t.Helper()
	status, body := doJSON(t, server, "POST", "/tickets", map[string]any{
		"title":         "Payment Gateway Error",
		"description":   "Die zahlung bricht mit einem fehler ab",
		"customerEmail": "kunde@example.org",
	})
	require.Equal(t, 201, status, body)
	return body["data"].(map[string]any)
}

func TestCreateAndGetTicket(t *testing.T) {
	server, _ := newTestServer(t)
	ticket := createTicket(t, server)

	assert.Equal(t, "technical", ticket["category"])
	assert.Equal(t, "high", ticket["priority"])
	assert.Equal(t, "open", ticket["status"])
	comments := ticket["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "system", comments[0].(map[string]any)["authorType"])

	status, body := doJSON(t, server, "GET", "/tickets/"+ticket["id"].(string), nil)
	require.Equal(t, 200, status)
	assert.Equal(t, ticket["id"], body["data"].(map[string]any)["id"])

	status, body = doJSON(t, server, "GET", "/tickets/does-not-exist", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestCreateTicketValidation(t *testing.T) {
	server, _ := newTestServer(t)
	status, body := doJSON(t, server, "POST", "/tickets", map[string]any{"title": "no description"})
	assert.Equal(t, 400, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func TestUpdateTicketWithVersion(t *testing.T) {
	server, _ := newTestServer(t)
	ticket := createTicket(t, server)
	path := "/tickets/" + ticket["id"].(string)

	status, body := doJSON(t, server, "PATCH", path, map[string]any{"status": "resolved", "version": 1})
	require.Equal(t, 200, status, body)
	updated := body["data"].(map[string]any)
	assert.Equal(t, "resolved", updated["status"])
	assert.NotEmpty(t, updated["resolvedAt"])
	assert.NotEmpty(t, body["effects"])

	status, body = doJSON(t, server, "PATCH", path, map[string]any{"status": "closed"}, "If-Match", "1")
	assert.Equal(t, 409, status)
	assert.Equal(t, "CONFLICT", body["error"].(map[string]any)["code"])
}

func TestCommentsAndIdentity(t *testing.T) {
	server, c := newTestServer(t)
	ticket := createTicket(t, server)
	path := "/tickets/" + ticket["id"].(string) + "/comments"
	token, _, err := c.Tokens.GenerateToken("agent.smith", domain.AuthorTypeAdmin)
	require.NoError(t, err)

	sentBefore := len(c.Transport.(*mail.MemoryTransport).Sent())
	status, body := doJSON(t, server, "POST", path, map[string]any{"content": "internal note", "isInternal": true}, "Authorization", "Bearer "+token)
	require.Equal(t, 201, status, body)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["firstResponseAt"])
	last := data["comments"].([]any)[1].(map[string]any)
	assert.Equal(t, "agent.smith", last["author"])
	assert.Equal(t, "admin", last["authorType"])
	assert.Len(t, c.Transport.(*mail.MemoryTransport).Sent(), sentBefore)

	status, _ = doJSON(t, server, "POST", path, map[string]any{"content": "public reply"}, "Authorization", "Bearer "+token)
	require.Equal(t, 201, status)
	assert.Greater(t, len(c.Transport.(*mail.MemoryTransport).Sent()), sentBefore)

	status, _ = doJSON(t, server, "POST", path, map[string]any{"content": "x"}, "Authorization", "Bearer nope")
	assert.Equal(t, 401, status)
}

func TestListAssignDeleteAndAnalytics(t *testing.T) {
	server, _ := newTestServer(t)
	first := createTicket(t, server)
	createTicket(t, server)

	status, body := doJSON(t, server, "POST", "/tickets/"+first["id"].(string)+"/assign", nil)
	require.Equal(t, 200, status, body)
	assert.Equal(t, "anna", body["data"].(map[string]any)["assignedTo"])

	status, body = doJSON(t, server, "GET", "/tickets?assignedTo=anna", nil)
	require.Equal(t, 200, status)
	assert.Len(t, body["data"].([]any), 1)

	status, body = doJSON(t, server, "DELETE", "/tickets/"+first["id"].(string), nil)
	require.Equal(t, 200, status)
	assert.Equal(t, true, body["data"].(map[string]any)["deleted"])

	status, body = doJSON(t, server, "GET", "/tickets?status=closed", nil)
	require.Equal(t, 200, status)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].(map[string]any)["tags"], "deleted")

	status, body = doJSON(t, server, "GET", "/analytics?days=7", nil)
	require.Equal(t, 200, status)
	analytics := body["data"].(map[string]any)
	assert.Equal(t, float64(2), analytics["totalTickets"])
	assert.Equal(t, float64(1), analytics["resolvedTickets"])
	assert.Equal(t, float64(50), analytics["resolutionRate"])

	status, _ = doJSON(t, server, "GET", "/tickets?createdFrom=yesterday", nil)
	assert.Equal(t, 400, status)
}

func TestMailAndHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	createTicket(t, server)

	status, body := doJSON(t, server, "GET", "/mail/quota", nil)
	require.Equal(t, 200, status)
	assert.Greater(t, body["data"].(map[string]any)["sentLast24h"], float64(0))

	status, body = doJSON(t, server, "GET", "/mail/stats", nil)
	require.Equal(t, 200, status)
	assert.NotEmpty(t, body["data"])

	status, _ = doJSON(t, server, "GET", "/health/live", nil)
	assert.Equal(t, 200, status)
	status, body = doJSON(t, server, "GET", "/health/ready", nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", body["dependencies"].(map[string]any)["store"])
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	status, body := doJSON(t, server, "GET", "/nope", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestRequestIDEchoed(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := server.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))

	resp, err = server.Test(httptest.NewRequest("GET", "/health/live", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
