package handlers

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes. Only critical
// dependencies (the ticket store) make the service unready; the others
// back best-effort side effects and only degrade it.
type HealthHandler struct {
	serviceName  string
	version      string
	startedAt    time.Time
	dependencies map[string]Pinger
	critical     []string
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, dependencies map[string]Pinger, critical ...string) *HealthHandler {
	return &HealthHandler{
		serviceName:  serviceName,
		version:      version,
		startedAt:    time.Now(),
		dependencies: dependencies,
		critical:     critical,
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Ready pings every dependency concurrently.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	var mu sync.Mutex
	depStatus := fiber.Map{}
	ready, degraded := true, false

	g, gctx := errgroup.WithContext(ctx)
	for name, dep := range h.dependencies {
		g.Go(func() error {
			err := dep.Ping(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				depStatus[name] = "ok"
				return nil
			}
			depStatus[name] = err.Error()
			if slices.Contains(h.critical, name) {
				ready = false
			} else {
				degraded = true
			}
			return nil
		})
	}
	_ = g.Wait()

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "ticket store unavailable",
				"details": depStatus,
			},
		})
	}
	status := "ready"
	if degraded {
		status = "degraded"
	}
	return c.JSON(fiber.Map{"status": status, "dependencies": depStatus})
}
