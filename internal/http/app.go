// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"guest_registry_backend/platform/config"
	"guest_registry_backend/platform/httpkit"
	"guest_registry_backend/platform/logger"
	"guest_registry_backend/platform/metrics"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.RateLimitConfig
	config.TracingConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration.
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (DB ping or bolt view).
	Health HealthChecker
	// Metrics is the Prometheus registry exposed on /metrics.
	Metrics *metrics.Metrics
	// Idempotency replays POST responses by Idempotency-Key. Nil disables it.
	Idempotency *httpkit.Idempotency
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
