package repository

import "go.opentelemetry.io/otel"

var tracer = otel.GetTracerProvider().Tracer("guest_registry_backend/internal/guests/repository")
