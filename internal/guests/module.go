// Package guests provides the guest registry bounded context module.
// This module validates, stores and serves guest records.
package guests

import (
	"context"

	"guest_registry_backend/internal/events"
	"guest_registry_backend/internal/guests/handler"
	"guest_registry_backend/internal/guests/repository"
	"guest_registry_backend/internal/guests/service"
	apphttp "guest_registry_backend/internal/http"
	"guest_registry_backend/platform/logger"
	"guest_registry_backend/platform/metrics"
)

// Module is the guests bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewModule creates and initializes the guests module with all its dependencies.
func NewModule(
	repo repository.Repository,
	phones service.PhoneParser,
	emails service.EmailValidator,
	bus events.Bus,
	m *metrics.Metrics,
	log *logger.Logger,
) *Module {
	svc := service.New(repo, phones, emails, bus, log)

	return &Module{
		handler: handler.New(svc),
		metrics: m,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "guests"
}

// RegisterRoutes mounts guest routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	r := ctx.Root

	r.GET("/", m.handler.Welcome)

	mutating := r.Group("", ctx.Mutating...)
	mutating.POST("/add-guest", m.handler.Add)
	mutating.POST("/edit-guest", m.handler.Edit)

	r.GET("/get-guest-by-email", m.handler.GetByEmail)
	r.GET("/get-guest-by-phone", m.handler.GetByPhone)
	r.GET("/get-guest-by-id/:id", m.handler.GetByID)

	r.DELETE("/delete-guest-by-phone", m.handler.DeleteByPhone)
	r.DELETE("/delete-guest/:id", m.handler.DeleteByID)
}

// RegisterHandlers subscribes the module to its own lifecycle events for
// metrics and the audit log.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.GuestCreated{}.EventName(), m)
	bus.Subscribe(events.GuestUpdated{}.EventName(), m)
	bus.Subscribe(events.GuestDeleted{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.GuestCreated:
		m.record("created", e.EventName(), e.GuestID, e.Phone)
	case events.GuestUpdated:
		m.record("updated", e.EventName(), e.GuestID, e.Phone)
	case events.GuestDeleted:
		m.record("deleted", e.EventName(), e.GuestID, e.Phone)
	}
	return nil
}

func (m *Module) record(op, event string, guestID int64, phone string) {
	if m.metrics != nil {
		m.metrics.IncrementGuestMutation(op)
	}
	m.log.GuestEvent(event, guestID, phone)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
