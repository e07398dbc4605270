package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"guest_registry_backend/internal/events"
	"guest_registry_backend/internal/guests/repository"
	"guest_registry_backend/internal/guests/transport"
	"guest_registry_backend/platform/apperr"
	"guest_registry_backend/platform/logger"
	"guest_registry_backend/platform/phone"
)

// PhoneParser turns free-text phone input into canonical numbers.
type PhoneParser interface {
	Parse(raw string) (phone.Number, error)
	Canonical(raw string) string
}

// EmailValidator checks email address syntax.
type EmailValidator interface {
	Email(s string) bool
}

// Service validates guest requests and applies them to the store.
type Service struct {
	repo   repository.Repository
	phones PhoneParser
	emails EmailValidator
	bus    events.Bus
	log    *logger.Logger
}

// New creates a new guests service.
func New(repo repository.Repository, phones PhoneParser, emails EmailValidator, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, phones: phones, emails: emails, bus: bus, log: log}
}

// Add registers a new guest and returns every guest holding its phone.
func (s *Service) Add(ctx context.Context, req transport.AddGuestRequest) ([]transport.GuestResponse, error) {
	ctx, span := tracer.Start(ctx, "Add")
	defer span.End()

	if !req.Name.Set || !req.Lastname.Set || !req.PhoneNumber.Set {
		return nil, apperr.BadRequest(msgMissingAddFields)
	}

	name := req.Name.Trimmed()
	lastname := req.Lastname.Trimmed()
	if name == "" || lastname == "" {
		return nil, apperr.Validation(msgEmptyName)
	}

	number, err := s.parsePhone(req.PhoneNumber.Trimmed())
	if err != nil {
		return nil, err
	}
	country := optional(req.Country.Trimmed())
	if number.HasRegion() {
		country = optional(number.Region)
	}

	email := optional(req.Email.Trimmed())
	if email != nil && !s.emails.Email(*email) {
		return nil, apperr.Validation(msgInvalidEmail)
	}

	if err := s.ensurePhoneFree(ctx, number.E164, 0); err != nil {
		return nil, recordError(span, err)
	}
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, recordError(span, err)
	}

	created, err := s.repo.Create(ctx, repository.CreateParams{
		Name:     name,
		Lastname: lastname,
		Phone:    number.E164,
		Email:    email,
		Country:  country,
	})
	if err != nil {
		return nil, recordError(span, s.storeError(ctx, "create guest", err))
	}
	span.SetAttributes(attribute.Int64("guest.id", created.ID))

	s.publish(ctx, events.GuestCreated{
		BaseEvent: events.NewBaseEvent(),
		GuestID:   created.ID,
		Phone:     created.Phone,
		Country:   created.Country,
	})
	s.log.WithContext(ctx).Info("guest created", slog.Int64("guest_id", created.ID))

	return s.listByPhone(ctx, created.Phone)
}

// Edit applies the present fields of req to the guest holding
// currentPhoneNumber and returns every guest holding its resulting phone.
func (s *Service) Edit(ctx context.Context, req transport.EditGuestRequest) ([]transport.GuestResponse, error) {
	ctx, span := tracer.Start(ctx, "Edit")
	defer span.End()

	if !req.CurrentPhoneNumber.Set {
		return nil, apperr.BadRequest(msgMissingCurrentPhone)
	}

	guest, err := s.repo.GetByPhone(ctx, s.phones.Canonical(req.CurrentPhoneNumber.Trimmed()))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound(msgCurrentNotFound)
		}
		return nil, recordError(span, s.storeError(ctx, "get guest by phone", err))
	}
	span.SetAttributes(attribute.Int64("guest.id", guest.ID))

	var changed []string

	if name := req.NewName.Trimmed(); name != "" && name != guest.Name {
		guest.Name = name
		changed = append(changed, "name")
	}
	if lastname := req.NewLastname.Trimmed(); lastname != "" && lastname != guest.Lastname {
		guest.Lastname = lastname
		changed = append(changed, "lastname")
	}

	if req.NewPhoneNumber.Set {
		number, err := s.parsePhone(req.NewPhoneNumber.Trimmed())
		if err != nil {
			return nil, err
		}
		if err := s.ensurePhoneFree(ctx, number.E164, guest.ID); err != nil {
			return nil, recordError(span, err)
		}
		if number.E164 != guest.Phone {
			changed = append(changed, "phone")
		}
		guest.Phone = number.E164
		guest.Country = optional(number.Region)
	}

	if req.NewEmail.HasValue() {
		email := req.NewEmail.Trimmed()
		if !s.emails.Email(email) {
			return nil, apperr.Validation(msgInvalidEmail)
		}
		if err := s.ensureEmailFree(ctx, &email, guest.ID); err != nil {
			return nil, recordError(span, err)
		}
		if guest.Email == nil || *guest.Email != email {
			changed = append(changed, "email")
		}
		guest.Email = &email
	}

	updated, err := s.repo.Update(ctx, guest)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound(msgCurrentNotFound)
		}
		return nil, recordError(span, s.storeError(ctx, "update guest", err))
	}

	if len(changed) > 0 {
		s.publish(ctx, events.GuestUpdated{
			BaseEvent:     events.NewBaseEvent(),
			GuestID:       updated.ID,
			Phone:         updated.Phone,
			ChangedFields: changed,
		})
		s.log.WithContext(ctx).Info("guest updated",
			slog.Int64("guest_id", updated.ID),
			slog.Any("fields", changed),
		)
	}

	return s.listByPhone(ctx, updated.Phone)
}

// GetByEmail returns the guests holding email.
func (s *Service) GetByEmail(ctx context.Context, email transport.OptionalString) ([]transport.GuestResponse, error) {
	if !email.Set {
		return nil, apperr.BadRequest(msgMissingEmailParam)
	}

	guests, err := s.repo.ListByEmail(ctx, email.Trimmed())
	if err != nil {
		return nil, s.storeError(ctx, "list guests by email", err)
	}
	if len(guests) == 0 {
		return nil, apperr.NotFound(msgEmailNotFound)
	}
	return toResponses(guests), nil
}

// GetByPhone returns the guests holding number. The number is given without
// its leading "+".
func (s *Service) GetByPhone(ctx context.Context, number transport.OptionalString) ([]transport.GuestResponse, error) {
	if !number.Set {
		return nil, apperr.BadRequest(msgMissingNumberParam)
	}

	guests, err := s.repo.ListByPhone(ctx, s.queryPhone(number))
	if err != nil {
		return nil, s.storeError(ctx, "list guests by phone", err)
	}
	if len(guests) == 0 {
		return nil, apperr.NotFound(msgNumberNotFound)
	}
	return toResponses(guests), nil
}

// GetByID returns a single guest.
func (s *Service) GetByID(ctx context.Context, id int64) (transport.GuestResponse, error) {
	guest, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return transport.GuestResponse{}, apperr.NotFound(msgIDNotFound)
		}
		return transport.GuestResponse{}, s.storeError(ctx, "get guest by id", err)
	}
	return toResponse(guest), nil
}

// DeleteByPhone removes the guest holding number (given without "+").
func (s *Service) DeleteByPhone(ctx context.Context, number transport.OptionalString) (transport.AckResponse, error) {
	ctx, span := tracer.Start(ctx, "DeleteByPhone")
	defer span.End()

	if !number.Set {
		return transport.AckResponse{}, apperr.BadRequest(msgMissingNumberParam)
	}

	guest, err := s.repo.GetByPhone(ctx, s.queryPhone(number))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return transport.AckResponse{}, apperr.NotFound(msgNumberNotFound)
		}
		return transport.AckResponse{}, recordError(span, s.storeError(ctx, "get guest by phone", err))
	}

	if err := s.delete(ctx, guest, msgNumberNotFound); err != nil {
		return transport.AckResponse{}, recordError(span, err)
	}
	return transport.AckResponse{Ack: ackSuccess}, nil
}

// DeleteByID removes the guest with id.
func (s *Service) DeleteByID(ctx context.Context, id int64) (transport.AckResponse, error) {
	ctx, span := tracer.Start(ctx, "DeleteByID", trace.WithAttributes(attribute.Int64("guest.id", id)))
	defer span.End()

	guest, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return transport.AckResponse{}, apperr.NotFound(msgIDNotFound)
		}
		return transport.AckResponse{}, recordError(span, s.storeError(ctx, "get guest by id", err))
	}

	if err := s.delete(ctx, guest, msgIDNotFound); err != nil {
		return transport.AckResponse{}, recordError(span, err)
	}
	return transport.AckResponse{Ack: ackSuccess}, nil
}

func (s *Service) delete(ctx context.Context, guest repository.Guest, notFoundMsg string) error {
	if err := s.repo.Delete(ctx, guest.ID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.NotFound(notFoundMsg)
		}
		return s.storeError(ctx, "delete guest", err)
	}

	s.publish(ctx, events.GuestDeleted{
		BaseEvent: events.NewBaseEvent(),
		GuestID:   guest.ID,
		Phone:     guest.Phone,
	})
	s.log.WithContext(ctx).Info("guest deleted", slog.Int64("guest_id", guest.ID))
	return nil
}

func (s *Service) parsePhone(raw string) (phone.Number, error) {
	number, err := s.phones.Parse(raw)
	switch {
	case err == nil:
		return number, nil
	case errors.Is(err, phone.ErrInvalidNumber):
		return phone.Number{}, apperr.Validation(msgInvalidPhone)
	default:
		return phone.Number{}, apperr.Validation(msgInvalidPhoneFormat)
	}
}

// queryPhone rebuilds a stored phone from a query parameter. A literal "+"
// in a query string decodes to a space, so callers send digits only.
func (s *Service) queryPhone(number transport.OptionalString) string {
	digits := strings.TrimPrefix(number.Trimmed(), "+")
	return s.phones.Canonical("+" + digits)
}

// ensurePhoneFree fails when a guest other than selfID holds e164.
func (s *Service) ensurePhoneFree(ctx context.Context, e164 string, selfID int64) error {
	existing, err := s.repo.GetByPhone(ctx, e164)
	switch {
	case err == nil && existing.ID != selfID:
		return apperr.Conflict(msgDuplicatePhone)
	case err == nil, apperr.Is(err, apperr.KindNotFound):
		return nil
	default:
		return s.storeError(ctx, "check phone", err)
	}
}

// ensureEmailFree fails when a guest other than selfID holds email.
func (s *Service) ensureEmailFree(ctx context.Context, email *string, selfID int64) error {
	if email == nil {
		return nil
	}
	existing, err := s.repo.GetByEmail(ctx, *email)
	switch {
	case err == nil && existing.ID != selfID:
		return apperr.Conflict(msgDuplicateEmail)
	case err == nil, apperr.Is(err, apperr.KindNotFound):
		return nil
	default:
		return s.storeError(ctx, "check email", err)
	}
}

func (s *Service) listByPhone(ctx context.Context, e164 string) ([]transport.GuestResponse, error) {
	guests, err := s.repo.ListByPhone(ctx, e164)
	if err != nil {
		return nil, s.storeError(ctx, "list guests by phone", err)
	}
	return toResponses(guests), nil
}

// storeError translates store-level uniqueness races into conflicts and
// hides every other store failure behind a generic internal error.
func (s *Service) storeError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrPhoneTaken):
		return apperr.Conflict(msgDuplicatePhone)
	case errors.Is(err, repository.ErrEmailTaken):
		return apperr.Conflict(msgDuplicateEmail)
	}
	s.log.WithContext(ctx).DatabaseError(op, err)
	return apperr.Wrap(apperr.KindInternal, msgInternal, err).WithOp(op)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.bus.PublishSync(ctx, event); err != nil {
		s.log.WithContext(ctx).Warn("event subscriber failed",
			slog.String("event", event.EventName()),
			slog.String("error", err.Error()),
		)
	}
}

func recordError(span trace.Span, err error) error {
	if apperr.Is(err, apperr.KindInternal) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toResponse(g repository.Guest) transport.GuestResponse {
	return transport.GuestResponse{
		ID:       g.ID,
		Name:     g.Name,
		Lastname: g.Lastname,
		Phone:    g.Phone,
		Email:    g.Email,
		Country:  g.Country,
	}
}

func toResponses(guests []repository.Guest) []transport.GuestResponse {
	out := make([]transport.GuestResponse, 0, len(guests))
	for _, g := range guests {
		out = append(out, toResponse(g))
	}
	return out
}
