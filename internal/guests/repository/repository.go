package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"guest_registry_backend/platform/apperr"
)

const (
	uniqueViolation  = "23505"
	phoneUniqueIndex = "guest_phone_key"
	emailUniqueIndex = "guest_email_key"
	guestColumns     = "id, name, lastname, phone, email, country"
)

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new guests repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetByID retrieves a guest by its ID.
func (r *Repo) GetByID(ctx context.Context, id int64) (Guest, error) {
	query := `SELECT ` + guestColumns + ` FROM guest WHERE id = $1`
	g, err := scanGuest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return Guest{}, notFoundOr(err, "get guest by id")
	}
	return g, nil
}

// GetByPhone retrieves the guest holding phone.
func (r *Repo) GetByPhone(ctx context.Context, phone string) (Guest, error) {
	query := `SELECT ` + guestColumns + ` FROM guest WHERE phone = $1`
	g, err := scanGuest(r.pool.QueryRow(ctx, query, phone))
	if err != nil {
		return Guest{}, notFoundOr(err, "get guest by phone")
	}
	return g, nil
}

// GetByEmail retrieves the guest holding email.
func (r *Repo) GetByEmail(ctx context.Context, email string) (Guest, error) {
	query := `SELECT ` + guestColumns + ` FROM guest WHERE email = $1`
	g, err := scanGuest(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return Guest{}, notFoundOr(err, "get guest by email")
	}
	return g, nil
}

// ListByPhone returns every guest holding phone, ordered by id.
func (r *Repo) ListByPhone(ctx context.Context, phone string) ([]Guest, error) {
	return r.list(ctx, "list guests by phone", `SELECT `+guestColumns+` FROM guest WHERE phone = $1 ORDER BY id`, phone)
}

// ListByEmail returns every guest holding email, ordered by id.
func (r *Repo) ListByEmail(ctx context.Context, email string) ([]Guest, error) {
	return r.list(ctx, "list guests by email", `SELECT `+guestColumns+` FROM guest WHERE email = $1 ORDER BY id`, email)
}

// Create inserts a guest and returns it with its sequence-assigned id.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Guest, error) {
	query := `
		INSERT INTO guest (name, lastname, phone, email, country)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + guestColumns

	g, err := scanGuest(r.pool.QueryRow(ctx, query,
		params.Name, params.Lastname, params.Phone, params.Email, params.Country,
	))
	if err != nil {
		if taken := uniqueViolationError(err); taken != nil {
			return Guest{}, taken
		}
		return Guest{}, fmt.Errorf("create guest: %w", err)
	}
	return g, nil
}

// Update overwrites every mutable column of the guest with guest.ID.
func (r *Repo) Update(ctx context.Context, guest Guest) (Guest, error) {
	query := `
		UPDATE guest
		SET name = $2, lastname = $3, phone = $4, email = $5, country = $6
		WHERE id = $1
		RETURNING ` + guestColumns

	g, err := scanGuest(r.pool.QueryRow(ctx, query,
		guest.ID, guest.Name, guest.Lastname, guest.Phone, guest.Email, guest.Country,
	))
	if err != nil {
		if taken := uniqueViolationError(err); taken != nil {
			return Guest{}, taken
		}
		return Guest{}, notFoundOr(err, "update guest")
	}
	return g, nil
}

// Delete removes the guest with id.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM guest WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete guest: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(guestNotFoundMessage)
	}
	return nil
}

func (r *Repo) list(ctx context.Context, op, query string, arg string) ([]Guest, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	guests := make([]Guest, 0, 1)
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		guests = append(guests, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return guests, nil
}

func scanGuest(row pgx.Row) (Guest, error) {
	var g Guest
	err := row.Scan(&g.ID, &g.Name, &g.Lastname, &g.Phone, &g.Email, &g.Country)
	return g, err
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(guestNotFoundMessage)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func uniqueViolationError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case phoneUniqueIndex:
		return ErrPhoneTaken
	case emailUniqueIndex:
		return ErrEmailTaken
	default:
		return nil
	}
}
