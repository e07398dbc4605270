package repository

import (
	"context"
	"errors"
)

const guestNotFoundMessage = "guest not found"

var (
	// ErrPhoneTaken is returned by writes that would give two guests the same phone.
	ErrPhoneTaken = errors.New("phone already taken")
	// ErrEmailTaken is returned by writes that would give two guests the same email.
	ErrEmailTaken = errors.New("email already taken")
)

// Guest is a registered guest as stored.
type Guest struct {
	ID       int64   `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	Lastname string  `db:"lastname" json:"lastname"`
	Phone    string  `db:"phone" json:"phone"`
	Email    *string `db:"email" json:"email,omitempty"`
	Country  *string `db:"country" json:"country,omitempty"`
}

// CreateParams contains parameters for creating a guest. The id is assigned by the store.
type CreateParams struct {
	Name     string
	Lastname string
	Phone    string
	Email    *string
	Country  *string
}

// GuestReader provides read operations for guests.
// Single-row lookups return an apperr NotFound error when nothing matches.
type GuestReader interface {
	GetByID(ctx context.Context, id int64) (Guest, error)
	GetByPhone(ctx context.Context, phone string) (Guest, error)
	GetByEmail(ctx context.Context, email string) (Guest, error)
	ListByPhone(ctx context.Context, phone string) ([]Guest, error)
	ListByEmail(ctx context.Context, email string) ([]Guest, error)
}

// GuestWriter provides write operations for guests. Create and Update
// enforce phone and email uniqueness atomically with the write.
type GuestWriter interface {
	Create(ctx context.Context, params CreateParams) (Guest, error)
	Update(ctx context.Context, guest Guest) (Guest, error)
	Delete(ctx context.Context, id int64) error
}

// Repository combines all guest repository operations.
type Repository interface {
	GuestReader
	GuestWriter
}
