package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"guest_registry_backend/platform/apperr"
)

var (
	bucketGuest      = []byte("guest_store")
	bucketPhoneIndex = []byte("guest_phone_index")
	bucketEmailIndex = []byte("guest_email_index")
)

// KVRepo implements the Repository interface on an embedded bbolt file.
// Guests are stored as JSON keyed by big-endian id; phone and email index
// buckets map each unique value to its owner's id.
type KVRepo struct {
	db *bolt.DB
}

var _ Repository = (*KVRepo)(nil)

// NewKVRepo creates the buckets if missing.
func NewKVRepo(db *bolt.DB) (*KVRepo, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketGuest, bucketPhoneIndex, bucketEmailIndex} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &KVRepo{db: db}, nil
}

func (r *KVRepo) GetByID(ctx context.Context, id int64) (Guest, error) {
	_, span := tracer.Start(ctx, "GetByID", trace.WithAttributes(attribute.Int64("guest.id", id)))
	defer span.End()

	var g Guest
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		g, err = loadGuest(tx, itob(id))
		return err
	})
	return g, endSpan(span, err)
}

func (r *KVRepo) GetByPhone(ctx context.Context, phone string) (Guest, error) {
	_, span := tracer.Start(ctx, "GetByPhone")
	defer span.End()

	g, err := r.getByIndex(bucketPhoneIndex, phone)
	return g, endSpan(span, err)
}

func (r *KVRepo) GetByEmail(ctx context.Context, email string) (Guest, error) {
	_, span := tracer.Start(ctx, "GetByEmail")
	defer span.End()

	g, err := r.getByIndex(bucketEmailIndex, email)
	return g, endSpan(span, err)
}

func (r *KVRepo) ListByPhone(ctx context.Context, phone string) ([]Guest, error) {
	g, err := r.GetByPhone(ctx, phone)
	return singleOrEmpty(g, err)
}

func (r *KVRepo) ListByEmail(ctx context.Context, email string) ([]Guest, error) {
	g, err := r.GetByEmail(ctx, email)
	return singleOrEmpty(g, err)
}

func (r *KVRepo) Create(ctx context.Context, params CreateParams) (Guest, error) {
	_, span := tracer.Start(ctx, "Create")
	defer span.End()

	g := Guest{
		Name:     params.Name,
		Lastname: params.Lastname,
		Phone:    params.Phone,
		Email:    params.Email,
		Country:  params.Country,
	}

	span.AddEvent("Update bucket")
	err := r.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketPhoneIndex).Get([]byte(g.Phone)) != nil {
			return ErrPhoneTaken
		}
		if g.Email != nil && tx.Bucket(bucketEmailIndex).Get([]byte(*g.Email)) != nil {
			return ErrEmailTaken
		}

		seq, err := tx.Bucket(bucketGuest).NextSequence()
		if err != nil {
			return err
		}
		g.ID = int64(seq)
		return putGuest(tx, g)
	})
	if err != nil {
		return Guest{}, endSpan(span, err)
	}
	span.SetAttributes(attribute.Int64("guest.id", g.ID))
	return g, nil
}

func (r *KVRepo) Update(ctx context.Context, guest Guest) (Guest, error) {
	_, span := tracer.Start(ctx, "Update", trace.WithAttributes(attribute.Int64("guest.id", guest.ID)))
	defer span.End()

	span.AddEvent("Update bucket")
	err := r.db.Update(func(tx *bolt.Tx) error {
		key := itob(guest.ID)
		current, err := loadGuest(tx, key)
		if err != nil {
			return err
		}

		if owner := tx.Bucket(bucketPhoneIndex).Get([]byte(guest.Phone)); owner != nil && !bytes.Equal(owner, key) {
			return ErrPhoneTaken
		}
		if guest.Email != nil {
			if owner := tx.Bucket(bucketEmailIndex).Get([]byte(*guest.Email)); owner != nil && !bytes.Equal(owner, key) {
				return ErrEmailTaken
			}
		}

		if err := dropIndexes(tx, current); err != nil {
			return err
		}
		return putGuest(tx, guest)
	})
	if err != nil {
		return Guest{}, endSpan(span, err)
	}
	return guest, nil
}

func (r *KVRepo) Delete(ctx context.Context, id int64) error {
	_, span := tracer.Start(ctx, "Delete", trace.WithAttributes(attribute.Int64("guest.id", id)))
	defer span.End()

	span.AddEvent("Update bucket")
	err := r.db.Update(func(tx *bolt.Tx) error {
		key := itob(id)
		current, err := loadGuest(tx, key)
		if err != nil {
			return err
		}
		if err := dropIndexes(tx, current); err != nil {
			return err
		}
		return tx.Bucket(bucketGuest).Delete(key)
	})
	return endSpan(span, err)
}

func (r *KVRepo) getByIndex(index []byte, value string) (Guest, error) {
	var g Guest
	err := r.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(index).Get([]byte(value))
		if key == nil {
			return apperr.NotFound(guestNotFoundMessage)
		}
		var err error
		g, err = loadGuest(tx, key)
		return err
	})
	return g, err
}

func loadGuest(tx *bolt.Tx, key []byte) (Guest, error) {
	raw := tx.Bucket(bucketGuest).Get(key)
	if raw == nil {
		return Guest{}, apperr.NotFound(guestNotFoundMessage)
	}
	var g Guest
	if err := json.Unmarshal(raw, &g); err != nil {
		return Guest{}, fmt.Errorf("decode guest %d: %w", binary.BigEndian.Uint64(key), err)
	}
	return g, nil
}

func putGuest(tx *bolt.Tx, g Guest) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	key := itob(g.ID)
	if err := tx.Bucket(bucketGuest).Put(key, data); err != nil {
		return err
	}
	if err := tx.Bucket(bucketPhoneIndex).Put([]byte(g.Phone), key); err != nil {
		return err
	}
	if g.Email != nil {
		return tx.Bucket(bucketEmailIndex).Put([]byte(*g.Email), key)
	}
	return nil
}

func dropIndexes(tx *bolt.Tx, g Guest) error {
	if err := tx.Bucket(bucketPhoneIndex).Delete([]byte(g.Phone)); err != nil {
		return err
	}
	if g.Email != nil {
		return tx.Bucket(bucketEmailIndex).Delete([]byte(*g.Email))
	}
	return nil
}

func singleOrEmpty(g Guest, err error) ([]Guest, error) {
	if apperr.Is(err, apperr.KindNotFound) {
		return []Guest{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []Guest{g}, nil
}

func endSpan(span trace.Span, err error) error {
	if err == nil || apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}
