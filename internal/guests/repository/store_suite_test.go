package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/suite"

	"guest_registry_backend/platform/apperr"
)

// guestStoreSuite holds behaviour every Repository backend must share.
// Backends embed it and set repo in SetupTest.
type guestStoreSuite struct {
	suite.Suite
	repo Repository
}

func strPtr(s string) *string { return &s }

func (s *guestStoreSuite) create(name, phone string, email *string) Guest {
	g, err := s.repo.Create(context.Background(), CreateParams{
		Name:     name,
		Lastname: "Testov",
		Phone:    phone,
		Email:    email,
		Country:  strPtr("RU"),
	})
	s.Require().NoError(err)
	return g
}

func (s *guestStoreSuite) TestCreateAssignsIncreasingIDs() {
	first := s.create("First", "+79297169752", nil)
	second := s.create("Second", "+79297169750", strPtr("second@test.ru"))

	s.Positive(first.ID)
	s.Greater(second.ID, first.ID)
	s.Nil(first.Email)
	s.Equal("second@test.ru", *second.Email)
}

func (s *guestStoreSuite) TestCreateKeepsLongCountry() {
	ctx := context.Background()
	country := "Deutschland (non-geographic freephone caller)"

	created, err := s.repo.Create(ctx, CreateParams{
		Name:     "Hans",
		Lastname: "Muller",
		Phone:    "+80012345678",
		Country:  &country,
	})
	s.Require().NoError(err)

	stored, err := s.repo.GetByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.Country)
	s.Equal(country, *stored.Country)
}

func (s *guestStoreSuite) TestLookups() {
	ctx := context.Background()
	created := s.create("Ivan", "+79297169752", strPtr("ivan@test.ru"))

	byID, err := s.repo.GetByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created, byID)

	byPhone, err := s.repo.GetByPhone(ctx, "+79297169752")
	s.Require().NoError(err)
	s.Equal(created, byPhone)

	byEmail, err := s.repo.GetByEmail(ctx, "ivan@test.ru")
	s.Require().NoError(err)
	s.Equal(created, byEmail)

	list, err := s.repo.ListByPhone(ctx, "+79297169752")
	s.Require().NoError(err)
	s.Equal([]Guest{created}, list)

	list, err = s.repo.ListByEmail(ctx, "ivan@test.ru")
	s.Require().NoError(err)
	s.Equal([]Guest{created}, list)
}

func (s *guestStoreSuite) TestMissingGuest() {
	ctx := context.Background()

	_, err := s.repo.GetByID(ctx, 4242)
	s.True(apperr.Is(err, apperr.KindNotFound))
	_, err = s.repo.GetByPhone(ctx, "+79297169752")
	s.True(apperr.Is(err, apperr.KindNotFound))
	_, err = s.repo.GetByEmail(ctx, "nobody@test.ru")
	s.True(apperr.Is(err, apperr.KindNotFound))

	list, err := s.repo.ListByPhone(ctx, "+79297169752")
	s.Require().NoError(err)
	s.Empty(list)
	s.NotNil(list)

	_, err = s.repo.Update(ctx, Guest{ID: 4242, Name: "x", Lastname: "y", Phone: "+79297169752"})
	s.True(apperr.Is(err, apperr.KindNotFound))
	s.True(apperr.Is(s.repo.Delete(ctx, 4242), apperr.KindNotFound))
}

func (s *guestStoreSuite) TestCreateRejectsDuplicates() {
	ctx := context.Background()
	s.create("Ivan", "+79297169752", strPtr("ivan@test.ru"))

	_, err := s.repo.Create(ctx, CreateParams{Name: "A", Lastname: "B", Phone: "+79297169752"})
	s.ErrorIs(err, ErrPhoneTaken)

	_, err = s.repo.Create(ctx, CreateParams{Name: "A", Lastname: "B", Phone: "+79297169750", Email: strPtr("ivan@test.ru")})
	s.ErrorIs(err, ErrEmailTaken)
}

func (s *guestStoreSuite) TestNullEmailsDoNotCollide() {
	s.create("First", "+79297169752", nil)
	s.create("Second", "+79297169750", nil)
}

func (s *guestStoreSuite) TestUpdateMovesUniqueValues() {
	ctx := context.Background()
	g := s.create("Ivan", "+79297169752", strPtr("old@test.ru"))

	g.Phone = "+16502530000"
	g.Email = strPtr("new@test.ru")
	g.Country = strPtr("US")
	updated, err := s.repo.Update(ctx, g)
	s.Require().NoError(err)
	s.Equal(g, updated)

	_, err = s.repo.GetByPhone(ctx, "+79297169752")
	s.True(apperr.Is(err, apperr.KindNotFound))
	_, err = s.repo.GetByEmail(ctx, "old@test.ru")
	s.True(apperr.Is(err, apperr.KindNotFound))

	// Freed values can be reused by another guest.
	s.create("Other", "+79297169752", strPtr("old@test.ru"))
}

func (s *guestStoreSuite) TestUpdateRejectsValuesOfOtherGuests() {
	ctx := context.Background()
	s.create("Taken", "+79297169750", strPtr("taken@test.ru"))
	g := s.create("Ivan", "+79297169752", nil)

	samePhone := g
	samePhone.Phone = "+79297169750"
	_, err := s.repo.Update(ctx, samePhone)
	s.ErrorIs(err, ErrPhoneTaken)

	sameEmail := g
	sameEmail.Email = strPtr("taken@test.ru")
	_, err = s.repo.Update(ctx, sameEmail)
	s.ErrorIs(err, ErrEmailTaken)

	unchanged, err := s.repo.GetByID(ctx, g.ID)
	s.Require().NoError(err)
	s.Equal(g, unchanged)

	// Re-saving a guest's own values is not a conflict.
	_, err = s.repo.Update(ctx, g)
	s.NoError(err)
}

func (s *guestStoreSuite) TestDeleteFreesPhone() {
	ctx := context.Background()
	g := s.create("Ivan", "+79297169752", strPtr("ivan@test.ru"))

	s.Require().NoError(s.repo.Delete(ctx, g.ID))

	_, err := s.repo.GetByID(ctx, g.ID)
	s.True(apperr.Is(err, apperr.KindNotFound))
	s.create("Again", "+79297169752", strPtr("ivan@test.ru"))
}

func (s *guestStoreSuite) TestConcurrentCreateSamePhone() {
	const goroutines = 20
	var wg sync.WaitGroup
	var created, taken atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.repo.Create(context.Background(), CreateParams{Name: "A", Lastname: "B", Phone: "+79297169752"})
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, ErrPhoneTaken):
				taken.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), taken.Load())
}
