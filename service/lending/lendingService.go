package lendingsvc

import (
	"context"
	"errors"
	"strings"

	"librarylend/model"
	patronrepo "librarylend/repository/patron"
	"librarylend/util/apperr"
)

type Books interface {
	Get(ctx context.Context, isbn string) (*model.Book, error)
	DecrementIfAvailable(ctx context.Context, isbn string) (bool, error)
	IncrementCopies(ctx context.Context, isbn string, delta int) error
	Clear(ctx context.Context) error
}

type Patrons interface {
	Get(ctx context.Context, id string) (*model.Patron, error)
	AddHold(ctx context.Context, id, isbn string) error
	RemoveHold(ctx context.Context, id, isbn string) (bool, error)
	Clear(ctx context.Context) error
}

type Service interface {
	// Checkout grants one copy of isbn to the patron, creating the patron
	// record on first checkout.
	Checkout(ctx context.Context, req map[string]any) error

	// Return gives a held copy back.
	Return(ctx context.Context, req map[string]any) error

	// Clear empties both collections. Administrative reset only.
	Clear(ctx context.Context) error
}

type service struct {
	books   Books
	patrons Patrons
}

func New(b Books, p Patrons) Service { return &service{books: b, patrons: p} }

func (s *service) Checkout(ctx context.Context, req map[string]any) error {
	patronID, isbn, err := parseHoldReq(req)
	if err != nil {
		return err
	}

	book, err := s.books.Get(ctx, isbn)
	if err != nil {
		return err
	}
	if book == nil {
		return apperr.New(apperr.BadReq, "unknown isbn %s", isbn)
	}
	p, err := s.patrons.Get(ctx, patronID)
	if err != nil {
		return err
	}
	if p.Holds(isbn) {
		return apperr.New(apperr.BadReq, "patron %s already has isbn %s checked out", patronID, isbn)
	}

	// Guarded decrement first; the hold write follows, with a compensating
	// increment if it cannot be applied, so a copy is never lost to a
	// phantom decrement.
	ok, err := s.books.DecrementIfAvailable(ctx, isbn)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.BadReq, "no copies of isbn %s available", isbn)
	}
	if err := s.patrons.AddHold(ctx, patronID, isbn); err != nil {
		if rbErr := s.books.IncrementCopies(ctx, isbn, 1); rbErr != nil {
			return apperr.New(apperr.DB,
				"hold for %s/%s failed (%v) and copy restore failed: %v", patronID, isbn, err, rbErr)
		}
		if errors.Is(err, patronrepo.ErrAlreadyHeld) {
			return apperr.New(apperr.BadReq, "patron %s already has isbn %s checked out", patronID, isbn)
		}
		return err
	}
	return nil
}

func (s *service) Return(ctx context.Context, req map[string]any) error {
	patronID, isbn, err := parseHoldReq(req)
	if err != nil {
		return err
	}

	p, err := s.patrons.Get(ctx, patronID)
	if err != nil {
		return err
	}
	if !p.Holds(isbn) {
		return apperr.New(apperr.BadReq, "no checkout of isbn %s by patron %s", isbn, patronID)
	}

	// The conditional pull is the authoritative check; a concurrent return
	// of the same hold loses here instead of double-incrementing.
	removed, err := s.patrons.RemoveHold(ctx, patronID, isbn)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.New(apperr.BadReq, "no checkout of isbn %s by patron %s", isbn, patronID)
	}
	if err := s.books.IncrementCopies(ctx, isbn, 1); err != nil {
		if rbErr := s.patrons.AddHold(ctx, patronID, isbn); rbErr != nil && !errors.Is(rbErr, patronrepo.ErrAlreadyHeld) {
			return apperr.New(apperr.DB,
				"increment for %s failed (%v) and hold restore failed: %v", isbn, err, rbErr)
		}
		return err
	}
	return nil
}

// Clear always attempts both collections before reporting.
func (s *service) Clear(ctx context.Context) error {
	bErr := s.books.Clear(ctx)
	pErr := s.patrons.Clear(ctx)
	if bErr != nil {
		return bErr
	}
	return pErr
}

func parseHoldReq(req map[string]any) (patronID, isbn string, err error) {
	for _, f := range []string{"patronId", "isbn"} {
		if _, ok := req[f]; !ok {
			return "", "", apperr.New(apperr.Missing, "missing required field %s", f)
		}
	}
	patronID, ok := req["patronId"].(string)
	if !ok {
		return "", "", apperr.New(apperr.BadType, "patronId must be a string")
	}
	isbn, ok = req["isbn"].(string)
	if !ok {
		return "", "", apperr.New(apperr.BadType, "isbn must be a string")
	}
	if strings.TrimSpace(patronID) == "" {
		return "", "", apperr.New(apperr.BadReq, "patronId must be non-empty")
	}
	if strings.TrimSpace(isbn) == "" {
		return "", "", apperr.New(apperr.BadReq, "isbn must be non-empty")
	}
	return patronID, isbn, nil
}
