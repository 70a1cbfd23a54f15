// service/lending/lending_service_test.go
package lendingsvc_test

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"librarylend/model"
	patronrepo "librarylend/repository/patron"
	lendingsvc "librarylend/service/lending"
	"librarylend/util/apperr"
)

type booksMock struct {
	getFn   func(ctx context.Context, isbn string) (*model.Book, error)
	decFn   func(ctx context.Context, isbn string) (bool, error)
	incFn   func(ctx context.Context, isbn string, delta int) error
	clearFn func(ctx context.Context) error
}

var _ lendingsvc.Books = (*booksMock)(nil)

func (m *booksMock) Get(ctx context.Context, isbn string) (*model.Book, error) {
	if m.getFn == nil {
		return nil, nil
	}
	return m.getFn(ctx, isbn)
}

func (m *booksMock) DecrementIfAvailable(ctx context.Context, isbn string) (bool, error) {
	if m.decFn == nil {
		return true, nil
	}
	return m.decFn(ctx, isbn)
}

func (m *booksMock) IncrementCopies(ctx context.Context, isbn string, delta int) error {
	if m.incFn == nil {
		return nil
	}
	return m.incFn(ctx, isbn, delta)
}

func (m *booksMock) Clear(ctx context.Context) error {
	if m.clearFn == nil {
		return nil
	}
	return m.clearFn(ctx)
}

type patronsMock struct {
	getFn    func(ctx context.Context, id string) (*model.Patron, error)
	addFn    func(ctx context.Context, id, isbn string) error
	removeFn func(ctx context.Context, id, isbn string) (bool, error)
	clearFn  func(ctx context.Context) error
}

var _ lendingsvc.Patrons = (*patronsMock)(nil)

func (m *patronsMock) Get(ctx context.Context, id string) (*model.Patron, error) {
	if m.getFn == nil {
		return nil, nil
	}
	return m.getFn(ctx, id)
}

func (m *patronsMock) AddHold(ctx context.Context, id, isbn string) error {
	if m.addFn == nil {
		return nil
	}
	return m.addFn(ctx, id, isbn)
}

func (m *patronsMock) RemoveHold(ctx context.Context, id, isbn string) (bool, error) {
	if m.removeFn == nil {
		return true, nil
	}
	return m.removeFn(ctx, id, isbn)
}

func (m *patronsMock) Clear(ctx context.Context) error {
	if m.clearFn == nil {
		return nil
	}
	return m.clearFn(ctx)
}

const isbn = "123-456-789-0"

func hobbit() *model.Book {
	return &model.Book{ISBN: isbn, Title: "The Hobbit", Authors: []string{"J.R.R. Tolkien"}, NCopies: 2}
}

func holdReq() map[string]any {
	return map[string]any{"patronId": "p1", "isbn": isbn}
}

// --- checkout ---

func TestCheckout_Success(t *testing.T) {
	var decremented, held bool
	b := &booksMock{
		getFn: func(ctx context.Context, i string) (*model.Book, error) { return hobbit(), nil },
		decFn: func(ctx context.Context, i string) (bool, error) {
			decremented = true
			return true, nil
		},
	}
	p := &patronsMock{
		addFn: func(ctx context.Context, id, i string) error {
			require.Equal(t, "p1", id)
			require.Equal(t, isbn, i)
			held = true
			return nil
		},
	}
	s := lendingsvc.New(b, p)

	require.NoError(t, s.Checkout(context.Background(), holdReq()))
	require.True(t, decremented)
	require.True(t, held)
}

func TestCheckout_Validation(t *testing.T) {
	s := lendingsvc.New(&booksMock{}, &patronsMock{})
	ctx := context.Background()

	err := s.Checkout(ctx, map[string]any{"isbn": isbn})
	require.Equal(t, apperr.Missing, apperr.CodeOf(err))

	err = s.Checkout(ctx, map[string]any{"patronId": "p1"})
	require.Equal(t, apperr.Missing, apperr.CodeOf(err))

	err = s.Checkout(ctx, map[string]any{"patronId": 42, "isbn": isbn})
	require.Equal(t, apperr.BadType, apperr.CodeOf(err))

	err = s.Checkout(ctx, map[string]any{"patronId": "p1", "isbn": 42})
	require.Equal(t, apperr.BadType, apperr.CodeOf(err))

	err = s.Checkout(ctx, map[string]any{"patronId": "  ", "isbn": isbn})
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))
}

func TestCheckout_UnknownISBN(t *testing.T) {
	s := lendingsvc.New(&booksMock{
		getFn: func(ctx context.Context, i string) (*model.Book, error) { return nil, nil },
	}, &patronsMock{})

	err := s.Checkout(context.Background(), holdReq())
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))
}

func TestCheckout_NoCopies(t *testing.T) {
	s := lendingsvc.New(&booksMock{
		getFn: func(ctx context.Context, i string) (*model.Book, error) { return hobbit(), nil },
		decFn: func(ctx context.Context, i string) (bool, error) { return false, nil },
	}, &patronsMock{})

	err := s.Checkout(context.Background(), holdReq())
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))
	require.Contains(t, err.Error(), "no copies")
}

func TestCheckout_AlreadyHeldPrecheck(t *testing.T) {
	decremented := false
	b := &booksMock{
		getFn: func(ctx context.Context, i string) (*model.Book, error) { return hobbit(), nil },
		decFn: func(ctx context.Context, i string) (bool, error) {
			decremented = true
			return true, nil
		},
	}
	p := &patronsMock{
		getFn: func(ctx context.Context, id string) (*model.Patron, error) {
			return &model.Patron{ID: id, CheckedOutBooks: []string{isbn}}, nil
		},
	}
	s := lendingsvc.New(b, p)

	err := s.Checkout(context.Background(), holdReq())
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))
	require.False(t, decremented)
}

func TestCheckout_AlreadyHeldRaceCompensates(t *testing.T) {
	// the pre-check saw no hold, but the conditional add lost the race
	var restoredDelta int
	b := &booksMock{
		getFn: func(ctx context.Context, i string) (*model.Book, error) { return hobbit(), nil },
		incFn: func(ctx context.Context, i string, delta int) error {
			restoredDelta = delta
			return nil
		},
	}
	p := &patronsMock{
		addFn: func(ctx context.Context, id, i string) error { return patronrepo.ErrAlreadyHeld },
	}
	s := lendingsvc.New(b, p)

	err := s.Checkout(context.Background(), holdReq())
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))
	require.Equal(t, 1, restoredDelta)
}

func TestCheckout_HoldFailureCompensates(t *testing.T) {
	restored := false
	dbErr := apperr.New(apperr.DB, "patrons: add hold: connection reset")
	b := &booksMock{
		getFn: func(ctx context.Context, i string) (*model.Book, error) { return hobbit(), nil },
		incFn: func(ctx context.Context, i string, delta int) error {
			restored = true
			return nil
		},
	}
	p := &patronsMock{
		addFn: func(ctx context.Context, id, i string) error { return dbErr },
	}
	s := lendingsvc.New(b, p)

	err := s.Checkout(context.Background(), holdReq())
	require.Equal(t, apperr.DB, apperr.CodeOf(err))
	require.True(t, restored)
}

// --- return ---

func TestReturn_Success(t *testing.T) {
	var incDelta int
	b := &booksMock{
		incFn: func(ctx context.Context, i string, delta int) error {
			incDelta = delta
			return nil
		},
	}
	p := &patronsMock{
		getFn: func(ctx context.Context, id string) (*model.Patron, error) {
			return &model.Patron{ID: id, CheckedOutBooks: []string{isbn}}, nil
		},
	}
	s := lendingsvc.New(b, p)

	require.NoError(t, s.Return(context.Background(), holdReq()))
	require.Equal(t, 1, incDelta)
}

func TestReturn_NoSuchCheckout(t *testing.T) {
	ctx := context.Background()

	// no patron record at all
	s := lendingsvc.New(&booksMock{}, &patronsMock{})
	err := s.Return(ctx, holdReq())
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))

	// patron exists but does not hold this isbn
	s = lendingsvc.New(&booksMock{}, &patronsMock{
		getFn: func(ctx context.Context, id string) (*model.Patron, error) {
			return &model.Patron{ID: id, CheckedOutBooks: []string{"999-999-999-9"}}, nil
		},
	})
	err = s.Return(ctx, holdReq())
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))

	// concurrent return won: the conditional pull found nothing
	incremented := false
	s = lendingsvc.New(&booksMock{
		incFn: func(ctx context.Context, i string, delta int) error {
			incremented = true
			return nil
		},
	}, &patronsMock{
		getFn: func(ctx context.Context, id string) (*model.Patron, error) {
			return &model.Patron{ID: id, CheckedOutBooks: []string{isbn}}, nil
		},
		removeFn: func(ctx context.Context, id, i string) (bool, error) { return false, nil },
	})
	err = s.Return(ctx, holdReq())
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))
	require.False(t, incremented)
}

func TestReturn_IncrementFailureRestoresHold(t *testing.T) {
	restored := false
	dbErr := apperr.New(apperr.DB, "books: increment: connection reset")
	b := &booksMock{
		incFn: func(ctx context.Context, i string, delta int) error { return dbErr },
	}
	p := &patronsMock{
		getFn: func(ctx context.Context, id string) (*model.Patron, error) {
			return &model.Patron{ID: id, CheckedOutBooks: []string{isbn}}, nil
		},
		addFn: func(ctx context.Context, id, i string) error {
			restored = true
			return nil
		},
	}
	s := lendingsvc.New(b, p)

	err := s.Return(context.Background(), holdReq())
	require.Equal(t, apperr.DB, apperr.CodeOf(err))
	require.True(t, restored)
}

// --- round trip ---

// stateful fakes: a checkout/return pair must leave the copy count unchanged
// and the hold removed.
func TestCheckoutReturn_RoundTrip(t *testing.T) {
	copies := 2
	var holds []string

	b := &booksMock{
		getFn: func(ctx context.Context, i string) (*model.Book, error) {
			bk := hobbit()
			bk.NCopies = copies
			return bk, nil
		},
		decFn: func(ctx context.Context, i string) (bool, error) {
			if copies <= 0 {
				return false, nil
			}
			copies--
			return true, nil
		},
		incFn: func(ctx context.Context, i string, delta int) error {
			copies += delta
			return nil
		},
	}
	p := &patronsMock{
		getFn: func(ctx context.Context, id string) (*model.Patron, error) {
			return &model.Patron{ID: id, CheckedOutBooks: slices.Clone(holds)}, nil
		},
		addFn: func(ctx context.Context, id, i string) error {
			if slices.Contains(holds, i) {
				return patronrepo.ErrAlreadyHeld
			}
			holds = append(holds, i)
			return nil
		},
		removeFn: func(ctx context.Context, id, i string) (bool, error) {
			before := len(holds)
			holds = slices.DeleteFunc(holds, func(h string) bool { return h == i })
			return len(holds) < before, nil
		},
	}
	s := lendingsvc.New(b, p)
	ctx := context.Background()

	require.NoError(t, s.Checkout(ctx, holdReq()))
	require.Equal(t, 1, copies)
	require.Contains(t, holds, isbn)

	// duplicate checkout by the same patron is rejected and leaves state alone
	err := s.Checkout(ctx, holdReq())
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))
	require.Equal(t, 1, copies)

	require.NoError(t, s.Return(ctx, holdReq()))
	require.Equal(t, 2, copies)
	require.NotContains(t, holds, isbn)

	// returning again is no longer possible
	err = s.Return(ctx, holdReq())
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))
}

func TestCheckout_DrainsToZeroNeverNegative(t *testing.T) {
	copies := 2
	var holds []string
	b := &booksMock{
		getFn: func(ctx context.Context, i string) (*model.Book, error) { return hobbit(), nil },
		decFn: func(ctx context.Context, i string) (bool, error) {
			if copies <= 0 {
				return false, nil
			}
			copies--
			return true, nil
		},
	}
	p := &patronsMock{
		addFn: func(ctx context.Context, id, i string) error {
			holds = append(holds, id)
			return nil
		},
	}
	s := lendingsvc.New(b, p)
	ctx := context.Background()

	require.NoError(t, s.Checkout(ctx, map[string]any{"patronId": "p1", "isbn": isbn}))
	require.NoError(t, s.Checkout(ctx, map[string]any{"patronId": "p2", "isbn": isbn}))

	err := s.Checkout(ctx, map[string]any{"patronId": "p3", "isbn": isbn})
	require.Equal(t, apperr.BadReq, apperr.CodeOf(err))
	require.Equal(t, 0, copies)
	require.Len(t, holds, 2)
}

// --- clear ---

func TestClear_AttemptsBothCollections(t *testing.T) {
	booksCleared, patronsCleared := false, false
	bErr := apperr.New(apperr.DB, "books: clear: connection reset")
	b := &booksMock{
		clearFn: func(ctx context.Context) error {
			booksCleared = true
			return bErr
		},
	}
	p := &patronsMock{
		clearFn: func(ctx context.Context) error {
			patronsCleared = true
			return nil
		},
	}
	s := lendingsvc.New(b, p)

	err := s.Clear(context.Background())
	require.Equal(t, apperr.DB, apperr.CodeOf(err))
	require.True(t, booksCleared)
	require.True(t, patronsCleared)
}
