package catalogsvc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"librarylend/model"
	"librarylend/util/apperr"
	"librarylend/util/validation"
)

type Book = model.Book

type Repo interface {
	Get(ctx context.Context, isbn string) (*model.Book, error)
	Insert(ctx context.Context, b *model.Book) error
	IncrementCopies(ctx context.Context, isbn string, delta int) error
	Search(ctx context.Context, tokens []string, index, count int) ([]model.Book, error)
}

type Service interface {
	// AddBook validates the untyped request and either inserts a new catalog
	// entry or bumps nCopies on the stored one.
	AddBook(ctx context.Context, req map[string]any) (*model.Book, error)

	// FindBooks runs a paginated multi-word search over title and authors.
	FindBooks(ctx context.Context, req map[string]any) ([]model.Book, error)
}

type service struct {
	r Repo
	v *validator.Validate
}

func New(r Repo, v *validator.Validate) Service { return &service{r: r, v: v} }

// Words are maximal runs of word characters, two characters or longer.
var wordRE = regexp.MustCompile(`\w{2,}`)

// bookRecord is the typed intermediate the field bag parses into; field order
// fixes which semantic violation gets reported first.
type bookRecord struct {
	ISBN      string   `validate:"isbnfmt"`
	Title     string   `validate:"notblank"`
	Authors   []string `validate:"min=1,dive,notblank"`
	Publisher string   `validate:"notblank"`
	Pages     int      `validate:"gt=0"`
	Year      int      `validate:"bookyear"`
	NCopies   int      `validate:"gt=0"`
}

var requiredBookFields = []string{"isbn", "title", "pages", "authors", "publisher", "year", "nCopies"}

func (s *service) AddBook(ctx context.Context, req map[string]any) (*model.Book, error) {
	for _, f := range requiredBookFields {
		if _, ok := req[f]; !ok {
			return nil, apperr.New(apperr.Missing, "missing required field %s", f)
		}
	}

	// shape pass: all BAD_TYPE failures outrank any semantic one
	isbn, err := stringField(req, "isbn")
	if err != nil {
		return nil, err
	}
	title, err := stringField(req, "title")
	if err != nil {
		return nil, err
	}
	authors, err := stringsField(req, "authors")
	if err != nil {
		return nil, err
	}
	publisher, err := stringField(req, "publisher")
	if err != nil {
		return nil, err
	}
	pages, err := numberField(req, "pages")
	if err != nil {
		return nil, err
	}
	year, err := numberField(req, "year")
	if err != nil {
		return nil, err
	}
	nCopies, err := numberField(req, "nCopies")
	if err != nil {
		return nil, err
	}

	// semantic pass
	for _, n := range []struct {
		name string
		val  float64
	}{{"pages", pages}, {"year", year}, {"nCopies", nCopies}} {
		if n.val != math.Trunc(n.val) {
			return nil, apperr.New(apperr.BadReq, "%s must be an integer", n.name)
		}
	}
	rec := bookRecord{
		ISBN:      isbn,
		Title:     title,
		Authors:   authors,
		Publisher: publisher,
		Pages:     int(pages),
		Year:      int(year),
		NCopies:   int(nCopies),
	}
	if err := s.v.Struct(rec); err != nil {
		return nil, semanticErr(err)
	}

	b := &model.Book{
		ISBN:      rec.ISBN,
		Title:     rec.Title,
		Authors:   rec.Authors,
		Publisher: rec.Publisher,
		Pages:     rec.Pages,
		Year:      rec.Year,
		NCopies:   rec.NCopies,
	}
	stored, err := s.r.Get(ctx, b.ISBN)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		if err := s.r.Insert(ctx, b); err != nil {
			return nil, err
		}
		return b, nil
	}
	if f := firstMismatch(stored, b); f != "" {
		return nil, apperr.New(apperr.BadReq, "inconsistent %s for isbn %s", f, b.ISBN)
	}
	if err := s.r.IncrementCopies(ctx, b.ISBN, b.NCopies); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) FindBooks(ctx context.Context, req map[string]any) ([]model.Book, error) {
	raw, ok := req["search"]
	if !ok {
		return nil, apperr.New(apperr.Missing, "missing required field search")
	}
	search, ok := raw.(string)
	if !ok {
		return nil, apperr.New(apperr.Missing, "search must be a string")
	}
	tokens := wordRE.FindAllString(search, -1)
	if len(tokens) == 0 {
		return nil, apperr.New(apperr.BadReq, "search %q contains no words", search)
	}
	index, err := pageParam(req, "index", 0)
	if err != nil {
		return nil, err
	}
	count, err := pageParam(req, "count", 5)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		// a store limit of 0 would mean "unlimited"
		return []model.Book{}, nil
	}
	books, err := s.r.Search(ctx, tokens, index, count)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []model.Book{}
	}
	return books, nil
}

// firstMismatch compares stored metadata against the re-added record and
// reports only the first differing field, in this fixed priority.
func firstMismatch(stored, req *model.Book) string {
	switch {
	case stored.Title != req.Title:
		return "title"
	case !slices.Equal(stored.Authors, req.Authors):
		return "authors"
	case stored.Pages != req.Pages:
		return "pages"
	case stored.Year != req.Year:
		return "year"
	case stored.Publisher != req.Publisher:
		return "publisher"
	}
	return ""
}

func stringField(req map[string]any, name string) (string, error) {
	s, ok := req[name].(string)
	if !ok {
		return "", apperr.New(apperr.BadType, "%s must be a string", name)
	}
	return s, nil
}

func stringsField(req map[string]any, name string) ([]string, error) {
	switch v := req[name].(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, apperr.New(apperr.BadType, "%s must be a list of strings", name)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, apperr.New(apperr.BadType, "%s must be a list of strings", name)
	}
}

func numberField(req map[string]any, name string) (float64, error) {
	switch v := req[name].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, apperr.New(apperr.BadType, "%s must be a number", name)
	}
}

// pageParam reads an optional non-negative integer with a default.
func pageParam(req map[string]any, name string, def int) (int, error) {
	raw, ok := req[name]
	if !ok || raw == nil {
		return def, nil
	}
	f, err := numberField(req, name)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, apperr.New(apperr.BadReq, "%s must be an integer", name)
	}
	if f < 0 {
		return 0, apperr.New(apperr.BadReq, "%s must be non-negative", name)
	}
	return int(f), nil
}

// semanticErr maps the first failing validator field to a BAD_REQ naming it.
func semanticErr(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.New(apperr.BadReq, "invalid book payload")
	}
	name := verrs[0].StructNamespace()
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	msgs := map[string]string{
		"ISBN":      "isbn must have the form ddd-ddd-ddd-d",
		"Title":     "title must be a non-empty string",
		"Authors":   "authors must be a non-empty list of non-empty strings",
		"Publisher": "publisher must be a non-empty string",
		"Pages":     "pages must be a positive integer",
		"Year":      fmt.Sprintf("year must be between %d and %d", validation.MinYear, time.Now().Year()),
		"NCopies":   "nCopies must be a positive integer",
	}
	if m, ok := msgs[name]; ok {
		return apperr.New(apperr.BadReq, "%s", m)
	}
	return apperr.New(apperr.BadReq, "invalid %s", name)
}
