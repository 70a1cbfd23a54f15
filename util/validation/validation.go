package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const MinYear = 1448

var isbnRE = regexp.MustCompile(`^\d{3}-\d{3}-\d{3}-\d$`)

// New returns a validator with the catalog's custom rules registered:
// isbnfmt (ddd-ddd-ddd-d), notblank (non-empty after trimming) and
// bookyear ([1448, current year]).
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("isbnfmt", func(fl validator.FieldLevel) bool {
		return isbnRE.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("bookyear", func(fl validator.FieldLevel) bool {
		y := int(fl.Field().Int())
		return y >= MinYear && y <= time.Now().Year()
	})
	return v
}
