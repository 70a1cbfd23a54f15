package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failure for callers.
type Code string

const (
	Missing Code = "MISSING"  // required field absent
	BadType Code = "BAD_TYPE" // field present, wrong shape
	BadReq  Code = "BAD_REQ"  // well-typed but violates a business rule
	DB      Code = "DB"       // underlying storage fault
)

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the classification from err, "" if err carries none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
