package hardcover

import (
	"errors"
	"fmt"
)

// Sentinel errors for Hardcover API operations.
var (
	ErrNotFound     = errors.New("hardcover: not found")
	ErrRateLimited  = errors.New("hardcover: rate limited by server")
	ErrUnauthorized = errors.New("hardcover: unauthorized")
	ErrBadRequest   = errors.New("hardcover: bad request")
	ErrServer       = errors.New("hardcover: server error")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op    string // Operation: "searchAuthor", "searchBook", "searchSeries", "getWorks"
	Query string // Search text or author ID
	Err   error
}

func (e *Error) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("hardcover %s [%s]: %v", e.Op, e.Query, e.Err)
	}
	return fmt.Sprintf("hardcover %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError creates an Error with context.
func wrapError(op, query string, err error) error {
	return &Error{
		Op:    op,
		Query: query,
		Err:   err,
	}
}
