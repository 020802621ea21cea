package domain

import (
	"errors"
	"fmt"
)

// ErrStallAbandoned indicates the body stream stalled past the abandon
// threshold and the item was given up on.
var ErrStallAbandoned = errors.New("stream stalled beyond abandon threshold")

// ErrRedirectMissingLocation indicates a 302 without a Location header.
var ErrRedirectMissingLocation = errors.New("redirect without location header")

// ErrTooManyRedirects indicates the redirect hop limit was exceeded.
var ErrTooManyRedirects = errors.New("redirect hop limit exceeded")

// ErrConnectAttemptsExhausted indicates the connect phase gave up after the
// configured number of timed-out attempts.
var ErrConnectAttemptsExhausted = errors.New("connect attempts exhausted")

// UnexpectedStatusError is the terminal, non-retryable outcome for any
// response status other than 200 or 302.
type UnexpectedStatusError struct {
	Status int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.Status)
}
