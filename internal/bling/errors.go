package bling

import (
	"errors"
	"fmt"
)

// ErrNotAuthorized is returned when an operation needs a refresh token and the
// session has none. The caller should prompt for re-authorization.
var ErrNotAuthorized = errors.New("account is not authorized; complete the OAuth flow first")

// ErrCodeConsumed is returned when a session is asked to exchange an
// authorization code it has already submitted. The rejection is local; no
// network call is made.
var ErrCodeConsumed = errors.New("authorization code was already used in this session")

// AuthExchangeError reports a non-200 response from the token endpoint during
// an authorization-code exchange.
type AuthExchangeError struct {
	Status int
	Body   string
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("code exchange failed: %d - %s", e.Status, e.Body)
}

// MissingRefreshTokenError reports a 200 token response that omitted the
// refresh_token. Callers must not retain a stale token in this case.
type MissingRefreshTokenError struct{}

func (e *MissingRefreshTokenError) Error() string {
	return "token response did not include a refresh_token"
}

// RefreshError reports a non-200 response from the token endpoint during a
// refresh-token grant.
type RefreshError struct {
	Status int
	Body   string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %d - %s", e.Status, e.Body)
}

// RateLimitedError is the retryable subtype of RefreshError raised when the
// token endpoint answers 429 and the bounded retry budget is exhausted.
type RateLimitedError struct {
	RefreshError
	Attempts int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("token refresh rate limited after %d attempts: %d - %s",
		e.Attempts, e.Status, e.Body)
}

func (e *RateLimitedError) Unwrap() error { return &e.RefreshError }

// PageFetchError reports a non-200 response mid-pagination. Rows accumulated
// before the failure are discarded; the fetch is all-or-nothing.
type PageFetchError struct {
	Status int
	Page   int
	Body   string
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("order listing page %d failed: %d - %s", e.Page, e.Status, e.Body)
}

// PaginationOverrunError reports that the listing never terminated within the
// defensive page ceiling, which indicates a misbehaving upstream.
type PaginationOverrunError struct {
	Pages int
}

func (e *PaginationOverrunError) Error() string {
	return fmt.Sprintf("order listing did not terminate within %d pages", e.Pages)
}
