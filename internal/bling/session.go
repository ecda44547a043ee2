package bling

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// AccountSession holds the mutable OAuth state for one account: the current
// refresh token and the last authorization code submitted to the provider.
// All methods serialize on an internal mutex, including across the network
// call in Refresh: two concurrent refreshes with the same refresh token would
// race and the provider would invalidate the token for the loser.
type AccountSession struct {
	mu sync.Mutex

	logger *zap.Logger
	client *Client

	name        string
	cred        Credential
	redirectURI string
	stateMarker string

	refreshToken     string
	lastConsumedCode string
}

// NewAccountSession builds a session seeded with a refresh token (may be empty,
// leaving the session unauthorized until a code exchange succeeds). The
// expected state marker is derived from the account name, matching what
// AuthorizationURL emits.
func NewAccountSession(logger *zap.Logger, client *Client, name string, cred Credential, redirectURI, refreshToken string) *AccountSession {
	return &AccountSession{
		logger:       logger,
		client:       client,
		name:         name,
		cred:         cred,
		redirectURI:  redirectURI,
		stateMarker:  "auth-" + name,
		refreshToken: refreshToken,
	}
}

func (s *AccountSession) Name() string { return s.name }

// ExpectedState is the marker a valid callback must carry when it carries one.
func (s *AccountSession) ExpectedState() string { return s.stateMarker }

// Authorized reports whether the session currently holds a refresh token.
func (s *AccountSession) Authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken != ""
}

// CurrentRefreshToken returns the latest refresh token. Callers persisting
// tokens must always store this value, never an earlier one: a rotated token
// invalidates its predecessor.
func (s *AccountSession) CurrentRefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// SetRefreshToken replaces the stored refresh token, e.g. when seeding from
// the on-disk registry.
func (s *AccountSession) SetRefreshToken(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshToken = tok
}

// ClearAuth is the explicit transition back to Unauthorized. Refresh failures
// never take it implicitly: a transient failure must not force the user back
// through the browser flow.
func (s *AccountSession) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshToken = ""
	s.lastConsumedCode = ""
	s.logger.Info("bling.session_cleared", zap.String("account", s.name))
}

// AuthorizationURL builds the browser URL carrying this session's state marker.
func (s *AccountSession) AuthorizationURL() string {
	return s.client.AuthorizationURL(s.cred, s.redirectURI, s.stateMarker)
}

// CaptureAuthorizationCallback extracts a code/state pair from whatever the
// embedding layer hands over: a full redirect URL or a bare code string.
// Returns false when there is nothing usable: empty input, a URL without a
// code, or a state that does not match this session's marker (logged as a
// warning, since a mismatched state smells like a cross-request mix-up).
func (s *AccountSession) CaptureAuthorizationCallback(raw string) (Callback, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Callback{}, false
	}

	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		q := u.Query()
		code := q.Get("code")
		if code == "" {
			return Callback{}, false
		}
		state := q.Get("state")
		if state != "" && state != s.stateMarker {
			s.logger.Warn("bling.callback_state_mismatch",
				zap.String("account", s.name),
				zap.String("got", state),
				zap.String("want", s.stateMarker))
			return Callback{}, false
		}
		return Callback{Code: code, State: state}, true
	}

	// Anything that is not a URL is treated as a bare code.
	return Callback{Code: raw}, true
}

// ExchangeCode submits a captured code to the token endpoint and, on success,
// rotates the stored refresh token. A code that was already submitted in this
// session is rejected locally with ErrCodeConsumed; the provider would refuse
// it anyway, with a far less specific error, at the cost of a quota'd call.
func (s *AccountSession) ExchangeCode(ctx context.Context, code string) (TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code != "" && code == s.lastConsumedCode {
		s.logger.Warn("bling.code_reuse_rejected", zap.String("account", s.name))
		return TokenPair{}, ErrCodeConsumed
	}

	pair, err := s.client.ExchangeCode(ctx, s.cred, code, s.redirectURI)
	// The code is spent the moment it reaches the provider, success or not.
	s.lastConsumedCode = code
	if err != nil {
		return TokenPair{}, err
	}

	s.refreshToken = pair.RefreshToken
	return pair, nil
}

// Refresh mints a fresh access token. On rotation the stored refresh token is
// replaced; an empty refresh_token in the response keeps the previous one. On
// failure the stored token is left untouched; it may still be valid, and only
// an explicit ClearAuth discards it.
func (s *AccountSession) Refresh(ctx context.Context) (TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" {
		return TokenPair{}, ErrNotAuthorized
	}

	pair, err := s.client.RefreshAccessToken(ctx, s.cred, s.refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	if pair.RefreshToken != "" {
		s.refreshToken = pair.RefreshToken
	}
	return pair, nil
}
