package bling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tiburcios-stuff/bling-adapter/internal/httpclient"
	"github.com/tiburcios-stuff/bling-adapter/internal/rate"
)

// ClientOption tweaks Client construction.
type ClientOption func(*Client)

// WithRefreshPolicy overrides the bounded retry policy used for refresh calls.
func WithRefreshPolicy(maxAttempts int, baseDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.refreshPolicy.MaxAttempts = maxAttempts
		c.refreshPolicy.BaseDelay = baseDelay
	}
}

// WithHTTPTimeout overrides the outbound HTTP timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// Client wraps low-level HTTP communication with the Bling v3 API: the OAuth2
// token endpoint and the sales-order listing endpoint. Credentials are supplied
// per call so a single Client can serve every configured account.
type Client struct {
	logger    *zap.Logger
	exec      *httpclient.Executor
	endpoints Endpoints
	timeout   time.Duration

	refreshPolicy httpclient.Policy
}

// NewClient constructs a Bling HTTP client. rateMgr may be nil to disable
// outbound rate limiting (tests).
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, endpoints Endpoints, opts ...ClientOption) *Client {
	c := &Client{
		logger:    logger,
		endpoints: endpoints,
		timeout:   30 * time.Second,
		refreshPolicy: httpclient.Policy{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			Retryable:   func(status int) bool { return status == http.StatusTooManyRequests },
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.exec = httpclient.New(logger, rateMgr, &http.Client{Timeout: c.timeout}, "bling")
	return c
}

// Executor exposes the underlying executor so tests can swap transport and sleep.
func (c *Client) Executor() *httpclient.Executor { return c.exec }

// AuthorizationURL builds the browser URL that starts the authorization-code
// flow. redirectURI must match the URI registered with Bling byte for byte.
func (c *Client) AuthorizationURL(cred Credential, redirectURI, state string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {cred.ClientID},
		"redirect_uri":  {redirectURI},
		"state":         {state},
	}
	return c.endpoints.AuthURL + "?" + q.Encode()
}

// ExchangeCode trades a single-use authorization code for a token pair.
// Never retried: re-submitting a code burns it. A 200 response without a
// refresh_token is a MissingRefreshTokenError, not a silent no-op.
func (c *Client) ExchangeCode(ctx context.Context, cred Credential, code, redirectURI string) (TokenPair, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}

	res, err := c.tokenCall(ctx, cred, form, httpclient.NoRetry())
	if err != nil {
		return TokenPair{}, err
	}
	if res.Status != http.StatusOK {
		return TokenPair{}, &AuthExchangeError{Status: res.Status, Body: string(res.Body)}
	}

	var pair TokenPair
	if err := json.Unmarshal(res.Body, &pair); err != nil {
		return TokenPair{}, &AuthExchangeError{Status: res.Status, Body: string(res.Body)}
	}
	if pair.RefreshToken == "" {
		return TokenPair{}, &MissingRefreshTokenError{}
	}

	c.logger.Info("bling.code_exchanged", zap.String("client_id", cred.ClientID))
	return pair, nil
}

// RefreshAccessToken mints a new access token from a refresh token. Only 429
// responses are retried, up to the policy's attempt budget with linearly
// increasing waits; every other status fails immediately. An empty
// refresh_token in the response means the stored one is still valid.
func (c *Client) RefreshAccessToken(ctx context.Context, cred Credential, refreshToken string) (TokenPair, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	res, err := c.tokenCall(ctx, cred, form, c.refreshPolicy)
	if err != nil {
		return TokenPair{}, err
	}
	if res.Status == http.StatusTooManyRequests {
		return TokenPair{}, &RateLimitedError{
			RefreshError: RefreshError{Status: res.Status, Body: string(res.Body)},
			Attempts:     c.refreshPolicy.MaxAttempts,
		}
	}
	if res.Status != http.StatusOK {
		return TokenPair{}, &RefreshError{Status: res.Status, Body: string(res.Body)}
	}

	var pair TokenPair
	if err := json.Unmarshal(res.Body, &pair); err != nil {
		return TokenPair{}, &RefreshError{Status: res.Status, Body: string(res.Body)}
	}

	c.logger.Debug("bling.token_refreshed",
		zap.String("client_id", cred.ClientID),
		zap.Bool("rotated", pair.RefreshToken != ""))
	return pair, nil
}

// tokenCall POSTs a form to the token endpoint with HTTP Basic auth.
func (c *Client) tokenCall(ctx context.Context, cred Credential, form url.Values, pol httpclient.Policy) (*httpclient.Result, error) {
	encoded := form.Encode()
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.TokenURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(cred.ClientID, cred.ClientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
	return c.exec.Do(ctx, "bling_token:"+cred.ClientID, pol, build)
}
