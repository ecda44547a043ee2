package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tiburcios-stuff/bling-adapter/internal/bling"
	"github.com/tiburcios-stuff/bling-adapter/internal/dashboard"
	"github.com/tiburcios-stuff/bling-adapter/internal/registry"
	"github.com/tiburcios-stuff/bling-adapter/pkg/model"
)

// mockService records calls and returns scripted results.
type mockService struct {
	accounts []dashboard.AccountStatus

	authorizeURL string
	err          error

	orders []model.Order

	gotName   string
	gotInput  string
	gotWindow model.DateRange
	gotStore  *int64
	gotFresh  bool
}

func (m *mockService) Accounts() []dashboard.AccountStatus { return m.accounts }

func (m *mockService) AuthorizeURL(name string) (string, error) {
	m.gotName = name
	return m.authorizeURL, m.err
}

func (m *mockService) SubmitCallback(_ context.Context, name, raw string) error {
	m.gotName = name
	m.gotInput = raw
	return m.err
}

func (m *mockService) Deauthorize(name string) error {
	m.gotName = name
	return m.err
}

func (m *mockService) Orders(_ context.Context, name string, window model.DateRange, storeID *int64, fresh bool) ([]model.Order, error) {
	m.gotName = name
	m.gotWindow = window
	m.gotStore = storeID
	m.gotFresh = fresh
	return m.orders, m.err
}

func (m *mockService) Summary(ctx context.Context, name string, window model.DateRange, storeID *int64, fresh bool) (model.Summary, error) {
	orders, err := m.Orders(ctx, name, window, storeID, fresh)
	if err != nil {
		return model.Summary{}, err
	}
	return dashboard.Summarize(orders), nil
}

func newTestApp(t *testing.T, svc *mockService) *fiber.App {
	t.Helper()
	h := NewHandler(zap.NewNop(), svc)
	h.now = func() time.Time {
		return time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	}
	app := fiber.New()
	RegisterRoutes(app, registry.New(filepath.Join(t.TempDir(), "config.yaml")), h)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(raw, &parsed))
	return res.StatusCode, parsed
}

// ─── Accounts ────────────────────────────────────────────────────────────────

func TestListAccounts(t *testing.T) {
	svc := &mockService{accounts: []dashboard.AccountStatus{
		{Name: "loja", Authorized: true},
	}}
	app := newTestApp(t, svc)

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/accounts", "")
	assert.Equal(t, http.StatusOK, code)

	accounts, ok := body["accounts"].([]any)
	require.True(t, ok)
	require.Len(t, accounts, 1)
	first := accounts[0].(map[string]any)
	assert.Equal(t, "loja", first["name"])
	assert.Equal(t, true, first["authorized"])
}

func TestAuthorizeURL(t *testing.T) {
	svc := &mockService{authorizeURL: "https://bling.test/oauth/authorize?x=1"}
	app := newTestApp(t, svc)

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/accounts/loja/authorize-url", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, svc.authorizeURL, body["url"])
	assert.Equal(t, "loja", svc.gotName)
}

func TestAuthorizeURL_UnknownAccount(t *testing.T) {
	svc := &mockService{err: dashboard.ErrUnknownAccount}
	app := newTestApp(t, svc)

	code, _ := doJSON(t, app, http.MethodGet, "/api/v1/accounts/ghost/authorize-url", "")
	assert.Equal(t, http.StatusNotFound, code)
}

// ─── Callback ────────────────────────────────────────────────────────────────

func TestSubmitCallback(t *testing.T) {
	svc := &mockService{}
	app := newTestApp(t, svc)

	code, body := doJSON(t, app, http.MethodPost, "/api/v1/accounts/loja/callback",
		`{"input":"http://localhost:8001/callback?code=abc&state=auth-loja"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "authorized", body["status"])
	assert.Contains(t, svc.gotInput, "code=abc")
}

func TestSubmitCallback_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"no usable callback", dashboard.ErrNoCallback, http.StatusBadRequest},
		{"code already consumed", bling.ErrCodeConsumed, http.StatusConflict},
		{"exchange rejected", &bling.AuthExchangeError{Status: 400, Body: "invalid_grant"}, http.StatusUnauthorized},
		{"no refresh token granted", &bling.MissingRefreshTokenError{}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, &mockService{err: tt.err})
			code, _ := doJSON(t, app, http.MethodPost, "/api/v1/accounts/loja/callback", `{"input":"abc"}`)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

// ─── Orders ──────────────────────────────────────────────────────────────────

func TestOrders_DefaultWindow(t *testing.T) {
	svc := &mockService{orders: []model.Order{}}
	app := newTestApp(t, svc)

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/accounts/loja/orders", "")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["count"])

	// Pinned "now" is 2024-03-15: default window is Feb 1 through Mar 15.
	assert.Equal(t, "2024-02-01", svc.gotWindow.Start.Format("2006-01-02"))
	assert.Equal(t, "2024-03-15", svc.gotWindow.End.Format("2006-01-02"))
	assert.Nil(t, svc.gotStore)
	assert.False(t, svc.gotFresh)
}

func TestOrders_QueryParams(t *testing.T) {
	svc := &mockService{orders: []model.Order{{ID: 1}}}
	app := newTestApp(t, svc)

	code, body := doJSON(t, app, http.MethodGet,
		"/api/v1/accounts/loja/orders?from=2024-01-01&to=2024-01-31&storeId=7&fresh=true", "")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	assert.Equal(t, "2024-01-01", svc.gotWindow.Start.Format("2006-01-02"))
	assert.Equal(t, "2024-01-31", svc.gotWindow.End.Format("2006-01-02"))
	require.NotNil(t, svc.gotStore)
	assert.EqualValues(t, 7, *svc.gotStore)
	assert.True(t, svc.gotFresh)
}

func TestOrders_BadQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"bad from", "?from=01/01/2024"},
		{"bad to", "?to=yesterday"},
		{"inverted window", "?from=2024-02-01&to=2024-01-01"},
		{"bad storeId", "?storeId=loja7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, &mockService{})
			code, body := doJSON(t, app, http.MethodGet, "/api/v1/accounts/loja/orders"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestOrders_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"unknown account", dashboard.ErrUnknownAccount, http.StatusNotFound},
		{"not authorized", bling.ErrNotAuthorized, http.StatusUnauthorized},
		{"refresh rejected", &bling.RefreshError{Status: 400, Body: "bad"}, http.StatusUnauthorized},
		{"rate limited", &bling.RateLimitedError{RefreshError: bling.RefreshError{Status: 429}, Attempts: 3}, http.StatusTooManyRequests},
		{"page fetch failed", &bling.PageFetchError{Status: 503, Page: 4}, http.StatusBadGateway},
		{"pagination overrun", &bling.PaginationOverrunError{Pages: 1000}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, &mockService{err: tt.err})
			code, _ := doJSON(t, app, http.MethodGet, "/api/v1/accounts/loja/orders", "")
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestOrders_UnauthorizedCarriesReauthorizeHint(t *testing.T) {
	app := newTestApp(t, &mockService{err: bling.ErrNotAuthorized})

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/accounts/loja/orders", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, true, body["reauthorize"])
	assert.Equal(t, "loja", body["account"])
}

func TestOrders_FetchFailureSurfacesWarning(t *testing.T) {
	app := newTestApp(t, &mockService{err: &bling.PageFetchError{Status: 503, Page: 2}})

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/accounts/loja/orders", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.NotEmpty(t, body["warning"], "fetch failures surface as a warning, never partial data")
	assert.NotContains(t, body, "orders")
}

// ─── Summary ─────────────────────────────────────────────────────────────────

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestSummary(t *testing.T) {
	d := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)
	svc := &mockService{orders: []model.Order{
		{ID: 1, Date: &d, Total: decPtr("10.00")},
		{ID: 2, Date: &d, Total: decPtr("20.00")},
	}}
	app := newTestApp(t, svc)

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/accounts/loja/summary", "")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["orderCount"])
	assert.Equal(t, "30", body["revenue"])
	assert.Equal(t, "15", body["averageTicket"])
}

// ─── Deauthorize ─────────────────────────────────────────────────────────────

func TestDeauthorize(t *testing.T) {
	svc := &mockService{}
	app := newTestApp(t, svc)

	code, body := doJSON(t, app, http.MethodDelete, "/api/v1/accounts/loja/session", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "deauthorized", body["status"])
	assert.Equal(t, "loja", svc.gotName)
}

// ─── Health ──────────────────────────────────────────────────────────────────

func TestHealth_OK(t *testing.T) {
	app := newTestApp(t, &mockService{})

	code, body := doJSON(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_DegradedRegistry(t *testing.T) {
	h := NewHandler(zap.NewNop(), &mockService{})
	app := fiber.New()
	// A directory path makes the registry unreadable.
	RegisterRoutes(app, registry.New(t.TempDir()), h)

	code, body := doJSON(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
}
