package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tiburcios-stuff/bling-adapter/internal/bling"
	"github.com/tiburcios-stuff/bling-adapter/internal/dashboard"
	"github.com/tiburcios-stuff/bling-adapter/pkg/model"
)

// DashboardService defines the operations the handlers need.
type DashboardService interface {
	Accounts() []dashboard.AccountStatus
	AuthorizeURL(name string) (string, error)
	SubmitCallback(ctx context.Context, name, raw string) error
	Deauthorize(name string) error
	Orders(ctx context.Context, name string, window model.DateRange, storeID *int64, fresh bool) ([]model.Order, error)
	Summary(ctx context.Context, name string, window model.DateRange, storeID *int64, fresh bool) (model.Summary, error)
}

// Handler serves the dashboard HTTP API.
type Handler struct {
	logger  *zap.Logger
	service DashboardService
	now     func() time.Time
}

// NewHandler creates a Handler. now is swappable so tests can pin the default
// date window.
func NewHandler(logger *zap.Logger, service DashboardService) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// ListAccounts handles GET /api/v1/accounts.
func (h *Handler) ListAccounts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"accounts": h.service.Accounts()})
}

// AuthorizeURL handles GET /api/v1/accounts/:name/authorize-url.
func (h *Handler) AuthorizeURL(c *fiber.Ctx) error {
	name := c.Params("name")
	u, err := h.service.AuthorizeURL(name)
	if err != nil {
		return h.fail(c, name, err)
	}
	return c.JSON(fiber.Map{"url": u})
}

// CallbackRequest carries the browser return: a full redirect URL or a bare
// authorization code.
type CallbackRequest struct {
	Input string `json:"input"`
}

// SubmitCallback handles POST /api/v1/accounts/:name/callback.
func (h *Handler) SubmitCallback(c *fiber.Ctx) error {
	name := c.Params("name")

	var req CallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.service.SubmitCallback(c.Context(), name, req.Input); err != nil {
		h.logger.Error("api.callback_failed",
			zap.String("account", name), zap.Error(err))
		return h.fail(c, name, err)
	}
	return c.JSON(fiber.Map{"status": "authorized"})
}

// Deauthorize handles DELETE /api/v1/accounts/:name/session.
func (h *Handler) Deauthorize(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.service.Deauthorize(name); err != nil {
		return h.fail(c, name, err)
	}
	return c.JSON(fiber.Map{"status": "deauthorized"})
}

// Orders handles GET /api/v1/accounts/:name/orders.
func (h *Handler) Orders(c *fiber.Ctx) error {
	name := c.Params("name")

	window, storeID, fresh, err := h.parseQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	orders, err := h.service.Orders(c.Context(), name, window, storeID, fresh)
	if err != nil {
		h.logger.Error("api.orders_failed",
			zap.String("account", name), zap.Error(err))
		return h.fail(c, name, err)
	}
	return c.JSON(fiber.Map{"orders": orders, "count": len(orders)})
}

// Summary handles GET /api/v1/accounts/:name/summary.
func (h *Handler) Summary(c *fiber.Ctx) error {
	name := c.Params("name")

	window, storeID, fresh, err := h.parseQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sum, err := h.service.Summary(c.Context(), name, window, storeID, fresh)
	if err != nil {
		h.logger.Error("api.summary_failed",
			zap.String("account", name), zap.Error(err))
		return h.fail(c, name, err)
	}
	return c.JSON(sum)
}

// parseQuery extracts the date window (defaulting to the first day of the
// previous month through today), optional store filter, and cache-bypass flag.
func (h *Handler) parseQuery(c *fiber.Ctx) (model.DateRange, *int64, bool, error) {
	now := h.now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return model.DateRange{}, nil, false, errors.New("invalid 'from' date, want YYYY-MM-DD")
		}
		start = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return model.DateRange{}, nil, false, errors.New("invalid 'to' date, want YYYY-MM-DD")
		}
		end = t
	}
	if end.Before(start) {
		return model.DateRange{}, nil, false, errors.New("'to' must not precede 'from'")
	}

	var storeID *int64
	if v := c.Query("storeId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return model.DateRange{}, nil, false, errors.New("invalid 'storeId', want an integer")
		}
		storeID = &id
	}

	fresh := c.QueryBool("fresh")

	return model.DateRange{Start: start, End: end}, storeID, fresh, nil
}

// fail maps domain errors onto HTTP statuses. Authorization-shaped failures
// get a re-authorize hint; fetch failures are surfaced as an upstream warning
// with the result treated as absent, never partial.
func (h *Handler) fail(c *fiber.Ctx, name string, err error) error {
	var (
		exchangeErr *bling.AuthExchangeError
		missingErr  *bling.MissingRefreshTokenError
		refreshErr  *bling.RefreshError
		rateErr     *bling.RateLimitedError
		pageErr     *bling.PageFetchError
		overrunErr  *bling.PaginationOverrunError
	)

	switch {
	case errors.Is(err, dashboard.ErrUnknownAccount):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, dashboard.ErrNoCallback):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, bling.ErrCodeConsumed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})

	case errors.As(err, &rateErr):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "provider rate limit hit; try again shortly",
		})

	case errors.Is(err, bling.ErrNotAuthorized),
		errors.As(err, &exchangeErr),
		errors.As(err, &missingErr),
		errors.As(err, &refreshErr):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":       err.Error(),
			"reauthorize": true,
			"account":     name,
		})

	case errors.As(err, &pageErr), errors.As(err, &overrunErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"warning": err.Error(),
		})

	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
