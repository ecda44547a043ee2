package bling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/tiburcios-stuff/bling-adapter/internal/httpclient"
	"github.com/tiburcios-stuff/bling-adapter/pkg/model"
)

const (
	defaultPageSize = 100
	defaultMaxPages = 1000
)

// FetchOptions tunes a single FetchOrders call.
type FetchOptions struct {
	PageSize int    // rows per page; defaults to 100
	MaxPages int    // defensive ceiling; defaults to 1000
	StoreID  *int64 // optional idLoja filter
}

// FetchOrders walks the paginated sales-order listing for an inclusive date
// window and returns the flattened, normalized result set. Pagination is
// 1-based and terminates when a page comes back empty or short. The fetch is
// all-or-nothing: a non-200 mid-pagination discards everything collected so
// far, because a partial set would silently under-report revenue.
func (c *Client) FetchOrders(ctx context.Context, accessToken string, window model.DateRange, opts FetchOptions) ([]model.Order, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	orders := make([]model.Order, 0, pageSize)

	for page := 1; page <= maxPages; page++ {
		q := url.Values{
			"dataInicial": {window.Start.Format("2006-01-02")},
			"dataFinal":   {window.End.Format("2006-01-02")},
			"limite":      {strconv.Itoa(pageSize)},
			"pagina":      {strconv.Itoa(page)},
		}
		if opts.StoreID != nil {
			q.Set("idLoja", strconv.FormatInt(*opts.StoreID, 10))
		}
		reqURL := c.endpoints.OrdersURL + "?" + q.Encode()

		build := func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+accessToken)
			req.Header.Set("Accept", "application/json")
			return req, nil
		}

		res, err := c.exec.Do(ctx, "bling_orders:"+c.endpoints.OrdersURL, httpclient.NoRetry(), build)
		if err != nil {
			return nil, err
		}
		if res.Status != http.StatusOK {
			return nil, &PageFetchError{Status: res.Status, Page: page, Body: string(res.Body)}
		}

		rows, err := decodeListingPage(res.Body)
		if err != nil {
			return nil, fmt.Errorf("order listing page %d: %w", page, err)
		}

		for _, raw := range rows {
			orders = append(orders, normalizeOrder(raw))
		}

		c.logger.Debug("bling.page_fetched",
			zap.Int("page", page),
			zap.Int("rows", len(rows)))

		// Empty or short page ends the listing; neither is an error.
		if len(rows) == 0 || len(rows) < pageSize {
			return orders, nil
		}
	}

	return nil, &PaginationOverrunError{Pages: maxPages}
}

// decodeListingPage tolerates the endpoint's response shapes: a bare array,
// or an object wrapping the rows under "data" or "itens".
func decodeListingPage(body []byte) ([]map[string]any, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var rawRows []any
	switch v := payload.(type) {
	case []any:
		rawRows = v
	case map[string]any:
		if rows, ok := v["data"].([]any); ok {
			rawRows = rows
		} else if rows, ok := v["itens"].([]any); ok {
			rawRows = rows
		}
	case nil:
		// null body: treated as an empty page
	default:
		return nil, fmt.Errorf("unexpected response shape %T", payload)
	}

	rows := make([]map[string]any, 0, len(rawRows))
	for _, r := range rawRows {
		if m, ok := r.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	return rows, nil
}
