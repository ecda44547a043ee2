package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tiburcios-stuff/bling-adapter/internal/bling"
	"github.com/tiburcios-stuff/bling-adapter/internal/metrics"
	"github.com/tiburcios-stuff/bling-adapter/internal/registry"
	"github.com/tiburcios-stuff/bling-adapter/pkg/cache"
	"github.com/tiburcios-stuff/bling-adapter/pkg/model"
	"github.com/tiburcios-stuff/bling-adapter/pkg/utils"
)

// ErrUnknownAccount is returned for account names absent from the registry.
var ErrUnknownAccount = errors.New("unknown account")

// ErrNoCallback is returned when the submitted input carried nothing usable as
// an authorization callback.
var ErrNoCallback = errors.New("no valid authorization callback in input")

// AccountStatus is the per-account view exposed to the UI layer.
type AccountStatus struct {
	Name       string `json:"name"`
	Authorized bool   `json:"authorized"`
}

// Options tunes Service construction.
type Options struct {
	RedirectURI    string
	PageSize       int
	MaxPages       int
	ResultCacheTTL time.Duration
}

// Service orchestrates the dashboard's data path: per-account token refresh,
// paginated order fetching, normalization, rotation persistence, and a short
// TTL result cache so repeated renders of the same window don't spend API
// quota. Refreshes are serialized per account inside AccountSession.
type Service struct {
	logger *zap.Logger
	client *bling.Client
	reg    *registry.Registry
	opts   Options

	mu       sync.RWMutex
	sessions map[string]*bling.AccountSession

	results *cache.Cache[[]model.Order]
}

// New loads the account registry and builds a session per account.
func New(logger *zap.Logger, client *bling.Client, reg *registry.Registry, opts Options) (*Service, error) {
	accounts, err := reg.Load()
	if err != nil {
		return nil, fmt.Errorf("load account registry: %w", err)
	}

	ttl := opts.ResultCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	s := &Service{
		logger:   logger,
		client:   client,
		reg:      reg,
		opts:     opts,
		sessions: make(map[string]*bling.AccountSession, len(accounts)),
		results:  cache.New[[]model.Order](ttl),
	}

	for _, acc := range accounts {
		cred := bling.Credential{ClientID: acc.ClientID, ClientSecret: acc.ClientSecret}
		s.sessions[acc.Name] = bling.NewAccountSession(
			logger, client, acc.Name, cred, opts.RedirectURI, acc.RefreshToken)
		logger.Info("dashboard.account_loaded",
			zap.String("account", acc.Name),
			zap.Bool("authorized", acc.RefreshToken != ""),
			zap.String("refresh_token", utils.MaskToken(acc.RefreshToken)))
	}

	return s, nil
}

// Accounts lists registered accounts and their authorization state.
func (s *Service) Accounts() []AccountStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AccountStatus, 0, len(s.sessions))
	for name, sess := range s.sessions {
		out = append(out, AccountStatus{Name: name, Authorized: sess.Authorized()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AuthorizeURL returns the provider authorization URL for an account.
func (s *Service) AuthorizeURL(name string) (string, error) {
	sess, err := s.session(name)
	if err != nil {
		return "", err
	}
	return sess.AuthorizationURL(), nil
}

// SubmitCallback captures a browser return (full URL or bare code), exchanges
// the code, and persists the rotated refresh token to the registry.
func (s *Service) SubmitCallback(ctx context.Context, name, raw string) error {
	sess, err := s.session(name)
	if err != nil {
		return err
	}

	cb, ok := sess.CaptureAuthorizationCallback(raw)
	if !ok {
		return ErrNoCallback
	}

	if _, err := sess.ExchangeCode(ctx, cb.Code); err != nil {
		metrics.IncCodeExchange(name, "error")
		return err
	}
	metrics.IncCodeExchange(name, "ok")

	if err := s.reg.UpdateRefreshToken(name, sess.CurrentRefreshToken()); err != nil {
		s.logger.Error("dashboard.persist_token_failed",
			zap.String("account", name), zap.Error(err))
		metrics.IncError("dashboard", "persist_token")
		return err
	}

	s.invalidateAccount(name)
	s.logger.Info("dashboard.account_authorized", zap.String("account", name))
	return nil
}

// Deauthorize is the explicit transition back to Unauthorized for an account's
// in-memory session. The registry entry is left alone so the operator can
// re-seed without re-running the bootstrap.
func (s *Service) Deauthorize(name string) error {
	sess, err := s.session(name)
	if err != nil {
		return err
	}
	sess.ClearAuth()
	s.invalidateAccount(name)
	return nil
}

// Orders returns the normalized order set for a window, via the result cache
// unless fresh is set. On a miss it refreshes the access token (rotating and
// persisting the refresh token) and walks the paginated listing.
func (s *Service) Orders(ctx context.Context, name string, window model.DateRange, storeID *int64, fresh bool) ([]model.Order, error) {
	sess, err := s.session(name)
	if err != nil {
		return nil, err
	}

	key := resultKey(name, window, storeID)
	if !fresh {
		if orders, ok := s.results.Get(key); ok {
			metrics.IncCacheAccess("hit")
			return orders, nil
		}
	}
	metrics.IncCacheAccess("miss")

	before := sess.CurrentRefreshToken()
	pair, err := sess.Refresh(ctx)
	if err != nil {
		var rl *bling.RateLimitedError
		if errors.As(err, &rl) {
			metrics.IncTokenRefresh(name, "rate_limited")
		} else {
			metrics.IncTokenRefresh(name, "error")
		}
		return nil, err
	}
	metrics.IncTokenRefresh(name, "ok")

	// Persist rotation immediately: a replaced refresh token invalidates the
	// previous one, and losing the new value means a forced re-authorization.
	if after := sess.CurrentRefreshToken(); after != before {
		if err := s.reg.UpdateRefreshToken(name, after); err != nil {
			s.logger.Error("dashboard.persist_token_failed",
				zap.String("account", name), zap.Error(err))
			metrics.IncError("dashboard", "persist_token")
		}
	}

	orders, err := s.client.FetchOrders(ctx, pair.AccessToken, window, bling.FetchOptions{
		PageSize: s.opts.PageSize,
		MaxPages: s.opts.MaxPages,
		StoreID:  storeID,
	})
	if err != nil {
		metrics.IncError("dashboard", "fetch_orders")
		return nil, err
	}

	metrics.AddOrdersFetched(name, len(orders))
	metrics.SetLastFetch(name, time.Now())
	s.results.Put(key, orders)

	s.logger.Info("dashboard.orders_fetched",
		zap.String("account", name),
		zap.Int("count", len(orders)),
		zap.String("from", window.Start.Format("2006-01-02")),
		zap.String("to", window.End.Format("2006-01-02")))

	return orders, nil
}

// Summary aggregates a window's orders into the dashboard KPIs.
func (s *Service) Summary(ctx context.Context, name string, window model.DateRange, storeID *int64, fresh bool) (model.Summary, error) {
	orders, err := s.Orders(ctx, name, window, storeID, fresh)
	if err != nil {
		return model.Summary{}, err
	}
	return Summarize(orders), nil
}

func (s *Service) session(name string) (*bling.AccountSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, name)
	}
	return sess, nil
}

func (s *Service) invalidateAccount(name string) {
	// Single-tenant deployment: purging the whole result cache on an auth
	// change is cheaper than tracking per-account key sets.
	s.results.Purge()
}

func resultKey(name string, window model.DateRange, storeID *int64) string {
	key := fmt.Sprintf("%s|%s|%s", name,
		window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))
	if storeID != nil {
		key = fmt.Sprintf("%s|%d", key, *storeID)
	}
	return key
}
