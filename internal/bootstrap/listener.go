package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// CallbackResult is the code/state pair delivered to the loopback listener.
type CallbackResult struct {
	Code  string
	State string
}

// ListenForCallback serves the redirect URI's path on its port until the
// provider redirects the browser back with a code, the timeout elapses, or
// ctx is canceled. The port and path are derived from redirectURI so the
// listener can never diverge from what was registered with the provider.
func ListenForCallback(ctx context.Context, logger *zap.Logger, redirectURI string, timeout time.Duration) (CallbackResult, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("parse redirect URI: %w", err)
	}

	port := parsed.Port()
	if port == "" {
		if parsed.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}

	resultCh := make(chan CallbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing 'code' query parameter", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Authorization received. You can return to the terminal."))

		select {
		case resultCh <- CallbackResult{Code: code, State: q.Get("state")}:
		default:
			// A result is already pending; later hits are ignored.
		}
	})

	srv := &http.Server{Handler: mux}
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("listen on port %s: %w", port, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.Info("bootstrap.waiting_for_callback",
		zap.String("redirect_uri", redirectURI),
		zap.Duration("timeout", timeout))

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		return res, nil
	case err := <-serveErr:
		return CallbackResult{}, fmt.Errorf("callback server: %w", err)
	case <-timer.C:
		return CallbackResult{}, errors.New("timed out waiting for the OAuth2 callback")
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	}
}
