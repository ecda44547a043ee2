package bootstrap

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// freePort grabs an ephemeral port and releases it so the listener under test
// can bind it.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestListenForCallback_DeliversCodeAndState(t *testing.T) {
	port := freePort(t)
	redirect := fmt.Sprintf("http://localhost:%d/callback", port)

	type outcome struct {
		res CallbackResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := ListenForCallback(context.Background(), zap.NewNop(), redirect, 5*time.Second)
		done <- outcome{res, err}
	}()

	// Poll until the listener is up, then simulate the browser redirect.
	hit := fmt.Sprintf("http://localhost:%d/callback?code=abc123&state=xyz", port)
	require.Eventually(t, func() bool {
		res, err := http.Get(hit)
		if err != nil {
			return false
		}
		defer res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, "abc123", out.res.Code)
	assert.Equal(t, "xyz", out.res.State)
}

func TestListenForCallback_MissingCodeKeepsWaiting(t *testing.T) {
	port := freePort(t)
	redirect := fmt.Sprintf("http://localhost:%d/callback", port)

	done := make(chan error, 1)
	go func() {
		_, err := ListenForCallback(context.Background(), zap.NewNop(), redirect, 5*time.Second)
		done <- err
	}()

	base := fmt.Sprintf("http://localhost:%d/callback", port)
	require.Eventually(t, func() bool {
		res, err := http.Get(base)
		if err != nil {
			return false
		}
		defer res.Body.Close()
		return res.StatusCode == http.StatusBadRequest
	}, 3*time.Second, 50*time.Millisecond, "a hit without a code is rejected")

	select {
	case err := <-done:
		t.Fatalf("listener returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	// A proper redirect still completes the wait.
	res, err := http.Get(base + "?code=late")
	require.NoError(t, err)
	res.Body.Close()
	require.NoError(t, <-done)
}

func TestListenForCallback_Timeout(t *testing.T) {
	port := freePort(t)
	redirect := fmt.Sprintf("http://localhost:%d/callback", port)

	_, err := ListenForCallback(context.Background(), zap.NewNop(), redirect, 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestListenForCallback_ContextCanceled(t *testing.T) {
	port := freePort(t)
	redirect := fmt.Sprintf("http://localhost:%d/callback", port)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := ListenForCallback(ctx, zap.NewNop(), redirect, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListenForCallback_BadRedirectURI(t *testing.T) {
	_, err := ListenForCallback(context.Background(), zap.NewNop(), "://not-a-uri", time.Second)
	assert.Error(t, err)
}
