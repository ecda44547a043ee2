package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tiburcios-stuff/bling-adapter/internal/bling"
	"github.com/tiburcios-stuff/bling-adapter/internal/bootstrap"
	"github.com/tiburcios-stuff/bling-adapter/internal/registry"
	"github.com/tiburcios-stuff/bling-adapter/pkg/config"
	"github.com/tiburcios-stuff/bling-adapter/pkg/logger"
	"github.com/tiburcios-stuff/bling-adapter/pkg/utils"
)

const callbackTimeout = 5 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger.Init("bling-bootstrap", cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()

	clientID := os.Getenv("BLING_CLIENT_ID")
	clientSecret := os.Getenv("BLING_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		logg.Fatal("BLING_CLIENT_ID and BLING_CLIENT_SECRET must be set")
	}
	cred := bling.Credential{ClientID: clientID, ClientSecret: clientSecret}

	fmt.Println("=== Bling OAuth Bootstrap ===")
	fmt.Println("This assistant authorizes the app, fetches tokens, and updates the account registry.")
	fmt.Print("\nAccount name for the dashboard (e.g. \"Tiburcio's Stuff\"): ")

	reader := bufio.NewReader(os.Stdin)
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Tiburcio's Stuff"
	}

	client := bling.NewClient(logg.Desugar(), nil, bling.Endpoints{
		TokenURL: cfg.TokenURL,
		AuthURL:  cfg.AuthURL,
	})

	// A random state nonce ties the callback to this exact run.
	state := uuid.NewString()
	authURL := client.AuthorizationURL(cred, cfg.RedirectURI, state)

	fmt.Println("\nOpening the browser to authorize the application on Bling...")
	fmt.Println(authURL)
	bootstrap.OpenBrowser(logg.Desugar(), authURL)

	res, err := bootstrap.ListenForCallback(ctx, logg.Desugar(), cfg.RedirectURI, callbackTimeout)
	if err != nil {
		logg.Fatalw("callback capture failed", "error", err)
	}
	if res.State != state {
		logg.Fatalw("state mismatch on callback; refusing to exchange the code",
			"got", res.State)
	}
	fmt.Printf("\nCode received: %s (rest hidden)\n", utils.MaskToken(res.Code))

	pair, err := client.ExchangeCode(ctx, cred, res.Code, cfg.RedirectURI)
	if err != nil {
		logg.Fatalw("code exchange failed", "error", err)
	}
	fmt.Println("\nTokens obtained!")
	fmt.Printf("access_token (hidden):  %s\n", utils.MaskToken(pair.AccessToken))
	fmt.Printf("refresh_token (hidden): %s\n", utils.MaskToken(pair.RefreshToken))

	reg := registry.New(cfg.RegistryPath)
	if err := reg.Upsert(registry.Account{
		Name:         name,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: pair.RefreshToken,
	}); err != nil {
		logg.Fatalw("failed to update registry", "error", err)
	}

	fmt.Printf("\nRegistry updated: %s\n", cfg.RegistryPath)
	fmt.Println("Next step: start the dashboard with bling-adapter.")
}
