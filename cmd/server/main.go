package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/auth"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/config"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/httpapi"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/logging"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/storage"
)

func main() {
	configPath := flag.String("config", "viormart.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := storage.OpenSQLite(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return err
	}

	if cfg.Catalog.SeedFile != "" {
		products, err := storage.LoadCatalog(cfg.Catalog.SeedFile)
		if err != nil {
			return err
		}
		if err := storage.SeedCatalog(ctx, store, products); err != nil {
			return err
		}
		logger.Info("catalog seeded", zap.String("file", cfg.Catalog.SeedFile), zap.Int("products", len(products)))
	}

	authenticator := &auth.Authenticator{DevUser: cfg.Auth.DevUser}
	if cfg.Auth.TokenSecret != "" {
		authenticator.Tokens, err = auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("auth.token_secret is empty, bearer tokens are disabled")
	}
	if cfg.Auth.DevUser != "" {
		logger.Warn("development user signs in every request", zap.String("user", cfg.Auth.DevUser))
	}

	opts := []httpapi.Option{
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	}
	if cfg.Auth.OIDCEnabled() {
		sessions, err := auth.NewSessionManager(auth.OIDCConfig{
			IssuerURL:      cfg.Auth.IssuerURL,
			ClientID:       cfg.Auth.ClientID,
			ClientSecret:   cfg.Auth.ClientSecret,
			RedirectURL:    cfg.Auth.RedirectURL,
			SessionKey:     cfg.Auth.SessionKey,
			SessionTTL:     cfg.Auth.SessionTTL,
			CookieSecure:   cfg.Auth.CookieSecure,
			CookieSameSite: http.SameSiteLaxMode,
			FallbackURL:    "/",
		})
		if err != nil {
			return err
		}
		authenticator.Sessions = sessions
		opts = append(opts, httpapi.WithSessions(sessions))
	}

	api := httpapi.NewServer(store, authenticator, opts...)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
