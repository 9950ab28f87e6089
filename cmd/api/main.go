// @title                       Account Service API
// @version                     1.0
// @description                 Account management, password login and session tokens.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	_ "github.com/learningreport/account-service/docs"
	"github.com/learningreport/account-service/internal/api"
	"github.com/learningreport/account-service/internal/api/handler"
	"github.com/learningreport/account-service/internal/core/ports"
	"github.com/learningreport/account-service/internal/core/service"
	"github.com/learningreport/account-service/internal/core/validation"
	"github.com/learningreport/account-service/internal/infrastructure/auth"
	"github.com/learningreport/account-service/internal/infrastructure/db"
	rediscache "github.com/learningreport/account-service/internal/infrastructure/db/redis"
	"github.com/learningreport/account-service/internal/pkg/config"
	"github.com/learningreport/account-service/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{Pretty: true})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:       cfg.LogLevel,
		Pretty:      cfg.Development(),
		Service:     "account-service",
		Environment: cfg.Env,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("service stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}()
	log.Info().Str("driver", store.Driver).Msg("account store ready")

	probes := map[string]handler.Probe{store.Driver: store.Ping}

	var cache ports.AccountCache
	if cfg.Redis.Addr != "" {
		client, err := rediscache.Connect(ctx, rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		cache = rediscache.NewAccountCache(client, cfg.Redis.CacheTTL)
		probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.CacheTTL).Msg("account cache enabled")
	}

	tokens, err := auth.NewJWTIssuer(cfg.JWTSecret)
	if err != nil {
		return err
	}

	accounts := service.NewAccountService(
		store.Accounts,
		validation.NewAccountValidator(store.Accounts),
		auth.NewBcryptHasher(cfg.BcryptCost),
		tokens,
		cache,
		log.With().Str("component", "account_service").Logger(),
	)

	e := api.NewRouter(api.Dependencies{
		Accounts:          accounts,
		Tokens:            tokens,
		Probes:            probes,
		Logger:            log,
		AdminOnlyAccounts: cfg.AdminOnlyAccounts,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Bool("admin_only_accounts", cfg.AdminOnlyAccounts).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
