package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/j0462/newspeed/internal/auth"
	"github.com/j0462/newspeed/internal/config"
	"github.com/j0462/newspeed/internal/database"
	"github.com/j0462/newspeed/internal/handler"
	"github.com/j0462/newspeed/internal/logging"
	"github.com/j0462/newspeed/internal/middleware"
	"github.com/j0462/newspeed/internal/queue"
	"github.com/j0462/newspeed/internal/repository"
	"github.com/j0462/newspeed/internal/router"
	"github.com/j0462/newspeed/internal/service"
)

func main() {
	if err := run(); err != nil {
		logging.New("error").Error(context.Background(), "server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel).With("env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient(redisCfg)
	if rdb == nil {
		log.Warn(ctx, "redis unavailable; rate limiting and profile cache disabled", "addr", redisCfg.Address())
	} else {
		defer rdb.Close()
	}

	codec, err := auth.NewCodec(cfg.JWTSecret, nil)
	if err != nil {
		return err
	}
	policy := auth.Policy{AccessTTL: cfg.AccessTTL(), RefreshTTL: cfg.RefreshTTL(), Rotate: cfg.RotateRefresh}
	accounts := repository.NewAccountRepo(db)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	publisher := service.NewPublisher(cfg.AMQPURL, log)
	defer publisher.Close()

	issuer := auth.NewIssuer(accounts, hasher, codec, policy, log)
	refresher := auth.NewRefresher(accounts, codec, policy, log)
	lifecycle := auth.NewLifecycle(accounts, hasher, publisher, log)
	validator := auth.NewValidator(codec)

	consumer := &queue.SecurityLogConsumer{URL: cfg.AMQPURL, LogPath: cfg.SecurityLog, Log: log}
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "security consumer stopped", "error", err.Error())
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	invalidate := func(ctx context.Context, path string) error {
		return middleware.InvalidateCache(ctx, cacheCfg, rdb, path)
	}
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e,
		handler.NewAuthHandler(issuer, refresher, lifecycle, log, cfg.Env != "dev"),
		validator, log, middleware.NewTokenBucket(rlCfg, rdb, log))
	router.RegisterProfile(e,
		handler.NewProfileHandler(accounts, lifecycle, log, invalidate),
		validator, log, middleware.NewRedisCache(cacheCfg, rdb, log))

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	return e.Shutdown(shutdownCtx)
}
