package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RateThatLowballer/lowballer-discord-bot/db/migrations"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/config"
	httpserver "github.com/RateThatLowballer/lowballer-discord-bot/internal/http"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/identity"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/ledger"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/logger"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/profile"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/rating"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 lg,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		lg.Fatal("connect database", "error", err)
	}
	defer st.Close()

	if cfg.DBAutoMigrate {
		version, applied, err := st.Migrate(dbCtx, migrations.FS)
		if err != nil {
			lg.Fatal("apply migrations", "error", err)
		}
		lg.Info("schema ready", "version", version, "applied", applied)
	}

	var cache identity.Cache
	if cfg.RedisAddr != "" {
		rc, err := identity.NewRedisCache(ctx, cfg.RedisAddr, time.Duration(cfg.ResolveCacheTTLSecs)*time.Second)
		if err != nil {
			lg.Fatal("connect redis", "error", err)
		}
		defer rc.Close()
		cache = rc
	}

	client, err := profile.NewClient(profile.Config{
		DirectoryURL: cfg.ProfileDirectoryURL,
		PlayerURL:    cfg.ProfilePlayerURL,
		APIKey:       cfg.ProfileAPIKey,
		Timeout:      time.Duration(cfg.ProfileTimeoutSecs) * time.Second,
		MinInterval:  time.Duration(cfg.ProfileMinIntervalMS) * time.Millisecond,
		Logger:       lg,
	})
	if err != nil {
		lg.Fatal("init profile client", "error", err)
	}

	resolver := identity.NewResolver(client, cache, lg)
	l := ledger.New(st, lg)
	svc := rating.NewService(resolver, l, lg)
	server := httpserver.New(cfg, st, l, svc, lg)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			lg.Error("server error", "error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Error("graceful shutdown error", "error", err)
	}
}
