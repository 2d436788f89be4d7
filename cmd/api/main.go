package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/go-storefront/internal/api"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/logger"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/safar/go-storefront/internal/session"
	"github.com/safar/go-storefront/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logg, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Init logger: %v", err)
	}
	defer logg.Sync()

	if err := run(cfg, logg); err != nil {
		logg.Fatal("Server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	logg.Info("Connected to database")

	sessions, closeSessions, err := session.New(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeSessions()

	authSvc := auth.NewService(store.NewUserStore(db), sessions,
		auth.WithSessionTTL(cfg.Session.TTL),
		auth.WithLogger(logg),
	)

	engine := pricing.NewEngine(pricing.Policy{
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		FlatShippingFee:       cfg.Pricing.FlatShippingFee,
		VATRate:               cfg.Pricing.VATRate,
	})
	catalogSvc := catalog.NewService(store.NewProductStore(db), authSvc, engine, logg)

	handler := api.NewHandler(catalogSvc, authSvc, api.Options{
		CookieName:     cfg.Session.CookieName,
		CookieSecure:   cfg.Session.CookieSecure,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		LoginPerMinute: cfg.RateLimit.LoginPerMinute,
		LoginBurst:     cfg.RateLimit.LoginBurst,
	}, logg)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("Server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("session_backend", cfg.Session.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("Shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
