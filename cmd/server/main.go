package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/lobby-backend/internal/appearance"
	"github.com/DoyleJ11/lobby-backend/internal/config"
	"github.com/DoyleJ11/lobby-backend/internal/db"
	"github.com/DoyleJ11/lobby-backend/internal/handoff"
	"github.com/DoyleJ11/lobby-backend/internal/httpapi"
	"github.com/DoyleJ11/lobby-backend/internal/hub"
	"github.com/DoyleJ11/lobby-backend/internal/lobby"
	"github.com/DoyleJ11/lobby-backend/internal/metrics"
	"github.com/DoyleJ11/lobby-backend/internal/ws"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		panic(err)
	}
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := newLogger(cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(format string) (*zap.Logger, error) {
	if format == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := appearance.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	var store handoff.Store
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := db.Migrate(conn, log); err != nil {
			return err
		}
		store = handoff.NewGorm(conn, catalog)
		log.Info("handoff store: postgres")
	} else {
		store = handoff.NewMemory(catalog)
		log.Info("handoff store: memory")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	h := hub.NewHub(ctx, lobby.Config{
		MaxParticipants: cfg.MaxParticipants,
		Catalog:         catalog,
		RequireDetails:  cfg.RequireDetails,
		AutoStart:       cfg.AutoStart,
		HostOnlyStart:   cfg.HostOnlyStart,
		SettleDelay:     cfg.SettleDelay,
	}, lobby.Deps{
		Log:     log,
		Metrics: m,
		Handoff: store,
	})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:      h,
		Catalog:  catalog,
		Handoff:  store,
		Gatherer: reg,
		Log:      log,
		WS: ws.Options{
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
			RateLimit:    rate.Limit(cfg.ClientRateLimit),
			RateBurst:    cfg.ClientRateBurst,
			Log:          log,
			Metrics:      m,
		},
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
