package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/tonkeeper/apicapture/internal"
	"github.com/tonkeeper/apicapture/internal/app"
	"github.com/tonkeeper/apicapture/internal/config"
	"github.com/tonkeeper/apicapture/internal/ingest"
	collector_middleware "github.com/tonkeeper/apicapture/internal/middleware"
	"github.com/tonkeeper/apicapture/internal/sink"
	"github.com/tonkeeper/apicapture/internal/utils"
	"golang.org/x/exp/slices"
	"golang.org/x/time/rate"
)

var ingestPaths = []string{"/api/v1/events", "/"}

func main() {
	log.Info(fmt.Sprintf("collectord %s is running", internal.VersionRevision))
	config.LoadConfig()
	app.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storageURI := ""
	switch config.Config.Storage {
	case "postgres":
		log.Info("Using PostgreSQL storage")
		storageURI = config.Config.PostgresURI
	case "valkey", "redis":
		log.Info("Using Valkey storage")
		storageURI = config.Config.ValkeyURI
	default:
		log.Info("Using in-memory storage")
	}

	storage, err := sink.NewStorage(config.Config.Storage, storageURI)
	if err != nil {
		log.Fatalf("failed to create storage: %v", err)
	}

	healthManager := app.NewHealthManager()
	go healthManager.StartHealthMonitoring(storage, 5*time.Second, ctx.Done())

	extractor, err := utils.NewRealIPExtractor(config.Config.TrustedProxyRanges)
	if err != nil {
		log.Warnf("failed to create realIPExtractor: %v, using defaults", err)
		extractor, _ = utils.NewRealIPExtractor([]string{})
	}

	mux := http.NewServeMux()
	mux.Handle("/health", http.HandlerFunc(healthManager.HealthHandler))
	mux.Handle("/ready", http.HandlerFunc(healthManager.HealthHandler))
	mux.Handle("/version", http.HandlerFunc(app.VersionHandler))
	mux.Handle("/metrics", promhttp.Handler())
	if config.Config.PprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
	}
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", config.Config.MetricsPort), mux))
	}()

	skipLimits := func(c echo.Context) bool {
		return app.SkipRateLimitsByToken(c.Request()) || !slices.Contains(ingestPaths, c.Path())
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
	}))
	e.Use(app.LogrusLoggerMiddleware())
	e.Use(middleware.BodyLimit(config.Config.IngestBodyLimit))
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: skipLimits,
		Store:   middleware.NewRateLimiterMemoryStore(rate.Limit(config.Config.RPSLimit)),
	}))
	e.Use(app.ConnectionsLimitMiddleware(collector_middleware.NewConnectionLimiter(config.Config.ConnectionsLimit, extractor), skipLimits))

	if config.Config.CorsEnable {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
			AllowHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:       86400,
		}))
	}

	h := ingest.NewHandler(storage)
	for _, path := range ingestPaths {
		e.POST(path, h.EventsHandler)
	}
	e.GET("/api/v1/stats", h.StatsHandler)

	var existedPaths []string
	for _, r := range e.Routes() {
		existedPaths = append(existedPaths, r.Path)
	}
	p := prometheus.NewPrometheus("http", func(c echo.Context) bool {
		return !slices.Contains(existedPaths, c.Path())
	})
	e.Use(p.HandlerFunc)

	go func() {
		if err := e.Start(fmt.Sprintf(":%v", config.Config.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown failed: %v", err)
	}
}
