package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/tonkeeper/apicapture/collector"
	"github.com/tonkeeper/apicapture/internal"
	"github.com/tonkeeper/apicapture/internal/app"
	"github.com/tonkeeper/apicapture/internal/config"
	"github.com/tonkeeper/apicapture/internal/ntp"
	"github.com/tonkeeper/apicapture/internal/utils"
	capture "github.com/tonkeeper/apicapture/middleware"
	"github.com/tonkeeper/apicapture/transport"
)

type user struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userStore struct {
	mu     sync.Mutex
	users  []user
	nextID int
}

func (s *userStore) list() []user {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]user(nil), s.users...)
}

func (s *userStore) add(u user) user {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	s.users = append(s.users, u)
	return u
}

func main() {
	log.Info(fmt.Sprintf("apicapture demo %s is running", internal.VersionRevision))
	config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var clock ntp.TimeProvider
	if config.Config.NTPEnabled {
		ntpClient := ntp.NewClient(ntp.Options{
			Servers:      config.Config.NTPServers,
			SyncInterval: time.Duration(config.Config.NTPSyncInterval) * time.Second,
			QueryTimeout: time.Duration(config.Config.NTPQueryTimeout) * time.Second,
		})
		ntpClient.Start(ctx)
		defer ntpClient.Stop()
		clock = ntpClient
	} else {
		clock = ntp.NewLocalTimeProvider()
		log.Info("NTP synchronization disabled, using local time")
	}

	inboundCfg, err := config.CaptureConfig()
	if err != nil {
		log.Fatalf("invalid capture config: %v", err)
	}
	inbound, err := collector.New(inboundCfg)
	if err != nil {
		log.Fatalf("failed to create collector: %v", err)
	}

	outboundCfg := collector.ClientDefaults()
	outboundCfg.Name = "outbound"
	outboundCfg.CollectorURL = inboundCfg.CollectorURL
	outboundCfg.SampleRate = inboundCfg.SampleRate
	outboundCfg.MaxAttempts = inboundCfg.MaxAttempts
	outboundCfg.Debug = inboundCfg.Debug
	outboundCfg.Sender = inboundCfg.Sender
	outbound, err := collector.New(outboundCfg)
	if err != nil {
		log.Fatalf("failed to create outbound collector: %v", err)
	}

	upstream := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &transport.RoundTripper{
			Capturer:    outbound,
			MaxBodySize: config.Config.MaxBodySize,
			Clock:       clock,
		},
	}

	extractor, err := utils.NewRealIPExtractor(config.Config.TrustedProxyRanges)
	if err != nil {
		log.Warnf("failed to create realIPExtractor: %v, using defaults", err)
		extractor, _ = utils.NewRealIPExtractor([]string{})
	}

	users := &userStore{}

	e := echo.New()
	e.HideBanner = true
	e.Use(echo_middleware.Recover())
	e.Use(app.LogrusLoggerMiddleware())
	e.Use(capture.Echo(inbound, capture.Options{
		URLPatterns: config.Config.CaptureURLPatterns,
		MaxBodySize: config.Config.MaxBodySize,
		IPExtractor: extractor,
		Clock:       clock,
	}))

	e.GET("/api/users", func(c echo.Context) error {
		return c.JSON(http.StatusOK, users.list())
	})
	e.POST("/api/users", func(c echo.Context) error {
		var u user
		if err := c.Bind(&u); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user")
		}
		if u.Name == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "name is required")
		}
		return c.JSON(http.StatusCreated, users.add(u))
	})
	e.GET("/api/upstream", func(c echo.Context) error {
		req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, config.Config.UpstreamURL, nil)
		if err != nil {
			return err
		}
		resp, err := upstream.Do(req)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return c.Blob(resp.StatusCode, resp.Header.Get(echo.HeaderContentType), body)
	})
	e.GET("/public/info", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"name": "apicapture demo", "version": internal.VersionRevision})
	})
	e.POST("/admin/flush", func(c echo.Context) error {
		inbound.ForceFlush()
		outbound.ForceFlush()
		return c.JSON(http.StatusAccepted, utils.HttpResAccepted())
	})
	e.GET("/admin/stats", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]collector.Stats{
			"inbound":  inbound.Stats(),
			"outbound": outbound.Stats(),
		})
	})

	p := prometheus.NewPrometheus("demo", nil)
	p.Use(e)

	go func() {
		if err := e.Start(fmt.Sprintf(":%v", config.Config.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down, draining captured events")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown failed: %v", err)
	}

	for _, c := range []*collector.Collector{inbound, outbound} {
		if err := c.Drain(shutdownCtx); err != nil {
			log.WithError(err).Warnf("%d events were not delivered", c.Len())
		}
		c.Stop()
	}
}
