package main

import (
	"context"
	"syscall"

	"courier/internal/channel"
	"courier/internal/config"
	"courier/internal/events"
	"courier/internal/handlers"
	"courier/internal/hub"
	"courier/internal/metrics"
	"courier/internal/ratelimit"
	"courier/pkg/auth"
	pkgconfig "courier/pkg/config"
	"courier/pkg/logging"
	"courier/pkg/monitoring"
	"courier/pkg/server"
	"courier/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("courier")

	// Load environment variables
	pkgconfig.LoadEnv(logger)

	logger.Info("Starting Courier (WebSocket event hub)")

	cfg := config.Load()
	if cfg.RequireAuth && cfg.JWTSecret == "" {
		cfg.JWTSecret = pkgconfig.RequireEnv("JWT_SECRET")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("courier", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("courier", version.Version, version.GitCommit)

	// Create custom metrics
	serviceMetrics := &metrics.Metrics{
		HubConnections:  metricsCollector.NewGauge("websocket_hub_connections_active", "Active WebSocket hub connections", []string{"channel"}),
		HubMessages:     metricsCollector.NewCounter("websocket_hub_messages_total", "WebSocket hub messages", []string{"channel", "direction"}),
		EventsPublished: metricsCollector.NewCounter("events_published_total", "Events published", []string{"channel", "status"}),
		PublishDuration: metricsCollector.NewHistogram("publish_duration_seconds", "Publish fan-out latency", []string{"channel"}, nil),
		RateLimited:     metricsCollector.NewCounter("rate_limited_total", "Requests denied by the rate limiter", []string{"scope"}),
		AuthFailures:    metricsCollector.NewCounter("auth_failures_total", "WebSocket authentication failures", []string{"reason"}),
	}

	// Connection registry and hub
	manager := hub.NewManager(cfg.MaxClientsPerChannel)
	courierHub := hub.New(manager, logger, serviceMetrics, hub.Config{
		HeartbeatInterval:   cfg.HeartbeatInterval,
		ShutdownGracePeriod: cfg.ShutdownGracePeriod,
	})
	courierHub.StartHeartbeat()

	// Gating components
	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTAlgorithm)
	authorizer := channel.NewAuthorizer(cfg.Channels)
	publishLimiter := ratelimit.New(ratelimit.Config{
		Window: cfg.RateLimitWindow,
		Limit:  cfg.RateLimitPublishRequests,
	})
	connectLimiter := ratelimit.New(ratelimit.Config{
		Window: cfg.RateLimitWindow,
		Limit:  cfg.RateLimitWebSocketConnections,
	})

	courierHandlers := handlers.NewCourierHandlers(handlers.Options{
		Hub:              courierHub,
		Verifier:         verifier,
		Authorizer:       authorizer,
		Limits:           cfg.MessageLimits,
		Logger:           logger,
		Metrics:          serviceMetrics,
		RequireAuth:      cfg.RequireAuth,
		RateLimitEnabled: cfg.RateLimitEnabled,
		PublishLimiter:   publishLimiter,
		ConnectLimiter:   connectLimiter,
		ShutdownTrigger: func() {
			// Route the administrative request through the same signal path
			// as an operator-initiated shutdown
			_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
		},
	})

	// Optional broker ingest
	var bridge *events.Bridge
	if cfg.NATSURL != "" {
		var err error
		bridge, err = events.Connect(cfg.NATSURL, courierHub, cfg.MessageLimits, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect NATS publish bridge")
		}
		defer bridge.Close()
		healthChecker.AddCheck("nats", monitoring.NATSHealthCheck(bridge.Conn()))
	}

	// Readiness: the hub must be accepting connections
	healthChecker.AddCheck("hub", func() monitoring.CheckResult {
		if courierHub.IsRunning() {
			return monitoring.CheckResult{Status: monitoring.StatusHealthy, Message: "Hub accepting connections"}
		}
		return monitoring.CheckResult{Status: monitoring.StatusUnhealthy, Message: "Hub is " + courierHub.State().String()}
	})
	if cfg.RequireAuth {
		healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
			"JWT_SECRET": cfg.JWTSecret,
		}))
	}

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "courier", healthChecker, metricsCollector)

	router.POST("/publish", courierHandlers.HandlePublish)
	router.POST("/publish/:channel", courierHandlers.HandlePublishLegacy)
	router.GET("/ws/:channel", courierHandlers.HandleWebSocket)
	router.GET("/stats", courierHandlers.HandleStats)

	// Admin routes with service auth
	admin := router.Group("/admin")
	admin.Use(auth.ServiceAuthMiddleware(cfg.ServiceToken))
	admin.POST("/shutdown", courierHandlers.HandleAdminShutdown)

	router.NoRoute(courierHandlers.HandleNotFound)

	// Start server with graceful shutdown; the hub drains before the
	// listener closes
	serverConfig := server.DefaultConfig("courier", cfg.Port)
	serverConfig.Host = cfg.Host
	serverConfig.ShutdownTimeout = cfg.ShutdownTimeout
	if err := server.Start(serverConfig, router, logger, func(ctx context.Context) {
		courierHub.Shutdown(ctx)
	}); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
