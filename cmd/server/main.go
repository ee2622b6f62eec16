// Package main is the entry point for the Coupling Monitor API server.
// It derives weighted service-dependency graphs from distributed
// traces, versions them, and detects change points in coupling metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couplinglab/coupling-monitor/internal/config"
	"github.com/couplinglab/coupling-monitor/internal/handlers"
	"github.com/couplinglab/coupling-monitor/internal/middleware"
	"github.com/couplinglab/coupling-monitor/internal/services"
	"github.com/couplinglab/coupling-monitor/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "coupling-monitor",
		Short: "Coupling Monitor API Server",
		Long: `Coupling Monitor API Server reconstructs weighted service-dependency
graphs from distributed traces, maintains a versioned snapshot history,
and flags change points in coupling metrics.`,
		RunE: runServer,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Coupling Monitor API Server\n")
			fmt.Printf("  Version:    %s\n", Version)
			fmt.Printf("  Build Time: %s\n", BuildTime)
			fmt.Printf("  Git Commit: %s\n", GitCommit)
		},
	}

	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting Coupling Monitor API Server",
		zap.String("version", Version),
	)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}
	telemetryCfg := telemetry.Config{
		ServiceName:    "coupling-monitor",
		ServiceVersion: Version,
		Environment:    os.Getenv("ENVIRONMENT"),
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        os.Getenv("OTEL_ENABLED") != "false",
	}
	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		logger.Warn("Failed to initialize telemetry", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
		logger.Info("Telemetry initialized", zap.String("endpoint", otlpEndpoint))
	}

	svc, err := services.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("coupling-monitor"))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(cfg.Server.CORS))
	router.Use(middleware.RequestID())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadyCheck(svc))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		if cfg.Auth.Enabled {
			v1.Use(middleware.Auth(cfg.Auth))
		}

		graphs := v1.Group("/graphs")
		{
			graphs.POST("/build", handlers.BuildGraph(svc))
			graphs.GET("", handlers.FetchGraph(svc))
			graphs.GET("/weighted", handlers.GetWeightedGraph(svc))
			graphs.GET("/versions", handlers.ListVersions(svc))
			graphs.GET("/versions/:version", handlers.RetrieveVersion(svc))
		}

		changepoints := v1.Group("/changepoints")
		{
			changepoints.GET("", handlers.AnalyzeChangePoints(svc))
			changepoints.GET("/fleet", handlers.AnalyzeFleet(svc))
		}

		servicesGroup := v1.Group("/services")
		{
			servicesGroup.GET("/active", handlers.ActiveServices(svc))
			servicesGroup.GET("/recorded", handlers.RecordedServices(svc))
		}
	}

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	if err := svc.Close(); err != nil {
		logger.Error("Failed to close services", zap.Error(err))
	}

	logger.Info("Server shutdown complete")
	return nil
}
