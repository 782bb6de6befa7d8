package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/handlers"
	"neuralnexus-pipeline/internal/pkg/logger"
	"neuralnexus-pipeline/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting NeuralNexus Pipeline",
		"environment", cfg.Environment,
		"port", cfg.HTTP.Port)

	searchGateway, err := services.NewBraveSearchService(cfg.Search, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize search service")
		os.Exit(1)
	}

	modelGateway, err := services.NewGeminiService(cfg.Gemini, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize model service")
		os.Exit(1)
	}
	defer modelGateway.Close()

	var enricher services.Enricher
	if cfg.Enrich.Enabled {
		enricher = services.NewEnrichmentService(cfg.Enrich, log)
	}

	var telemetry services.Telemetry
	if cfg.Redis.URL != "" {
		redisTelemetry, err := services.NewRedisTelemetry(cfg.Redis, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, telemetry disabled")
			telemetry = services.NoopTelemetry{}
		} else {
			telemetry = redisTelemetry
		}
	} else {
		telemetry = services.NoopTelemetry{}
	}
	defer telemetry.Close()

	orchestrator := services.NewOrchestrator(searchGateway, modelGateway, enricher, telemetry, *cfg, log)
	defer orchestrator.Close()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	handlers.NewQueryHandler(orchestrator, log).RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("NeuralNexus Pipeline stopped")
}
