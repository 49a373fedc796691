// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/ChannelPulse/services/gateway/analysis"
	"github.com/AleutianAI/ChannelPulse/services/gateway/config"
	"github.com/AleutianAI/ChannelPulse/services/gateway/middleware"
	"github.com/AleutianAI/ChannelPulse/services/gateway/observability"
	"github.com/AleutianAI/ChannelPulse/services/gateway/routes"
	"github.com/AleutianAI/ChannelPulse/services/gateway/session"
	"github.com/AleutianAI/ChannelPulse/services/llm"
	"github.com/AleutianAI/ChannelPulse/services/telegram"
	"github.com/AleutianAI/ChannelPulse/services/telegram/sessionstore"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "channelpulse-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("gateway-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildAugmenter selects the classifier backend. Without an LLM backend the
// gateway still augments messages through the keyword heuristic.
func buildAugmenter(backend string, metrics *observability.GatewayMetrics) session.Augmenter {
	var client llm.LLMClient
	var err error

	switch backend {
	case "openai":
		client, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI classification backend")
	case "ollama":
		client, err = llm.NewOllamaClient()
		slog.Info("Using Ollama classification backend")
	default:
		slog.Warn("LLM backend not set or invalid, using keyword heuristic classifier",
			"backend", backend)
		return analysis.NewHeuristic()
	}
	if err != nil {
		slog.Error("Failed to initialize LLM client, falling back to keyword heuristic",
			"backend", backend, "error", err)
		return analysis.NewHeuristic()
	}

	pipeline := analysis.NewPipeline(client)
	pipeline.SetMetrics(metrics)
	return pipeline
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.NewGatewayMetrics()

	store, err := sessionstore.Open(sessionstore.DefaultConfig(cfg.Platform.SessionDBPath))
	if err != nil {
		log.Fatalf("Failed to open the session credential store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close the session credential store", "error", err)
		}
	}()

	factory := func(phone string) (telegram.Client, error) {
		return telegram.NewBridgeClient(telegram.BridgeConfig{
			URL:     cfg.Platform.BridgeURL,
			APIID:   cfg.Platform.APIID,
			APIHash: cfg.Platform.APIHash,
			Store:   store,
		}, phone)
	}

	runtime := session.NewRuntime()
	bridge := session.NewBridge(runtime, cfg.Session.Timeout(session.DefaultRunTimeout))
	bridge.SetMetrics(metrics)

	manager := session.NewManager(bridge, factory)
	directory := session.NewDirectory(manager, cfg.Session.ParticipantFallbackCap)
	augmenter := buildAugmenter(cfg.Analysis.Backend, metrics)
	fetcher := session.NewFetcher(manager, augmenter, cfg.Analysis.FetchLimit)

	webSessions := middleware.NewSessionStore(cfg.Server.TTL(middleware.DefaultSessionTTL))

	router := gin.Default()
	router.Use(otelgin.Middleware("gateway-service"))
	router.Use(metrics.RequestCounter())

	routes.SetupRoutes(router, routes.Deps{
		Manager:   manager,
		Directory: directory,
		Fetcher:   fetcher,
		Sessions:  webSessions,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		slog.Info("Starting the gateway server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down the gateway")

	// Drain HTTP first so no new work reaches the session runtime, then
	// disconnect the platform session and stop the runtime.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	if err := manager.Disconnect(); err != nil {
		slog.Error("Platform session disconnect failed", "error", err)
	}
	runtime.Close()
	slog.Info("Gateway stopped")
}
