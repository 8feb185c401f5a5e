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
	"log"
	"log/slog"
	"os"
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

	"github.com/AleutianAI/testplan-agent/services/llm"
	"github.com/AleutianAI/testplan-agent/services/planagent/config"
	"github.com/AleutianAI/testplan-agent/services/planagent/handlers"
	"github.com/AleutianAI/testplan-agent/services/planagent/middleware"
	"github.com/AleutianAI/testplan-agent/services/planagent/observability"
	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
	"github.com/AleutianAI/testplan-agent/services/planagent/routes"
	"github.com/AleutianAI/testplan-agent/services/planagent/store"
)

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("planagent-service")))
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

// overlayStore is the union of what the engine and the route table need
// from a persistence backend.
type overlayStore interface {
	overlay.OverlayStore
	handlers.OverlayLister
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if cfg.OTELEndpoint != "" {
		cleanup, err := initTracer(cfg.OTELEndpoint)
		if err != nil {
			log.Fatalf("failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	} else {
		slog.Info("OTEL endpoint not set, tracing disabled")
	}

	observability.InitMetrics()

	// --- Data sources ---
	catalog, err := store.NewCatalog(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to load baseline catalog: %v", err)
	}
	xray, err := store.NewXrayStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to load test repository: %v", err)
	}
	jira, err := store.NewJiraStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to load issue tracker: %v", err)
	}
	bitbucket, err := store.NewBitbucketStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to load change repository: %v", err)
	}
	runStore, err := store.NewRunStore(cfg.OverlayDir)
	if err != nil {
		log.Fatalf("failed to open run store: %v", err)
	}
	prompts, err := store.NewPromptArchive(cfg.OverlayDir)
	if err != nil {
		log.Fatalf("failed to open prompt archive: %v", err)
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := catalog.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
			slog.Error("catalog watcher stopped", "error", err)
		}
	}()

	// --- Overlay persistence backend ---
	var overlays overlayStore
	switch cfg.StoreBackend {
	case "badger":
		badgerStore, err := store.OpenBadgerOverlayStore(cfg.BadgerDir)
		if err != nil {
			log.Fatalf("failed to open badger overlay store: %v", err)
		}
		defer badgerStore.Close()
		overlays = badgerStore
		slog.Info("Using BadgerDB overlay store", "dir", cfg.BadgerDir)
	default:
		fileStore, err := store.NewFileOverlayStore(cfg.OverlayDir)
		if err != nil {
			log.Fatalf("failed to open file overlay store: %v", err)
		}
		overlays = fileStore
		slog.Info("Using file overlay store", "dir", cfg.OverlayDir)
	}

	// --- LLM backend ---
	log.Println("Configuring the LLM Client")
	var baseClient llm.LLMClient
	model := "mock"
	switch cfg.LLMBackend {
	case "openai":
		openaiClient, err := llm.NewOpenAIClient()
		if err != nil {
			log.Fatalf("Failed to initialize LLM client: %v", err)
		}
		baseClient = openaiClient
		model = openaiClient.Model()
		slog.Info("Using OpenAI LLM backend")
	default:
		baseClient = llm.NewMockClient()
		slog.Info("Using mock LLM backend")
	}
	llmClient := llm.NewResilientClient(llm.NewMeteredClient(baseClient, cfg.LLMBackend))

	engine := overlay.NewEngine(catalog, xray, overlays, runStore)

	router := gin.Default()
	router.Use(otelgin.Middleware("planagent-service"))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())
	router.Use(observability.DefaultMetrics.GinMiddleware())

	routes.SetupRoutes(router, routes.Deps{
		Engine:   engine,
		Catalog:  catalog,
		Runs:     runStore,
		Overlays: overlays,
		Agent: handlers.AgentDeps{
			Agent:    llm.NewAgent(llmClient),
			Issues:   jira,
			Tests:    xray,
			Changes:  bitbucket,
			Runs:     runStore,
			Prompts:  prompts,
			Provider: cfg.LLMBackend,
			Model:    model,
		},
		Sources: handlers.SourceDeps{
			Issues:  jira,
			Tests:   xray,
			Changes: bitbucket,
			Prompts: prompts,
		},
		Diag: handlers.DiagInfo{
			LLMBackend:   cfg.LLMBackend,
			LLMModel:     model,
			StoreBackend: cfg.StoreBackend,
			DataDir:      cfg.DataDir,
		},
	})

	log.Println("Starting the planagent server on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
