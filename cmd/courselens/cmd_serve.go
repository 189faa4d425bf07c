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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/CourseLens/services/llm"
	"github.com/AleutianAI/CourseLens/services/rag"
	"github.com/AleutianAI/CourseLens/services/rag/config"
	"github.com/AleutianAI/CourseLens/services/rag/session"
	"github.com/AleutianAI/CourseLens/services/rag/store"
	"github.com/AleutianAI/CourseLens/services/rag/tools"
	badgerstore "github.com/AleutianAI/CourseLens/services/storage/badger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the CourseLens API server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(debugMode)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if debugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := setupTracing(debugMode)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer shutdownTracing()

	system, cleanup, err := buildSystem(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("courselens"))
	if debugMode {
		router.Use(gin.Logger())
	}

	rag.RegisterRoutes(router.Group("/api"), rag.NewHandlers(system))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("CourseLens listening", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		slog.Info("Shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildSystem wires the index, tools, provider, sessions, and engine into
// a ready query façade. The returned cleanup closes owned resources.
func buildSystem(ctx context.Context, cfg *config.Config) (*rag.System, func(), error) {
	cleanup := func() {}

	courseStore, err := store.NewWeaviateStore(ctx, cfg.Weaviate.Host, cfg.Weaviate.Scheme, cfg.Engine.MaxSearchResults)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connecting to weaviate: %w", err)
	}

	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewSearchTool(courseStore)); err != nil {
		return nil, cleanup, err
	}
	if err := registry.Register(tools.NewOutlineTool(courseStore)); err != nil {
		return nil, cleanup, err
	}

	client, err := llm.NewToolChatClient(llm.ProviderConfig{
		Provider: cfg.Provider.Name,
		Model:    cfg.Provider.Model,
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("creating provider client: %w", err)
	}

	sessions, cleanup, err := buildSessionStore(cfg)
	if err != nil {
		return nil, cleanup, err
	}

	temp := float32(cfg.Provider.Temperature)
	maxTokens := cfg.Provider.MaxTokens
	params := llm.GenerationParams{Temperature: &temp}
	if maxTokens > 0 {
		params.MaxTokens = &maxTokens
	}

	engine := rag.NewEngine(client, registry, cfg.Engine.MaxRounds, params, slog.Default())
	system := rag.NewSystem(engine, registry, sessions, courseStore, slog.Default())

	// Best-effort startup ingestion. A missing docs folder is normal on
	// fresh deployments.
	if cfg.Documents.Folder != "" {
		chunker := store.Chunker{Size: cfg.Documents.ChunkSize, Overlap: cfg.Documents.ChunkOverlap}
		courses, chunks, err := store.LoadCourseFolder(ctx, cfg.Documents.Folder, courseStore, chunker, slog.Default())
		if err != nil {
			slog.Warn("Startup document load skipped",
				slog.String("folder", cfg.Documents.Folder),
				slog.String("error", err.Error()),
			)
		} else if courses > 0 {
			slog.Info("Startup document load complete",
				slog.Int("courses", courses),
				slog.Int("chunks", chunks),
			)
		}
	}

	return system, cleanup, nil
}

// buildSessionStore picks the configured session backend.
func buildSessionStore(cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case "badger":
		dbCfg := badgerstore.DefaultConfig()
		dbCfg.Path = cfg.Session.BadgerPath
		db, err := badgerstore.OpenDB(dbCfg)
		if err != nil {
			return nil, func() {}, fmt.Errorf("opening session database: %w", err)
		}
		ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
		store := session.NewBadgerStore(db, ttl, cfg.Session.MaxExchanges, slog.Default())
		return store, func() {
			if err := db.Close(); err != nil {
				slog.Warn("Closing session database", slog.String("error", err.Error()))
			}
		}, nil
	default:
		return session.NewMemoryStore(cfg.Session.MaxExchanges), func() {}, nil
	}
}

// setupTracing installs the W3C propagator and, in debug mode, a stdout
// span exporter.
func setupTracing(debug bool) (func(), error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !debug {
		return func() {}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Tracer shutdown", slog.String("error", err.Error()))
		}
	}, nil
}
