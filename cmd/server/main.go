package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/sketchin/redforecast/internal/api"
	"github.com/sketchin/redforecast/internal/config"
	"github.com/sketchin/redforecast/internal/db"
	"github.com/sketchin/redforecast/internal/domain"
	"github.com/sketchin/redforecast/internal/forecast"
	"github.com/sketchin/redforecast/internal/history"
	"github.com/sketchin/redforecast/internal/ingestion"
	"github.com/sketchin/redforecast/internal/mcpserver"
	"github.com/sketchin/redforecast/internal/middleware"
	"github.com/sketchin/redforecast/internal/repository"
)

const version = "0.1.0"

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, conn.Pool, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	snapshotRepo := repository.NewSnapshotRepository(conn.Pool)
	logRepo := repository.NewIngestionLogRepository(conn.Pool)

	// Create services
	ingestSvc := ingestion.NewService(logRepo)
	forecastSvc := forecast.NewService()
	historySvc := history.NewService(snapshotRepo)

	// Load the workbook and capture today's snapshot when one is
	// configured. A missing workbook is not fatal: snapshots can still be
	// uploaded over HTTP and history queries keep working.
	if cfg.Forecast.WorkbookPath != "" {
		if result, err := ingestSvc.LoadWorkbook(ctx, cfg.Forecast.WorkbookPath, cfg.Forecast.SheetName); err != nil {
			log.Printf("Workbook not loaded at startup: %v", err)
		} else {
			forecastSvc.SetRecords(result.Records)
			today := time.Now().Format(domain.DateLayout)
			if _, err := historySvc.Capture(ctx, today, result.Records); err != nil {
				log.Printf("Failed to capture snapshot for %s: %v", today, err)
			}
		}
	}

	// MCP mode serves tools over stdio and owns the process.
	if cfg.Server.MCPEnabled {
		srv := mcpserver.New(historySvc, forecastSvc, ingestSvc,
			cfg.Forecast.WorkbookPath, cfg.Forecast.SheetName, version)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("MCP server stopped: %v", err)
		}
		return
	}

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	mux := http.NewServeMux()
	api.NewHandler(historySvc, forecastSvc, ingestSvc).Register(mux)
	mux.Handle("/ingest/preview", ingestion.NewHTTPHandler(ingestSvc))

	handler := corsHandler.Handler(middleware.LoggingMiddleware(mux))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting forecast server on %s", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
