package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/equitydesk/captable-backend/internal/api"
	"github.com/equitydesk/captable-backend/internal/config"
	"github.com/equitydesk/captable-backend/internal/database"
	"github.com/equitydesk/captable-backend/internal/repository"
	"github.com/equitydesk/captable-backend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database: %s", cfg.Database.Path)

	// Apply pending migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Create repositories
	shareClassRepo := repository.NewShareClassRepository(db)
	eventRepo := repository.NewEventRepository(db)

	// Create services
	systemService := service.NewSystemService(db)
	capTableService := service.NewCapTableService(shareClassRepo, eventRepo)
	waterfallService := service.NewWaterfallService(capTableService)

	// Periodically rebuild the cached ledger so events written by external
	// loaders become visible without a restart.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Refresh.Schedule, func() {
		if err := capTableService.RefreshLedger(); err != nil {
			log.Printf("Scheduled ledger refresh failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule ledger refresh: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(systemService, capTableService, waterfallService, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
