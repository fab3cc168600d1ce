package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prodmon/api"
	"prodmon/config"
	"prodmon/database"
	"prodmon/jobs"
	"prodmon/kvstore"
	"prodmon/templates"
	"prodmon/workspace"
)

func main() {
	fmt.Println("=== ProdMon - Hourly Production Tracking ===")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Configuration loaded")

	// Open the key-value store. Failure is degraded, not fatal: the
	// session database becomes memory-only and drafts are unavailable.
	kv, err := kvstore.Open(cfg.KVPath)
	if err != nil {
		log.Printf("Warning: failed to open key-value store: %v", err)
		kv = nil
	} else {
		defer kv.Close()
		fmt.Println("✓ Key-value store opened")
	}

	// Initialize the session database from the last snapshot
	db, err := database.Initialize(kv)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	if err := repo.Init(); err != nil {
		// The store stays failed; the API degrades to draft-only saves.
		log.Printf("Warning: %v", err)
	} else {
		log.Println("✓ Session store ready")
	}

	// Initialize the editing workspace
	ws := workspace.New(cfg.FormDefaults)
	if draft, found, err := workspace.LoadDraft(kv, time.Now()); err == nil && found {
		log.Printf("Found an auto-saved draft from today (%s); restore via POST /api/draft/restore", draft.Timestamp)
	}

	autosaver := workspace.NewAutosaver(cfg.Autosave, ws, kv)
	autosaver.Start()
	defer autosaver.Stop()

	// Template store
	tmpl := templates.NewStore(kv)

	// Worker pool for batch chart rendering
	workerPool := jobs.NewWorkerPool(cfg.WorkerPoolSize)
	defer workerPool.Stop()
	fmt.Printf("✓ Worker pool started with %d workers\n", cfg.WorkerPoolSize)

	// Initialize API handler
	handler := api.NewHandler(ws, repo, tmpl, kv, cfg, workerPool)

	// Setup router
	router := api.SetupRouter(handler)
	router.Use(api.CORSMiddleware())
	router.Use(api.LoggingMiddleware())

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		fmt.Printf("✓ API server listening on %s\n", addr)
		fmt.Println("\nAPI Endpoints:")
		fmt.Println("  GET  /health")
		fmt.Println("  GET  /api/workspace")
		fmt.Println("  PUT  /api/workspace/fields")
		fmt.Println("  POST /api/workspace/slots")
		fmt.Println("  POST /api/sessions")
		fmt.Println("  GET  /api/sessions")
		fmt.Println("  GET  /api/sessions/{id}/charts")
		fmt.Println("  GET  /api/templates")
		fmt.Println("  GET  /api/draft")
		fmt.Println("\nPress Ctrl+C to shutdown")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		fmt.Printf("Server forced to shutdown: %v\n", err)
	}

	fmt.Println("Server exited")
}
