// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/gatherhub/gatherhub/internal/database"
	"github.com/gatherhub/gatherhub/internal/external"
	"github.com/gatherhub/gatherhub/internal/handler"
	"github.com/gatherhub/gatherhub/internal/memstore"
	"github.com/gatherhub/gatherhub/internal/notify"
	"github.com/gatherhub/gatherhub/internal/repository"
	"github.com/gatherhub/gatherhub/internal/service"
	"github.com/gatherhub/gatherhub/internal/validation"
)

func main() {
	memory := flag.Bool("memory", false, "run against the in-memory store instead of PostgreSQL")
	flag.Parse()

	// .env file is optional.
	_ = godotenv.Load()

	ctx := context.Background()

	// ── 1. Build the store and collaborators ─────────────────────────────
	var (
		chains    service.ChainStore
		tracker   service.TrackerStore
		hierarchy external.Hierarchy
		photos    external.Photos
		threads   external.Threads
	)
	if *memory {
		store := memstore.New()
		chains, tracker = store, store
		hierarchy, photos, threads = store, store, store
		log.Println("running with in-memory store")
	} else {
		pool, err := database.NewPool(ctx)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Println("connected to PostgreSQL")

		chains = repository.NewChainRepository(pool)
		tracker = repository.NewTrackerRepository(pool)
		hierarchy = repository.NewHierarchyRepository(pool)
		photos = repository.NewPhotoRepository(pool)
		threads = repository.NewThreadRepository(pool)
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	validator := validation.NewEngine(validation.DefaultLimits, photos)
	dispatcher := notify.NewLogDispatcher()
	eventSvc := service.NewEventService(chains, tracker, hierarchy, photos, threads, dispatcher, validator)
	eventHandler := handler.NewEventHandler(eventSvc)

	// ── 3. Build the router ──────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.CORS)            // permissive CORS for local development

	r.Get("/health", handler.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(handler.Auth(external.TokenIdentity{}))
		eventHandler.Routes(r)
	})

	// ── 4. Start server with graceful shutdown ───────────────────────────
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
