package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	api "github.com/mind-engage/testnav/internal/api/http"
	"github.com/mind-engage/testnav/internal/config"
	"github.com/mind-engage/testnav/internal/db"
	"github.com/mind-engage/testnav/internal/itemstore"
	"github.com/mind-engage/testnav/internal/session"
	syncx "github.com/mind-engage/testnav/internal/sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// --- Session plumbing ---
	tokens := session.NewTokenIssuer(cfg.ResumeSecret)
	events := syncx.NewEventRepo(dbh)
	stores := func(sessionID string) itemstore.Store {
		return itemstore.NewSQLStore(dbh, sessionID)
	}
	mgr := session.NewManager(stores, events, tokens, cfg.ProctorPinHash)

	// --- Cached test-map watcher ---
	if _, err := os.Stat(cfg.MapPath); err == nil {
		watcher, err := syncx.NewMapWatcher(cfg.MapPath, mgr.ApplyMapAll)
		if err != nil {
			log.Fatalf("map watcher failed: %v", err)
		}
		go func() {
			if err := watcher.Run(context.Background()); err != nil && err != context.Canceled {
				log.Printf("map watcher stopped: %v", err)
			}
		}()
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", api.StartSessionHandler(mgr))
		r.Post("/resume", api.ResumeSessionHandler(mgr))

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Use(api.ResumeTokenMiddleware(tokens))
			r.Post("/nav", api.NavigateHandler(mgr))
			r.Get("/context", api.ContextHandler(mgr))
			r.Get("/jumps", api.JumpsHandler(mgr))
			r.Put("/map", api.PatchMapHandler(mgr))
			r.Post("/reset", api.ResetHandler(mgr))
		})
	})

	log.Printf("testnavd listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
