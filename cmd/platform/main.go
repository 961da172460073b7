package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pulseroute/platform/internal/chat"
	"github.com/pulseroute/platform/internal/hospital"
	"github.com/pulseroute/platform/internal/matching"
	"github.com/pulseroute/platform/internal/patient"
	"github.com/pulseroute/platform/internal/shared/auth"
	"github.com/pulseroute/platform/internal/shared/config"
	"github.com/pulseroute/platform/internal/shared/database"
	"github.com/pulseroute/platform/internal/shared/events"
	"github.com/pulseroute/platform/internal/shared/metrics"
	secmiddleware "github.com/pulseroute/platform/internal/shared/middleware"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/timeline"
	"github.com/pulseroute/platform/internal/transfer"
	transferapi "github.com/pulseroute/platform/internal/transfer/api"
	transferinfra "github.com/pulseroute/platform/internal/transfer/infrastructure"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	Logger *slog.Logger
}

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg, Logger: logger}

	// Initialize database (optional - skip if not available)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Warn("database not available, running in limited mode", "error", err)
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			logger.Warn("migration failed", "error", err)
		}
	}

	// Initialize event bus with KurrentDB (optional - skip if not available)
	bus, err := events.NewBus(ctx, cfg.KurrentDB)
	if err != nil {
		logger.Warn("KurrentDB not available, running without event streaming", "error", err)
	} else {
		app.Bus = bus
		defer bus.Close()
		logger.Info("KurrentDB event bus initialized")

		// Mirror transfer lifecycle events into the operational log
		err := bus.Subscribe(ctx, "transfer.", func(ctx context.Context, event events.Event) error {
			logger.Info("lifecycle event",
				"type", event.Type, "event_id", event.ID, "actor_id", event.ActorID)
			return nil
		})
		if err != nil {
			logger.Warn("event subscriber failed to start", "error", err)
		}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.BodyLimiter(1 << 20))
	r.Use(secmiddleware.NewIPRateLimiter(100, 200).Middleware)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// Development token endpoint; real deployments issue tokens upstream
	if cfg.Server.Env != "production" {
		r.Post("/auth/dev-token", devTokenHandler(cfg))
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth))

		if app.DB == nil {
			return
		}

		hospitalRepo := hospital.NewPostgresRepository(app.DB.Pool)
		patientRepo := patient.NewPostgresRepository(app.DB.Pool)
		store := transferinfra.NewPostgresStore(app.DB.Pool)
		chatRepo := chat.NewPostgresRepository(app.DB.Pool)

		geo := matching.NewGeoIndex(cfg.Matching.SearchRadiusKM)
		ranker := matching.NewHTTPRanker(cfg.Ranking)
		scorer := matching.NewScorer(ranker, cfg.Ranking, logger)
		dispatcher := matching.NewDispatcher(store, cfg.Matching.FanOutWidth, logger)

		provisioner := chat.NewProvisioner(chatRepo, app.Bus, logger)
		patientService := patient.NewService(
			patientRepo, hospitalRepo, store, geo, scorer, dispatcher, app.Bus, logger)
		transferService := transfer.NewService(store, provisioner, app.Bus, logger)
		projector := timeline.NewProjector(patientRepo, store, chatRepo)

		r.Mount("/hospitals", hospital.NewHandler(hospitalRepo).Routes())
		r.Mount("/patients", patient.NewHandler(patientService).Routes())
		r.Mount("/transfer-requests", transferapi.NewHandler(transferService).Routes())
		r.Mount("/chat-channels", chat.NewHandler(chatRepo).Routes())
		r.Mount("/timeline", timeline.NewHandler(projector).Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		close(done)
	}()

	logger.Info("PulseRoute transfer platform starting",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"search_radius_km", cfg.Matching.SearchRadiusKM,
		"fanout_width", cfg.Matching.FanOutWidth,
		"ranking_service", cfg.Ranking.URL)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	logger.Info("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "PulseRoute Emergency Transfer Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["kurrentdb"] = "not ready: " + err.Error()
			} else {
				checks["kurrentdb"] = "ready"
			}
		} else {
			checks["kurrentdb"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

// devTokenHandler issues short-lived tokens for local testing
func devTokenHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ActorID   string `json:"actor_id"`
			ActorType string `json:"actor_type"`
			Name      string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		actorID, err := types.ParseID(req.ActorID)
		if err != nil {
			actorID = types.NewID()
		}
		if req.ActorType != auth.ActorTypeEMS && req.ActorType != auth.ActorTypeHospital {
			http.Error(w, "actor_type must be ems or hospital", http.StatusBadRequest)
			return
		}

		token, err := auth.IssueToken(cfg.Auth, actorID, req.ActorType, req.Name)
		if err != nil {
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token":    token,
			"actor_id": actorID.String(),
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
