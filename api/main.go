package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oikotie-tools/apartment-radar/internal/cache"
	"github.com/oikotie-tools/apartment-radar/internal/config"
	"github.com/oikotie-tools/apartment-radar/internal/engine"
	"github.com/oikotie-tools/apartment-radar/internal/logger"
	"github.com/oikotie-tools/apartment-radar/internal/models"
	"github.com/oikotie-tools/apartment-radar/internal/oikotie"
	"github.com/oikotie-tools/apartment-radar/internal/query"
	"github.com/oikotie-tools/apartment-radar/internal/snapshot"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	client := oikotie.New(cfg.OikotieBaseURL, cfg.UpstreamTimeout, log)
	agg := engine.New(client, cfg.FetchCap, cfg.FetchBatchSize, log)

	srv := &server{
		log:       log,
		cfg:       cfg,
		engine:    agg,
		snapshots: snapshot.NewStore(cfg.SnapshotPath),
	}

	if cfg.RedisAddr != "" {
		counts := cache.New(cfg.RedisAddr, cfg.CacheTTL, log)
		defer counts.Close()
		agg.WithCache(counts)
		srv.cache = counts
		log.Info("count cache enabled", slog.String("redis", cfg.RedisAddr))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/apartments", srv.handleSearch)
	r.Post("/refresh", srv.handleRefresh)
	r.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      3 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

// searcher is the engine surface the handlers need.
type searcher interface {
	Search(ctx context.Context, q query.Query) (*engine.Result, error)
	FetchAll(ctx context.Context) ([]models.Listing, error)
}

type snapshotSaver interface {
	Save(listings []models.Listing) (*snapshot.Snapshot, error)
}

type invalidator interface {
	Invalidate(ctx context.Context) error
	Ping(ctx context.Context) error
}

type server struct {
	log       *slog.Logger
	cfg       *config.API
	engine    searcher
	cache     invalidator // nil when redis is not configured
	snapshots snapshotSaver
}

type errorResponse struct {
	Error string `json:"error"`
}

type searchResponse struct {
	Apartments []models.Listing `json:"apartments"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	Exact      bool             `json:"exact"`
}

type refreshResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	q, err := query.Parse(r.URL.Query(), s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.engine.Search(ctx, q)
	if err != nil {
		s.log.Error("search failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Apartments: result.Items,
		Total:      result.Total,
		Page:       q.Page.Number,
		PageSize:   q.Page.Size,
		Exact:      result.Exact,
	})
}

// handleRefresh forces a fresh full-catalog fetch, persists it as a snapshot,
// and invalidates the warm cache.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Minute)
	defer cancel()

	listings, err := s.engine.FetchAll(ctx)
	if err != nil {
		s.log.Error("refresh failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if _, err := s.snapshots.Save(listings); err != nil {
		s.log.Error("save snapshot", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			// Stale counts expire on their own TTL; refresh still succeeded.
			s.log.Warn("cache invalidation failed", slog.Any("err", err))
		}
	}

	s.log.Info("catalog refreshed", slog.Int("count", len(listings)))
	writeJSON(w, http.StatusOK, refreshResponse{Success: true, Count: len(listings)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
