package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealscout/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the search and scan API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type", "X-Scan-Secret"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			if err := env.Store.Ping(req.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/search", func(w http.ResponseWriter, req *http.Request) {
			handleSearch(env, w, req)
		})

		r.Post("/api/scan", func(w http.ResponseWriter, req *http.Request) {
			handleScan(env, w, req)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			if err := gracefulShutdown(srv, 10*time.Second); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type searchRequest struct {
	Query    string              `json:"query"`
	Filters  model.SearchFilters `json:"filters"`
	UseCache *bool               `json:"use_cache,omitempty"`
}

type searchResponse struct {
	Success   bool            `json:"success"`
	Products  []model.Listing `json:"products"`
	Stats     searchStats     `json:"stats"`
	Source    []string        `json:"source"`
	FromCache bool            `json:"from_cache"`
	Partial   bool            `json:"partial,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

type searchStats struct {
	Count int `json:"count"`
}

func handleSearch(env *engineEnv, w http.ResponseWriter, req *http.Request) {
	var body searchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	useCache := body.UseCache == nil || *body.UseCache
	result, err := runSearch(req.Context(), env, body, useCache)
	if err != nil {
		zap.L().Error("search failed", zap.String("query", body.Query), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "search failed"})
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Success:   len(result.Listings) > 0,
		Products:  result.Listings,
		Stats:     searchStats{Count: len(result.Listings)},
		Source:    result.SourcesUsed,
		FromCache: result.FromCache,
		Partial:   result.Partial,
		Reason:    string(result.Reason),
	})
}

func handleScan(env *engineEnv, w http.ResponseWriter, req *http.Request) {
	if cfg.Server.ScanSecret == "" ||
		subtle.ConstantTimeCompare([]byte(req.Header.Get("X-Scan-Secret")), []byte(cfg.Server.ScanSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	scanType := model.ScanType(req.URL.Query().Get("type"))
	if scanType == "" {
		scanType = model.ScanAll
	}
	if !model.ValidScanType(scanType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown scan type"})
		return
	}

	run, err := env.Orchestrator.Run(req.Context(), scanType)
	if err != nil && run == nil {
		zap.L().Error("scan failed to start", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scan failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": run.Status == model.ScanStatusCompleted,
		"stats":   run.Stats,
		"status":  run.Status,
		"errors":  run.Errors,
	})
}

// gracefulShutdown drains in-flight requests on a fresh context; the signal
// context is already cancelled by the time shutdown starts, so it cannot be
// the shutdown deadline.
func gracefulShutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
