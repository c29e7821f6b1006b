package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apexflow/pumpselect/internal/catalog"
	"github.com/apexflow/pumpselect/internal/engine"
	"github.com/apexflow/pumpselect/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP selection API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		eng := initEngine(st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(eng, st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(eng *engine.Engine, st catalog.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/select", func(w http.ResponseWriter, req *http.Request) {
		var sel engine.SelectionRequest
		if err := json.NewDecoder(req.Body).Decode(&sel); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := eng.Select(req.Context(), sel)
		if err != nil {
			if model.IsConfigurationError(err) {
				zap.L().Error("selection aborted by configuration", zap.Error(err))
				writeError(w, http.StatusConflict, eris.Cause(err).Error())
				return
			}
			zap.L().Error("selection failed", zap.Error(err))
			writeError(w, http.StatusBadRequest, eris.Cause(err).Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/api/traces", func(w http.ResponseWriter, req *http.Request) {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		traces, err := st.ListTraces(req.Context(), catalog.TraceFilter{
			SessionID: req.URL.Query().Get("session"),
			Limit:     limit,
		})
		if err != nil {
			zap.L().Error("trace listing failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "trace listing failed")
			return
		}
		writeJSON(w, http.StatusOK, traces)
	})

	r.Get("/api/traces/{id}", func(w http.ResponseWriter, req *http.Request) {
		trace, err := eng.Explain(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if errors.Is(err, model.ErrTraceNotFound) {
				writeError(w, http.StatusNotFound, "trace not found")
				return
			}
			zap.L().Error("trace lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "trace lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, trace)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
