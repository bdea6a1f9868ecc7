// Command devserver runs the chat relay handler behind a plain HTTP server
// for local development.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pdf-chat-relay/internal/app"
	"pdf-chat-relay/internal/config"
)

const correlationHeader = "X-Correlation-Id"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	h, err := app.NewHandler(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(correlationFromRequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", correlationHeader},
		ExposedHeaders: []string{correlationHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	// Every method reaches the handler so it stays the one answering 405.
	r.Handle("/chat", h)
	r.Handle("/.netlify/functions/chat", h)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("dev server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("dev server stopped", "err", err)
		os.Exit(1)
	}
}

// correlationFromRequestID hands chi's request id to the handler as the
// correlation id unless the caller already sent one.
func correlationFromRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(correlationHeader) == "" {
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				r.Header.Set(correlationHeader, id)
			}
		}
		next.ServeHTTP(w, r)
	})
}
