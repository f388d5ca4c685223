package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Start - starts the HTTP server carrying the healthcheck and the local
// hot-seat play API.
func Start(ctx context.Context, port string, handlers *Handlers) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", pingHandler)
	mux.HandleFunc("POST /local/new", handlers.NewLocalGame)
	mux.HandleFunc("GET /local/state", handlers.LocalGameState)
	mux.HandleFunc("POST /local/move", handlers.LocalGameMove)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
