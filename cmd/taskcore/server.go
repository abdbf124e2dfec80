package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/phrazzld/taskcore/internal/api"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

func (app *application) setupRouter() http.Handler {
	handler := api.NewTaskHandler(app.namespace, app.emitter, app.logger)
	return api.NewRouter(handler, app.registry, app.logger)
}

// startHTTPServer serves router until ctx is cancelled or the listener
// fails, then shuts down gracefully and runs cleanup.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("Shutting down server...")
	case err, ok := <-serverErr:
		if ok {
			app.logger.Error("Server failed", "error", err)
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("Server shutdown failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	app.cleanup()

	app.logger.Info("Server shutdown completed")
	return runErr
}
