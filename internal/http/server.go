package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
)

// Run serves srv until stop delivers a signal or the listener fails, then
// shuts the server down gracefully. A listener failure is returned so the
// caller can release its resources before exiting.
func Run(ctx context.Context, log *logger.Logger, srv *http.Server, shutdownTimeout time.Duration, stop <-chan os.Signal) error {
	serverErr := make(chan error, 1)
	go func() {
		log.Info(log.WithField(ctx, "addr", srv.Addr), "server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case sig := <-stop:
		log.Info(log.WithField(ctx, "signal", sig.String()), "shutting down")
	case err := <-serverErr:
		log.Error(ctx, "server error", err)
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server forced to shutdown", err)
	}
	return runErr
}
