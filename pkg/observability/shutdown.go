package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// GracefulShutdown shuts the HTTP servers down, then runs the shutdown
// functions in order (stop the registration runner before closing the audit
// sinks it may still write to). The caller decides when to shut down; this
// does not wait for signals.
func GracefulShutdown(logger *Logger, timeout time.Duration, servers []*http.Server, shutdownFuncs ...ShutdownFunc) error {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	logger.Info("Starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var failed int
	for _, server := range servers {
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Errorf("HTTP server shutdown error on %s", server.Addr)
			failed++
		}
	}

	for i, fn := range shutdownFuncs {
		if err := fn(ctx); err != nil {
			logger.WithError(err).Errorf("Shutdown function %d failed", i)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("shutdown completed with %d errors", failed)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}
