package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// SignalHandler manages graceful shutdown of the HTTP server
type SignalHandler struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
	onShutdown      []func()
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(server *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) *SignalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignalHandler{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// OnShutdown registers fn to run after the server stopped accepting requests.
// Hooks run in registration order.
func (sh *SignalHandler) OnShutdown(fn func()) {
	sh.onShutdown = append(sh.onShutdown, fn)
}

// Serve starts the server and blocks until ctx is cancelled, SIGINT or
// SIGTERM arrives, or the listener fails. The server is then shut down
// gracefully within the shutdown timeout.
func (sh *SignalHandler) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		sh.logger.Info("Starting server", "addr", sh.server.Addr)
		if err := sh.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			sh.runHooks()
			return err
		}
	case <-ctx.Done():
		sh.logger.Info("Initiating graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sh.shutdownTimeout)
	defer cancel()

	err := sh.server.Shutdown(shutdownCtx)
	if err != nil {
		sh.logger.Error("Server forced to shutdown due to timeout", "error", err)
	} else {
		sh.logger.Info("Server gracefully shut down")
	}
	sh.runHooks()
	return err
}

func (sh *SignalHandler) runHooks() {
	for _, fn := range sh.onShutdown {
		fn()
	}
}
