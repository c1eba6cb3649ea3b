package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snw-store/internal/app"
	"snw-store/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rt, err := app.Build(app.Options{LoadDotEnv: true, StartSweepers: true})
	if err != nil {
		observability.NewLogger("info").Error("bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger := rt.Logger

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", rt.Config.Port),
		Handler:           rt.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server_start", map[string]any{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	exitCode := 0
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server_failed", map[string]any{"error": err.Error()})
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("server_shutdown", map[string]any{"reason": "signal"})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", map[string]any{"error": err.Error()})
		exitCode = 1
	}
	if err := rt.Close(); err != nil {
		logger.Error("runtime_close_failed", map[string]any{"error": err.Error()})
		exitCode = 1
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
