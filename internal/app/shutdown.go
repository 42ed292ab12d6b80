package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	// Shutdown components in dependency order
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	err := a.shutdownHTTPServer(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Close report store
	err = a.shutdownStore()
	if err != nil {
		a.logger.Error("report-store-close-error", zap.Error(err))
	}

	// Close snapshot source
	err = a.shutdownSource()
	if err != nil {
		a.logger.Error("source-close-error", zap.Error(err))
	}

	// Wait for all goroutines
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}

func (a *App) shutdownHTTPServer(ctx context.Context) error {
	if a.httpServer == nil {
		return nil
	}
	return a.httpServer.Shutdown(ctx)
}

func (a *App) shutdownStore() error {
	return a.store.Close()
}

func (a *App) shutdownSource() error {
	return a.source.Close()
}
