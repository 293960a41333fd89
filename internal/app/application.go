// Package app wires the engine together and owns the process lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"parley/internal/account"
	"parley/internal/api"
	"parley/internal/auth"
	"parley/internal/blob"
	"parley/internal/config"
	"parley/internal/history"
	"parley/internal/presence"
	"parley/internal/router"
	"parley/internal/ws"
)

// Application holds every component, initialized in dependency order:
// stores -> registry/history -> presence -> router -> API -> HTTP.
type Application struct {
	cfg        *config.Config
	accounts   *account.Store
	blobs      *blob.Manager
	tokens     *auth.Manager
	registry   *ws.Registry
	histories  *history.Store
	notifier   *presence.Notifier
	msgRouter  *router.Router
	apiServer  *api.Server
	httpServer *http.Server
}

// NewApplication builds a fully wired application from cfg.
func NewApplication(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	accounts, err := account.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open account store: %w", err)
	}

	blobs, err := blob.NewManager(cfg.BlobPath)
	if err != nil {
		_ = accounts.Close()
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	tokens := auth.NewManager(cfg.TokenSecret, cfg.TokenTTL)
	registry := ws.NewRegistry()
	histories := history.NewStore()
	notifier := presence.NewNotifier(registry)
	msgRouter := router.NewRouter(registry, histories, accounts, blobs)

	apiServer := api.NewServer(cfg, accounts, tokens, histories, blobs, registry, notifier, msgRouter)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      apiServer,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		accounts:   accounts,
		blobs:      blobs,
		tokens:     tokens,
		registry:   registry,
		histories:  histories,
		notifier:   notifier,
		msgRouter:  msgRouter,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":   a.cfg.Addr(),
			"policy": a.cfg.SessionPolicy,
		}).Info("Server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.closeStores()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	a.closeStores()
	if err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}
	return nil
}

func (a *Application) closeStores() {
	if err := a.blobs.Close(); err != nil {
		logrus.WithFields(logrus.Fields{"error": err}).Error("Blob store close failed")
	}
	if err := a.accounts.Close(); err != nil {
		logrus.WithFields(logrus.Fields{"error": err}).Error("Account store close failed")
	}
}
