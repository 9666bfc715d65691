package types

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/db/postgres"
	"github.com/veilpoll/veilpoll/pkg/ledger"
	"github.com/veilpoll/veilpoll/pkg/mpc"
	"github.com/veilpoll/veilpoll/pkg/reveal"
	"github.com/veilpoll/veilpoll/pkg/selection"
	"github.com/veilpoll/veilpoll/pkg/vote"
	"go.uber.org/zap"
)

// App wires the API service's long-lived dependencies.
type App struct {
	// Storage
	Postgres *postgres.Client
	Stores   db.Stores

	// MPC / ledger plane
	Redis     *redis.Client
	Bus       *mpc.RedisBus
	Ledger    *ledger.HTTPClient
	Deriver   mpc.Deriver
	Authority mpc.Address
	Sessions  *mpc.SessionManager

	// Domain services
	Pipeline   *vote.Pipeline
	Revealer   *reveal.Coordinator
	Selections *selection.Ledger

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// Start serves HTTP until the context is cancelled, then shuts down cleanly.
func (a *App) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		a.Logger.Info("Shutting down server")
		_ = a.Server.Shutdown(context.Background())
		a.Bus.Close()
		a.Postgres.Close()
	}()

	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.Logger.Fatal("Server failed", zap.Error(err))
	}
}
