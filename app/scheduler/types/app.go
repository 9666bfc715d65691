package types

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/db/postgres"
	"github.com/veilpoll/veilpoll/pkg/ledger"
	"github.com/veilpoll/veilpoll/pkg/lifecycle"
	"github.com/veilpoll/veilpoll/pkg/mpc"
	"go.uber.org/zap"
)

// App wires the scheduler service: the cron runner that drives the weekly
// lifecycle plus an HTTP surface for manual task triggers.
type App struct {
	Postgres *postgres.Client
	Stores   db.Stores

	Redis  *redis.Client
	Bus    *mpc.RedisBus
	Ledger *ledger.HTTPClient

	Tasks *lifecycle.Context
	Cron  *cron.Cron

	Logger *zap.Logger
	Server *http.Server
}

// Start runs the cron schedule and serves HTTP until the context is
// cancelled.
func (a *App) Start(ctx context.Context) {
	a.Cron.Start()

	go func() {
		<-ctx.Done()
		a.Logger.Info("Shutting down scheduler")
		<-a.Cron.Stop().Done() // let in-flight tasks finish
		_ = a.Server.Shutdown(context.Background())
		a.Bus.Close()
		a.Postgres.Close()
	}()

	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.Logger.Fatal("Server failed", zap.Error(err))
	}
}
