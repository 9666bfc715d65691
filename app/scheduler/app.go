// Package scheduler hosts the cron-driven lifecycle tasks: weekly promotion,
// auto-reveal of overdue polls, and archival of stale nominations.
package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/veilpoll/veilpoll/app/scheduler/types"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/db/postgres"
	"github.com/veilpoll/veilpoll/pkg/ledger"
	"github.com/veilpoll/veilpoll/pkg/lifecycle"
	"github.com/veilpoll/veilpoll/pkg/logging"
	"github.com/veilpoll/veilpoll/pkg/mpc"
	"github.com/veilpoll/veilpoll/pkg/reveal"
	"github.com/veilpoll/veilpoll/pkg/utils"
	"github.com/veilpoll/veilpoll/pkg/vote"
	"go.uber.org/zap"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	pg, err := postgres.New(ctx, logger, &postgres.PoolConfig{
		MinConns:        1,
		MaxConns:        10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		Component:       "scheduler",
	})
	if err != nil {
		logger.Fatal("Unable to initialize postgres", zap.Error(err))
	}
	if err := pg.InitSchema(ctx); err != nil {
		logger.Fatal("Unable to initialize schema", zap.Error(err))
	}
	stores := db.Stores{
		Polls:      postgres.NewPollStore(pg),
		Selections: postgres.NewSelectionStore(pg),
		Votes:      postgres.NewVoteStore(pg),
		Points:     postgres.NewPointsStore(pg),
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr: utils.Env("REDIS_ADDR", "localhost:6379"),
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Unable to reach redis", zap.Error(err))
	}
	bus := mpc.NewRedisBus(ctx, redisClient, utils.Env("COMPLETION_CHANNEL", "mpc:completions"), logger)

	ledgerClient := ledger.NewHTTPClient(ledger.Opts{
		Endpoint: utils.Env("LEDGER_ENDPOINT", "http://localhost:8899"),
		Timeout:  utils.EnvDuration("LEDGER_TIMEOUT", 15*time.Second),
		Logger:   logger,
	})

	programID, err := mpc.ParseAddress(utils.Env("PROGRAM_ID", strings.Repeat("0", 64)))
	if err != nil {
		logger.Fatal("Invalid PROGRAM_ID", zap.Error(err))
	}
	authority, err := mpc.ParseAddress(utils.Env("AUTHORITY_ADDRESS", strings.Repeat("0", 64)))
	if err != nil {
		logger.Fatal("Invalid AUTHORITY_ADDRESS", zap.Error(err))
	}
	deriver := mpc.Deriver{
		ProgramID:     programID,
		ClusterOffset: uint32(utils.EnvInt("CLUSTER_OFFSET", 0)),
	}

	tasks := &lifecycle.Context{
		Polls:      stores.Polls,
		Selections: stores.Selections,
		Points:     stores.Points,
		Pipeline:   vote.NewPipeline(ledgerClient, deriver, bus, stores.Votes, stores.Points, authority, logger),
		Revealer:   &reveal.Coordinator{Ledger: ledgerClient, Deriver: deriver, Bus: bus, Polls: stores.Polls, Authority: authority, Logger: logger},
		Ledger:     ledgerClient,
		Deriver:    deriver,
		Authority:  authority,
		Pool:       pond.NewPool(utils.EnvInt("REVEAL_WORKERS", 4)),
		Logger:     logger,
	}

	app := &types.App{
		Postgres: pg,
		Stores:   stores,
		Redis:    redisClient,
		Bus:      bus,
		Ledger:   ledgerClient,
		Tasks:    tasks,
		Logger:   logger,
	}
	app.Cron = newCron(ctx, app)
	return app
}

// newCron wires the recurring schedule. Expressions carry a seconds field and
// are overridable per deployment.
func newCron(ctx context.Context, app *types.App) *cron.Cron {
	cl := &cronLogger{log: app.Logger}
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl)))

	schedule := func(env, def, name string, run func(context.Context) error) {
		expr := utils.Env(env, def)
		if _, err := c.AddFunc(expr, func() {
			if err := run(ctx); err != nil {
				app.Logger.Error("Scheduled task failed",
					zap.String("task", name),
					zap.Error(err))
			}
		}); err != nil {
			app.Logger.Fatal("Invalid cron expression",
				zap.String("task", name),
				zap.String("expr", expr),
				zap.Error(err))
		}
	}

	// Monday 00:00 UTC: promote the week's top nominations.
	schedule("PROMOTE_CRON", "0 0 0 * * 1", "promote", func(ctx context.Context) error {
		_, err := app.Tasks.PromoteTopNominations(ctx)
		return err
	})
	// Hourly: reveal overdue polls.
	schedule("REVEAL_CRON", "0 0 * * * *", "auto_reveal", func(ctx context.Context) error {
		_, err := app.Tasks.RevealOverduePolls(ctx)
		return err
	})
	// Daily 02:00 UTC: archive stale nominations.
	schedule("ARCHIVE_CRON", "0 0 2 * * *", "archive", func(ctx context.Context) error {
		_, err := app.Tasks.ArchiveStaleNominations(ctx)
		return err
	})

	return c
}

// cronLogger adapts zap to the cron logger interface used by the recovery
// chain.
type cronLogger struct {
	log *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Sugar().Infow(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Sugar().Errorw(msg, append([]any{"error", err}, keysAndValues...)...)
}
