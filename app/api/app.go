// Package api assembles the public-facing poll service: wallet sessions,
// proposals and selections, confidential vote submission and reveals.
package api

import (
	"context"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/veilpoll/veilpoll/app/api/types"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/db/postgres"
	"github.com/veilpoll/veilpoll/pkg/ledger"
	"github.com/veilpoll/veilpoll/pkg/logging"
	"github.com/veilpoll/veilpoll/pkg/mpc"
	"github.com/veilpoll/veilpoll/pkg/reveal"
	"github.com/veilpoll/veilpoll/pkg/selection"
	"github.com/veilpoll/veilpoll/pkg/utils"
	"github.com/veilpoll/veilpoll/pkg/vote"
	"go.uber.org/zap"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	pg, err := postgres.New(ctx, logger, &postgres.PoolConfig{
		MinConns:        2,
		MaxConns:        20,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		Component:       "api",
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

	return &types.App{
		Postgres:   pg,
		Stores:     stores,
		Redis:      redisClient,
		Bus:        bus,
		Ledger:     ledgerClient,
		Deriver:    deriver,
		Authority:  authority,
		Sessions:   mpc.NewSessionManager(ledgerClient, logger),
		Pipeline:   vote.NewPipeline(ledgerClient, deriver, bus, stores.Votes, stores.Points, authority, logger),
		Revealer:   &reveal.Coordinator{Ledger: ledgerClient, Deriver: deriver, Bus: bus, Polls: stores.Polls, Authority: authority, Logger: logger},
		Selections: &selection.Ledger{Polls: stores.Polls, Selections: stores.Selections, Points: stores.Points, Logger: logger},
		Logger:     logger,
	}
}
