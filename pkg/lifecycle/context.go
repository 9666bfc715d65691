// Package lifecycle holds the scheduled tasks that move polls through the
// weekly cadence: promotion of the top nominations, auto-reveal of overdue
// votes, and archival of stale proposals. Each task returns a summary output
// and never fails the whole run because one poll failed.
package lifecycle

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/ledger"
	"github.com/veilpoll/veilpoll/pkg/mpc"
	"github.com/veilpoll/veilpoll/pkg/reveal"
	"go.uber.org/zap"
)

// Cadence constants for the weekly cycle.
const (
	// PromotionCount is how many nominations graduate to voting each week.
	PromotionCount = 5
	// VotingPeriod is the deadline granted to a freshly promoted poll.
	VotingPeriod = 7 * 24 * time.Hour
	// StaleAfter is how long a nomination may sit unpromoted before archival.
	StaleAfter = 30 * 24 * time.Hour
)

// PollInitializer creates a poll on the ledger and waits for its tally
// initialization. The vote pipeline implements it.
type PollInitializer interface {
	InitializePoll(ctx context.Context, ledgerID uint32, creator mpc.Address, question string, options []string) (ledger.TxRef, error)
}

// Revealer decrypts a poll's aggregate. The reveal coordinator implements it.
type Revealer interface {
	Reveal(ctx context.Context, pollID, caller string, timeout time.Duration) (*reveal.Outcome, error)
}

// Context carries the dependencies the scheduled tasks run against.
type Context struct {
	Polls      db.PollStore
	Selections db.SelectionStore
	Points     db.PointsStore
	Pipeline   PollInitializer
	Revealer   Revealer
	Ledger     ledger.Submitter
	Deriver    mpc.Deriver
	Authority  mpc.Address
	Pool       pond.Pool
	Logger     *zap.Logger
}
