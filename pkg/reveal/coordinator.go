// Package reveal drives the decryption of a poll's aggregate tally. The
// decrypted counts arrive as an asynchronous completion signal from the MPC
// cluster, never in the submission response, so the coordinator registers its
// listener before it submits.
package reveal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/ledger"
	"github.com/veilpoll/veilpoll/pkg/mpc"
	"go.uber.org/zap"
)

var (
	// ErrNotAuthority rejects reveal calls from anyone but the poll's creator
	// or the service authority.
	ErrNotAuthority = errors.New("caller is not authorized to reveal this poll")
	// ErrNotPromoted rejects reveals on polls that never reached the ledger.
	ErrNotPromoted = errors.New("poll has no ledger account to reveal")
)

// Wait bounds. Interactive calls get the short bound; the scheduler's
// auto-reveal sweep tolerates the long one.
const (
	UserTimeout = 30 * time.Second
	AutoTimeout = 180 * time.Second
)

// Outcome is a revealed tally. AlreadyRevealed marks the idempotent
// short-circuit path where the stored result was returned without a new
// ledger submission.
type Outcome struct {
	PollID          string       `json:"pollId"`
	Counts          []int64      `json:"counts"`
	Winner          int          `json:"winner"`
	TxRef           ledger.TxRef `json:"txRef,omitempty"`
	AlreadyRevealed bool         `json:"alreadyRevealed"`
}

// Coordinator submits reveal instructions and waits for the decrypted
// aggregate. Authority is the service's ledger address; it created every
// promoted poll account, so poll addresses derive from it and it may reveal
// any overdue poll.
type Coordinator struct {
	Ledger    ledger.Submitter
	Deriver   mpc.Deriver
	Bus       mpc.Bus
	Polls     db.PollStore
	Authority mpc.Address
	Logger    *zap.Logger
}

// Reveal decrypts the aggregate tally of a poll. Calling it on an
// already-revealed poll returns the stored outcome without touching the
// ledger; the reveal circuit is idempotent on-chain but a second submission
// wastes a computation.
func (c *Coordinator) Reveal(ctx context.Context, pollID, caller string, timeout time.Duration) (*Outcome, error) {
	poll, err := c.Polls.Get(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("load poll: %w", err)
	}

	if poll.RevealedAt != nil {
		return storedOutcome(poll), nil
	}
	if poll.LedgerID == nil {
		return nil, ErrNotPromoted
	}
	if caller != poll.Creator && caller != c.Authority.String() {
		return nil, ErrNotAuthority
	}

	handle, err := mpc.NewComputationHandle()
	if err != nil {
		return nil, err
	}
	payer := c.Authority
	if addr, parseErr := mpc.ParseAddress(caller); parseErr == nil {
		payer = addr
	}
	ix := ledger.NewReveal(c.Deriver, handle, *poll.LedgerID, c.Authority, payer)

	// Listener first: the cluster's callback can land before submission
	// confirmation, and an unregistered signal is dropped.
	waiter := c.Bus.Register(handle)
	txRef, err := c.Ledger.Submit(ctx, ix)
	if err != nil {
		c.Bus.Cancel(waiter)
		return nil, err
	}
	c.Logger.Info("Reveal instruction queued",
		zap.String("pollId", pollID),
		zap.Uint32("ledgerId", *poll.LedgerID),
		zap.String("txRef", string(txRef)))

	sig, err := mpc.Await(ctx, c.Bus, waiter, timeout)
	if err != nil {
		if errors.Is(err, mpc.ErrComputationTimeout) {
			// The signal may have landed in another process; check the
			// projection before reporting the wait as lost.
			if fresh, reErr := c.Polls.Get(ctx, pollID); reErr == nil && fresh.RevealedAt != nil {
				return storedOutcome(fresh), nil
			}
		}
		return nil, fmt.Errorf("reveal submitted (tx %s) but result unconfirmed: %w", txRef, err)
	}

	counts := truncateCounts(sig.Output, len(poll.Options))
	winner := winningOption(counts)

	// The decrypted counts are already public on the ledger; the projection
	// write is best-effort and safe to replay during reconciliation.
	if err := c.Polls.MarkRevealed(ctx, pollID, counts, winner, txRef, time.Now().UTC()); err != nil {
		c.Logger.Warn("Reveal completed but projection update failed",
			zap.String("pollId", pollID),
			zap.String("txRef", string(txRef)),
			zap.Error(err))
	}

	return &Outcome{
		PollID: pollID,
		Counts: counts,
		Winner: winner,
		TxRef:  txRef,
	}, nil
}

func storedOutcome(poll *db.Poll) *Outcome {
	out := &Outcome{
		PollID:          poll.ID,
		Counts:          poll.VoteCounts,
		AlreadyRevealed: true,
	}
	if poll.Winner != nil {
		out.Winner = *poll.Winner
	}
	if poll.RevealTxRef != nil {
		out.TxRef = ledger.TxRef(*poll.RevealTxRef)
	}
	return out
}

// truncateCounts clips the circuit output to the poll's real option count.
// The tally vector on the ledger has fixed width; unused slots decrypt to
// zero but must not leak into results.
func truncateCounts(output []uint64, optionCount int) []int64 {
	if optionCount > len(output) {
		optionCount = len(output)
	}
	counts := make([]int64, optionCount)
	for i := 0; i < optionCount; i++ {
		counts[i] = int64(output[i])
	}
	return counts
}

// winningOption returns the index of the highest count; ties go to the
// lowest index.
func winningOption(counts []int64) int {
	winner := 0
	for i, c := range counts {
		if c > counts[winner] {
			winner = i
		}
	}
	return winner
}
