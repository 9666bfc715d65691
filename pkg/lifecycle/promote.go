package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veilpoll/veilpoll/pkg/db"
	"go.uber.org/zap"
)

// PromoteTopNominations graduates this week's most-selected nominations to
// the voting stage: each gets a fresh numeric ledger id, a create-poll
// instruction with tally initialization, a seven-day deadline, and a point
// award for its proposer. Candidates are processed sequentially so ledger id
// assignment stays monotonic; a failure on one candidate never stops the
// rest.
func (tc *Context) PromoteTopNominations(ctx context.Context) (PromoteOutput, error) {
	startTime := time.Now()
	now := startTime.UTC()
	weekID := db.WeekID(now)

	candidates, err := tc.Polls.TopNominations(ctx, weekID, PromotionCount)
	if err != nil {
		return PromoteOutput{WeekID: weekID}, fmt.Errorf("load nominations: %w", err)
	}

	out := PromoteOutput{WeekID: weekID, Candidates: len(candidates)}
	for _, poll := range candidates {
		// Re-run guard: a crashed previous run may have left partially
		// promoted rows behind; the guarded UPDATE below is the arbiter, this
		// check just avoids pointless ledger work.
		if poll.PromotedAt != nil || poll.Status != db.StatusNomination {
			out.Skipped++
			continue
		}

		promoted, err := tc.promoteOne(ctx, poll, now)
		if err != nil {
			tc.Logger.Error("Failed to promote nomination",
				zap.String("pollId", poll.ID),
				zap.Error(err))
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", poll.ID, err))
			continue
		}
		if promoted == nil {
			out.Skipped++
			continue
		}
		out.Promoted = append(out.Promoted, *promoted)
	}

	out.Duration = time.Since(startTime)
	tc.Logger.Info("Promotion run completed",
		zap.Int("week_id", weekID),
		zap.Int("candidates", out.Candidates),
		zap.Int("promoted", len(out.Promoted)),
		zap.Int("skipped", out.Skipped),
		zap.Int("errors", len(out.Errors)),
		zap.Duration("duration", out.Duration))
	return out, nil
}

// promoteOne creates the ledger poll and flips the projection row. Returns
// (nil, nil) when another run won the guarded update.
func (tc *Context) promoteOne(ctx context.Context, poll *db.Poll, now time.Time) (*PromotedPoll, error) {
	ledgerID, err := tc.Polls.NextLedgerID(ctx)
	if err != nil {
		return nil, fmt.Errorf("assign ledger id: %w", err)
	}

	// A crashed run may have created the account without updating the row;
	// re-creating it would be rejected by the program, so check first.
	addr := tc.Deriver.PollAddress(tc.Authority, ledgerID)
	exists, err := tc.Ledger.AccountExists(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("check poll account: %w", err)
	}

	deadline := now.Add(VotingPeriod)
	promoted := &PromotedPoll{PollID: poll.ID, LedgerID: ledgerID, Deadline: deadline}
	if !exists {
		ref, err := tc.Pipeline.InitializePoll(ctx, ledgerID, tc.Authority, poll.Question, poll.Options)
		if err != nil {
			return nil, err
		}
		promoted.TxRef = ref
	}

	if err := tc.Polls.MarkPromoted(ctx, poll.ID, ledgerID, deadline, now); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// Lost the guarded update: already promoted elsewhere.
			return nil, nil
		}
		return nil, fmt.Errorf("mark promoted: %w", err)
	}
	if err := tc.Polls.SetTallyInitialized(ctx, poll.ID); err != nil {
		tc.Logger.Warn("Promoted poll but tally flag update failed",
			zap.String("pollId", poll.ID),
			zap.Error(err))
	}

	if err := tc.Points.Award(ctx, &db.PointEntry{
		Wallet:      poll.Creator,
		Amount:      db.PointsPollPromoted,
		Reason:      db.ReasonPollPromoted,
		ReferenceID: &poll.ID,
	}); err != nil {
		tc.Logger.Warn("Failed to award promotion points",
			zap.String("pollId", poll.ID),
			zap.String("wallet", poll.Creator),
			zap.Error(err))
	}

	tc.Logger.Info("Nomination promoted to voting",
		zap.String("pollId", poll.ID),
		zap.Uint32("ledgerId", ledgerID),
		zap.Time("deadline", deadline))
	return promoted, nil
}
