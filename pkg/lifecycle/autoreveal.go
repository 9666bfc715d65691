package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/veilpoll/veilpoll/pkg/reveal"
	"go.uber.org/zap"
)

// RevealOverduePolls sweeps voting-stage polls whose deadline has passed and
// reveals each one's aggregate. Reveals fan out on the worker pool because
// each wait can take minutes; one poll's failure never aborts the sweep, it
// is reported in the output and picked up again on the next run.
func (tc *Context) RevealOverduePolls(ctx context.Context) (AutoRevealOutput, error) {
	startTime := time.Now()

	due, err := tc.Polls.DueForReveal(ctx, startTime.UTC())
	if err != nil {
		return AutoRevealOutput{}, err
	}
	out := AutoRevealOutput{Due: len(due)}
	if len(due) == 0 {
		out.Duration = time.Since(startTime)
		return out, nil
	}

	var mu sync.Mutex
	group := tc.Pool.NewGroupContext(ctx)
	for _, poll := range due {
		group.Submit(func() {
			outcome, err := tc.Revealer.Reveal(ctx, poll.ID, tc.Authority.String(), reveal.AutoTimeout)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				tc.Logger.Error("Auto-reveal failed",
					zap.String("pollId", poll.ID),
					zap.Error(err))
				out.Failed++
				out.Results = append(out.Results, RevealResult{PollID: poll.ID, Error: err.Error()})
				return
			}
			out.Revealed++
			out.Results = append(out.Results, RevealResult{
				PollID: poll.ID,
				Winner: outcome.Winner,
				Counts: outcome.Counts,
			})
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return out, err
	}

	out.Duration = time.Since(startTime)
	tc.Logger.Info("Auto-reveal sweep completed",
		zap.Int("due", out.Due),
		zap.Int("revealed", out.Revealed),
		zap.Int("failed", out.Failed),
		zap.Duration("duration", out.Duration))
	return out, nil
}
