package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ArchiveStaleNominations retires nominations that sat unpromoted past the
// staleness window, then clears their leftover selections so weekly caps are
// not consumed by dead proposals.
func (tc *Context) ArchiveStaleNominations(ctx context.Context) (ArchiveOutput, error) {
	startTime := time.Now()
	now := startTime.UTC()
	cutoff := now.Add(-StaleAfter)

	stale, err := tc.Polls.StaleNominations(ctx, cutoff)
	if err != nil {
		return ArchiveOutput{Cutoff: cutoff}, err
	}
	out := ArchiveOutput{Cutoff: cutoff}
	if len(stale) == 0 {
		out.Duration = time.Since(startTime)
		return out, nil
	}

	ids := make([]string, 0, len(stale))
	for _, poll := range stale {
		ids = append(ids, poll.ID)
	}
	if err := tc.Polls.MarkArchived(ctx, ids, now); err != nil {
		return out, err
	}
	out.Archived = len(ids)
	out.PollIDs = ids

	// Best-effort tidy-up; orphaned selections only waste rows, the archived
	// status already excludes these polls from selection.
	if err := tc.Selections.DeleteForPolls(ctx, ids); err != nil {
		tc.Logger.Warn("Archived polls but selection cleanup failed",
			zap.Int("polls", len(ids)),
			zap.Error(err))
	}

	out.Duration = time.Since(startTime)
	tc.Logger.Info("Archival run completed",
		zap.Time("cutoff", cutoff),
		zap.Int("archived", out.Archived),
		zap.Duration("duration", out.Duration))
	return out, nil
}
