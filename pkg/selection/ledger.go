// Package selection enforces the weekly per-wallet selection cap on
// nomination-stage polls. The checks here are advisory; the store-level
// trigger on the selections table is the gate of record, because the
// cap-check-then-insert sequence has a window under concurrent selects.
package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veilpoll/veilpoll/pkg/db"
	"go.uber.org/zap"
)

// WeeklyCap is the fixed number of nomination-stage polls one wallet may
// endorse per week.
const WeeklyCap = 5

var (
	ErrNotNomination    = errors.New("poll is not in the nomination section")
	ErrAlreadySelected  = errors.New("poll already selected this week")
	ErrSelectionLimit   = db.ErrSelectionLimit
	ErrSelectionMissing = errors.New("selection not found")
)

// Ledger mediates select/deselect against the poll and selection stores and
// credits the fixed point award per selection.
type Ledger struct {
	Polls      db.PollStore
	Selections db.SelectionStore
	Points     db.PointsStore
	Logger     *zap.Logger
}

// Result reports the outcome of a select call.
type Result struct {
	Selection *db.Selection `json:"selection"`
	Remaining int           `json:"remainingSelections"`
	Points    int           `json:"pointsAwarded"`
}

// Select endorses a nomination-stage poll for the wallet in the given week.
func (l *Ledger) Select(ctx context.Context, pollID, wallet string, weekID int) (*Result, error) {
	poll, err := l.Polls.Get(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("load poll: %w", err)
	}
	if poll.Section != db.StatusNomination {
		return nil, ErrNotNomination
	}

	// Advisory pre-checks for friendlier errors; the trigger re-enforces both.
	if exists, err := l.Selections.Exists(ctx, pollID, wallet, weekID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadySelected
	}
	count, err := l.Selections.CountForWallet(ctx, wallet, weekID)
	if err != nil {
		return nil, err
	}
	if count >= WeeklyCap {
		return nil, ErrSelectionLimit
	}

	sel := &db.Selection{PollID: pollID, Wallet: wallet, WeekID: weekID, CreatedAt: time.Now().UTC()}
	if err := l.Selections.Insert(ctx, sel); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, ErrAlreadySelected
		}
		return nil, err
	}

	if err := l.Points.Award(ctx, &db.PointEntry{
		Wallet:      wallet,
		Amount:      db.PointsSelectionMade,
		Reason:      db.ReasonSelectionMade,
		ReferenceID: &sel.ID,
	}); err != nil {
		// Points are a best-effort projection; the selection stands.
		l.Logger.Warn("Failed to award selection points",
			zap.String("wallet", wallet),
			zap.String("selectionId", sel.ID),
			zap.Error(err))
	}

	return &Result{
		Selection: sel,
		Remaining: WeeklyCap - (count + 1),
		Points:    db.PointsSelectionMade,
	}, nil
}

// Deselect removes a selection by id; the store trigger decrements the poll's
// counter atomically with the delete.
func (l *Ledger) Deselect(ctx context.Context, selectionID string) (remaining int, err error) {
	sel, err := l.Selections.Get(ctx, selectionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return 0, ErrSelectionMissing
		}
		return 0, err
	}
	if err := l.Selections.Delete(ctx, selectionID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return 0, ErrSelectionMissing
		}
		return 0, err
	}
	count, err := l.Selections.CountForWallet(ctx, sel.Wallet, sel.WeekID)
	if err != nil {
		return 0, err
	}
	return WeeklyCap - count, nil
}

// Remaining reports how many selections the wallet has left this week.
func (l *Ledger) Remaining(ctx context.Context, wallet string, weekID int) (int, error) {
	count, err := l.Selections.CountForWallet(ctx, wallet, weekID)
	if err != nil {
		return 0, err
	}
	return WeeklyCap - count, nil
}
