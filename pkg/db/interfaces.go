package db

import (
	"context"
	"errors"
	"time"

	"github.com/veilpoll/veilpoll/pkg/ledger"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
	// ErrSelectionLimit surfaces the store-level weekly cap trigger.
	ErrSelectionLimit = errors.New("selection limit reached")
)

// PollQuery filters and paginates poll listings.
type PollQuery struct {
	Section string
	Creator string
	WeekID  int
	Limit   int
	Offset  int
	// SortBySelections orders by selection_count desc (tie-break: oldest
	// first); default order is newest first.
	SortBySelections bool
}

// PollStore is the relational projection of polls.
type PollStore interface {
	CreateProposal(ctx context.Context, p *Poll) error
	Get(ctx context.Context, id string) (*Poll, error)
	GetByLedgerID(ctx context.Context, ledgerID uint32) (*Poll, error)
	List(ctx context.Context, q PollQuery) ([]*Poll, error)

	// TopNominations returns up to limit nomination-status polls for the week,
	// ordered by selection_count desc, created_at asc, id asc.
	TopNominations(ctx context.Context, weekID int, limit int) ([]*Poll, error)
	// StaleNominations returns nomination-status polls created before cutoff.
	StaleNominations(ctx context.Context, cutoff time.Time) ([]*Poll, error)
	// DueForReveal returns voting-status polls whose deadline has passed and
	// whose revealed_at is still null.
	DueForReveal(ctx context.Context, now time.Time) ([]*Poll, error)

	// NextLedgerID returns the next unused numeric ledger poll id.
	NextLedgerID(ctx context.Context) (uint32, error)

	MarkPromoted(ctx context.Context, id string, ledgerID uint32, deadline, promotedAt time.Time) error
	SetTallyInitialized(ctx context.Context, id string) error
	MarkRevealed(ctx context.Context, id string, counts []int64, winner int, txRef ledger.TxRef, revealedAt time.Time) error
	MarkArchived(ctx context.Context, ids []string, archivedAt time.Time) error
}

// SelectionStore persists weekly nomination endorsements. Insert and Delete
// ride the store-level trigger that maintains polls.selection_count and
// enforces the weekly cap; application-side checks are advisory only.
type SelectionStore interface {
	Insert(ctx context.Context, s *Selection) error
	Get(ctx context.Context, id string) (*Selection, error)
	Delete(ctx context.Context, id string) error
	CountForWallet(ctx context.Context, wallet string, weekID int) (int, error)
	ListForWallet(ctx context.Context, wallet string, weekID int) ([]*Selection, error)
	Exists(ctx context.Context, pollID, wallet string, weekID int) (bool, error)
	DeleteForPolls(ctx context.Context, pollIDs []string) error
}

// VoteStore persists participation records. The unique (poll_id, wallet)
// constraint is the enforcement mechanism of record for one-vote-per-wallet.
type VoteStore interface {
	Record(ctx context.Context, r *VoteRecord) error
	HasVoted(ctx context.Context, pollID, wallet string) (bool, error)
	HistoryForWallet(ctx context.Context, wallet string) ([]*VoteRecord, error)
}

// PointsStore is the append-only points ledger.
type PointsStore interface {
	Award(ctx context.Context, e *PointEntry) error
	Balance(ctx context.Context, wallet string) (int, error)
	History(ctx context.Context, wallet string, limit int) ([]*PointEntry, error)
}

// Stores bundles the four relational stores for injection.
type Stores struct {
	Polls      PollStore
	Selections SelectionStore
	Votes      VoteStore
	Points     PointsStore
}
