package db

import (
	"time"

	"github.com/veilpoll/veilpoll/pkg/ledger"
)

// Poll lifecycle stages. Status and section always move together; section is
// the denormalized copy used for query partitioning.
const (
	StatusNomination = "nomination"
	StatusVoting     = "voting"
	StatusCompleted  = "completed"
	StatusArchived   = "archived"
)

// Point award reasons and amounts.
const (
	ReasonPollCreated   = "poll_created"
	ReasonSelectionMade = "selection_made"
	ReasonVoteCast      = "vote_cast"
	ReasonPollPromoted  = "poll_promoted"

	PointsPollCreated   = 5
	PointsSelectionMade = 1
	PointsVoteCast      = 2
	PointsPollPromoted  = 10
)

// Poll is the relational projection of a poll. The ledger owns the encrypted
// tally; this row owns scheduling and metadata, and is only eventually
// consistent with the ledger.
type Poll struct {
	ID             string     `json:"id"`
	LedgerID       *uint32    `json:"ledgerId,omitempty"` // assigned at promotion
	Creator        string     `json:"creator"`
	Question       string     `json:"question"`
	Options        []string   `json:"options"`
	Status         string     `json:"status"`
	Section        string     `json:"section"`
	WeekID         int        `json:"weekId"`
	SelectionCount int        `json:"selectionCount"` // maintained by trigger
	Deadline       *time.Time `json:"deadline,omitempty"`
	PromotedAt     *time.Time `json:"promotedAt,omitempty"`
	RevealedAt     *time.Time `json:"revealedAt,omitempty"`
	ArchivedAt     *time.Time `json:"archivedAt,omitempty"`
	VoteCounts     []int64    `json:"voteCounts,omitempty"` // populated at reveal
	Winner         *int       `json:"winner,omitempty"`
	RevealTxRef    *string    `json:"revealTxRef,omitempty"`
	// TallyInitialized is set when the create-poll computation's completion
	// signal lands. The ciphertext bytes themselves cannot distinguish
	// "uninitialized" from an encrypted zero.
	TallyInitialized bool      `json:"tallyInitialized"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Selection is one wallet's weekly endorsement of a nomination-stage poll.
type Selection struct {
	ID        string    `json:"id"`
	PollID    string    `json:"pollId"`
	Wallet    string    `json:"wallet"`
	WeekID    int       `json:"weekId"`
	CreatedAt time.Time `json:"createdAt"`
}

// VoteRecord marks that a wallet submitted an encrypted vote on a poll. It
// never carries the plaintext choice; the decrypted choice exists only inside
// the ledger/MPC plane until revealed as an aggregate.
type VoteRecord struct {
	ID        string       `json:"id"`
	PollID    string       `json:"pollId"`
	Wallet    string       `json:"wallet"`
	TxRef     ledger.TxRef `json:"txRef"`
	CreatedAt time.Time    `json:"createdAt"`
}

// PointEntry is one append-only points ledger entry. Balances are derived by
// summation; entries are never mutated or deleted.
type PointEntry struct {
	ID          string    `json:"id"`
	Wallet      string    `json:"wallet"`
	Amount      int       `json:"amount"`
	Reason      string    `json:"reason"`
	ReferenceID *string   `json:"referenceId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
