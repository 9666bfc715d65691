package vote

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// State is one step of the per-(poll, wallet) submission machine.
type State string

const (
	StatusIdle       State = "idle"
	StatusEncrypting State = "encrypting"
	StatusQueued     State = "queued"
	StatusProcessing State = "processing"
	StatusConfirmed  State = "confirmed"
	StatusError      State = "error"
)

// Status is a snapshot of an in-flight or finished submission. Cause is set
// only in the error state.
type Status struct {
	State     State     `json:"state"`
	Cause     string    `json:"cause,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusBoard tracks submission status in memory, keyed by poll and wallet.
// Entries are ephemeral: a restart resets everyone to idle, which is safe
// because the ledger and the vote_records table hold the durable facts.
type StatusBoard struct {
	entries *xsync.Map[string, Status]
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{entries: xsync.NewMap[string, Status]()}
}

func statusKey(pollID, wallet string) string {
	return pollID + "/" + wallet
}

// Get returns the tracked status, or idle when nothing is in flight.
func (b *StatusBoard) Get(pollID, wallet string) (Status, bool) {
	st, ok := b.entries.Load(statusKey(pollID, wallet))
	if !ok {
		return Status{State: StatusIdle}, false
	}
	return st, true
}

func (b *StatusBoard) Set(pollID, wallet string, state State) {
	b.entries.Store(statusKey(pollID, wallet), Status{
		State:     state,
		UpdatedAt: time.Now().UTC(),
	})
}

// Fail records the error state with its cause.
func (b *StatusBoard) Fail(pollID, wallet string, err error) {
	cause := ""
	if err != nil {
		cause = err.Error()
	}
	b.entries.Store(statusKey(pollID, wallet), Status{
		State:     StatusError,
		Cause:     cause,
		UpdatedAt: time.Now().UTC(),
	})
}

// Clear drops the entry, returning the pair to idle.
func (b *StatusBoard) Clear(pollID, wallet string) {
	b.entries.Delete(statusKey(pollID, wallet))
}
