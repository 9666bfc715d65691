package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/veilpoll/veilpoll/pkg/mpc"
)

// TxRef references a transaction accepted by the ledger.
type TxRef string

// Circuit names the program's confidential instructions run.
const (
	CircuitInitVoteStats = "init_vote_stats"
	CircuitVote          = "vote"
	CircuitRevealResult  = "reveal_result"
)

// ErrValidation marks malformed input caught before any I/O.
var ErrValidation = errors.New("validation failed")

// ErrAccountNotFound is returned by account reads for absent addresses.
var ErrAccountNotFound = errors.New("account not found")

// SubmissionError is an instruction rejected by the ledger, with the
// program's diagnostic log lines attached.
type SubmissionError struct {
	Message string
	Logs    []string
}

func (e *SubmissionError) Error() string {
	if len(e.Logs) == 0 {
		return fmt.Sprintf("ledger rejected instruction: %s", e.Message)
	}
	return fmt.Sprintf("ledger rejected instruction: %s\nprogram logs:\n%s", e.Message, strings.Join(e.Logs, "\n"))
}

// PollAccount is the ledger-resident poll state.
//
// An all-zero ciphertext is the initial state before the MPC network
// populates the tally, but it is bit-indistinguishable from a legitimately
// encrypted zero. Callers must not infer "uninitialized" from content; track
// initialization through the create-poll computation's completion signal.
type PollAccount struct {
	ID          uint32           `json:"id"`
	Creator     mpc.Address      `json:"creator"`
	VoteState   []mpc.Ciphertext `json:"voteState"` // one per option
	Nonce       mpc.Nonce        `json:"nonce"`
	Question    string           `json:"question"`
	Options     []string         `json:"options"`
	OptionCount uint8            `json:"optionCount"`
}

// Submitter is the capability interface over the ledger. Alternative client
// implementations substitute here without touching call sites.
type Submitter interface {
	Submit(ctx context.Context, ix Instruction) (TxRef, error)
	AccountExists(ctx context.Context, addr mpc.Address) (bool, error)
	PollAccount(ctx context.Context, addr mpc.Address) (*PollAccount, error)
}
