package ledger

import (
	"fmt"
	"strings"

	"github.com/veilpoll/veilpoll/pkg/mpc"
)

// Instruction argument bounds.
const (
	MaxQuestionLength = 280
	MinOptions        = 2
	MaxOptions        = 4
)

// Kind discriminates ledger instructions.
type Kind string

const (
	KindCreatePoll Kind = "create_poll"
	KindCastVote   Kind = "cast_vote"
	KindReveal     Kind = "reveal"
)

// Instruction is one ledger instruction with its full derived-account bundle.
// Build through the constructors below; they enforce the wire argument shapes.
type Instruction struct {
	Kind   Kind   `json:"kind"`
	Handle uint64 `json:"handle"`
	PollID uint32 `json:"pollId"`

	// create-poll only
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`

	// cast-vote only
	Ciphertext   *mpc.Ciphertext `json:"ciphertext,omitempty"`
	EphemeralKey *[32]byte       `json:"ephemeralKey,omitempty"`

	Nonce    *mpc.Nonce        `json:"nonce,omitempty"`
	Payer    mpc.Address       `json:"payer"`
	Poll     mpc.Address       `json:"poll"`
	Accounts mpc.AccountBundle `json:"accounts"`
}

// ValidateProposal checks question and option bounds. The same limits the
// program enforces on-ledger, applied before any proposal or instruction is
// accepted.
func ValidateProposal(question string, options []string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return fmt.Errorf("%w: question is empty", ErrValidation)
	}
	if len(question) > MaxQuestionLength {
		return fmt.Errorf("%w: question exceeds %d characters", ErrValidation, MaxQuestionLength)
	}
	if len(options) < MinOptions || len(options) > MaxOptions {
		return fmt.Errorf("%w: polls take %d-%d options, got %d", ErrValidation, MinOptions, MaxOptions, len(options))
	}
	for i, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("%w: option %d is empty", ErrValidation, i)
		}
	}
	return nil
}

// NewCreatePoll builds a create-poll instruction: the program allocates the
// poll record and queues the tally-initialization circuit.
func NewCreatePoll(d mpc.Deriver, handle uint64, pollID uint32, creator mpc.Address, question string, options []string, nonce mpc.Nonce) (Instruction, error) {
	if err := ValidateProposal(question, options); err != nil {
		return Instruction{}, err
	}
	question = strings.TrimSpace(question)
	return Instruction{
		Kind:     KindCreatePoll,
		Handle:   handle,
		PollID:   pollID,
		Question: question,
		Options:  options,
		Nonce:    &nonce,
		Payer:    creator,
		Poll:     d.PollAddress(creator, pollID),
		Accounts: d.Accounts(handle, CircuitInitVoteStats),
	}, nil
}

// NewCastVote builds a cast-vote instruction carrying the encrypted choice and
// the voter session's ephemeral public key.
func NewCastVote(d mpc.Deriver, handle uint64, pollID uint32, creator mpc.Address, payer mpc.Address, ciphertext mpc.Ciphertext, ephemeralKey [32]byte, nonce mpc.Nonce) Instruction {
	return Instruction{
		Kind:         KindCastVote,
		Handle:       handle,
		PollID:       pollID,
		Ciphertext:   &ciphertext,
		EphemeralKey: &ephemeralKey,
		Nonce:        &nonce,
		Payer:        payer,
		Poll:         d.PollAddress(creator, pollID),
		Accounts:     d.Accounts(handle, CircuitVote),
	}
}

// NewReveal builds a reveal instruction. The decrypted aggregate arrives later
// as an asynchronous completion signal, not in the submission response.
func NewReveal(d mpc.Deriver, handle uint64, pollID uint32, creator mpc.Address, payer mpc.Address) Instruction {
	return Instruction{
		Kind:     KindReveal,
		Handle:   handle,
		PollID:   pollID,
		Payer:    payer,
		Poll:     d.PollAddress(creator, pollID),
		Accounts: d.Accounts(handle, CircuitRevealResult),
	}
}
