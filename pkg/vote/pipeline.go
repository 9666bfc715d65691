// Package vote drives the submission of confidential instructions: encrypted
// vote casting and poll creation. A per-operation status machine tracks
// progress; the ledger write is the durable fact and every relational write
// after it is a best-effort projection.
package vote

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

// ErrAlreadyVoted is the advisory duplicate rejection. The unique constraint
// on vote_records is the enforcement mechanism of record; this check only
// exists to fail before encryption work is done.
var ErrAlreadyVoted = errors.New("wallet has already voted on this poll")

// ErrInvalidOption rejects a choice outside the poll's option range.
var ErrInvalidOption = errors.New("selected option out of range")

// InitTimeout bounds the wait for the tally-initialization circuit when a
// poll is created on the ledger.
const InitTimeout = 180 * time.Second

// Pipeline submits create-poll and cast-vote instructions. Authority is the
// service's ledger address: it creates promoted poll accounts, so every poll
// address derives from it.
type Pipeline struct {
	Ledger    ledger.Submitter
	Deriver   mpc.Deriver
	Bus       mpc.Bus
	Votes     db.VoteStore
	Points    db.PointsStore
	Authority mpc.Address
	Logger    *zap.Logger

	status      *StatusBoard
	initTimeout time.Duration
}

// NewPipeline wires a pipeline; all dependencies are injected.
func NewPipeline(l ledger.Submitter, d mpc.Deriver, bus mpc.Bus, votes db.VoteStore, points db.PointsStore, authority mpc.Address, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		Ledger:      l,
		Deriver:     d,
		Bus:         bus,
		Votes:       votes,
		Points:      points,
		Authority:   authority,
		Logger:      logger,
		status:      NewStatusBoard(),
		initTimeout: InitTimeout,
	}
}

// Status returns the live status of a wallet's operation on a poll.
func (p *Pipeline) Status(pollID, wallet string) (Status, bool) {
	return p.status.Get(pollID, wallet)
}

// CastVote encrypts the wallet's choice and submits the cast-vote
// instruction. It returns the submission reference as soon as the instruction
// is durable on the ledger: the MPC network applies the encrypted value to
// the tally at some later time, and processing→confirmed is an optimistic
// transition, not proof that the accumulation happened.
func (p *Pipeline) CastVote(ctx context.Context, session *mpc.Session, poll *db.Poll, choice int) (ledger.TxRef, error) {
	if poll.LedgerID == nil {
		return "", fmt.Errorf("%w: poll has no ledger id", ledger.ErrValidation)
	}
	if choice < 0 || choice >= len(poll.Options) {
		return "", ErrInvalidOption
	}
	wallet := session.Wallet

	// Advisory pre-check before any encryption work.
	voted, err := p.Votes.HasVoted(ctx, poll.ID, wallet)
	if err != nil {
		return "", fmt.Errorf("check participation: %w", err)
	}
	if voted {
		return "", ErrAlreadyVoted
	}

	p.status.Set(poll.ID, wallet, StatusEncrypting)

	nonce, err := mpc.NewNonce()
	if err != nil {
		p.status.Fail(poll.ID, wallet, err)
		return "", err
	}
	ciphertexts, err := session.Encrypt([]uint64{uint64(choice)}, nonce)
	if err != nil {
		p.status.Fail(poll.ID, wallet, err)
		return "", fmt.Errorf("encrypt choice: %w", err)
	}

	handle, err := mpc.NewComputationHandle()
	if err != nil {
		p.status.Fail(poll.ID, wallet, err)
		return "", err
	}

	payer, err := mpc.ParseAddress(wallet)
	if err != nil {
		p.status.Fail(poll.ID, wallet, err)
		return "", fmt.Errorf("%w: wallet address: %v", ledger.ErrValidation, err)
	}

	ix := ledger.NewCastVote(p.Deriver, handle, *poll.LedgerID, p.Authority, payer, ciphertexts[0], session.PublicKey, nonce)

	p.status.Set(poll.ID, wallet, StatusQueued)
	txRef, err := p.Ledger.Submit(ctx, ix)
	if err != nil {
		p.status.Fail(poll.ID, wallet, err)
		return "", err
	}

	p.status.Set(poll.ID, wallet, StatusProcessing)
	p.Logger.Info("Vote instruction queued",
		zap.String("pollId", poll.ID),
		zap.Uint32("ledgerId", *poll.LedgerID),
		zap.String("wallet", wallet),
		zap.String("txRef", string(txRef)))

	p.recordParticipation(ctx, poll.ID, wallet, txRef)

	// The queue is confirmed; MPC accumulation completes in the background.
	p.status.Set(poll.ID, wallet, StatusConfirmed)
	return txRef, nil
}

// recordParticipation writes the projection after the ledger accepted the
// vote. Failure here never unwinds the ledger action: the projection is keyed
// by (poll, wallet) and safe to replay during reconciliation.
func (p *Pipeline) recordParticipation(ctx context.Context, pollID, wallet string, txRef ledger.TxRef) {
	rec := &db.VoteRecord{PollID: pollID, Wallet: wallet, TxRef: txRef}
	if err := p.Votes.Record(ctx, rec); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			// Replay against an existing (poll, wallet) record: its point
			// award already happened, nothing more to project.
			return
		}
		p.Logger.Warn("Vote accepted by ledger but participation record failed",
			zap.String("pollId", pollID),
			zap.String("wallet", wallet),
			zap.String("txRef", string(txRef)),
			zap.Error(err))
		return
	}
	if err := p.Points.Award(ctx, &db.PointEntry{
		Wallet:      wallet,
		Amount:      db.PointsVoteCast,
		Reason:      db.ReasonVoteCast,
		ReferenceID: &rec.ID,
	}); err != nil {
		p.Logger.Warn("Failed to award vote points",
			zap.String("wallet", wallet),
			zap.Error(err))
	}
}

// InitializePoll submits the create-poll instruction for a promoted poll and
// waits for the tally-initialization circuit to finish. The waiter is
// registered before submission; the completion signal can land within
// seconds, faster than submission confirmation on some paths.
func (p *Pipeline) InitializePoll(ctx context.Context, ledgerID uint32, creator mpc.Address, question string, options []string) (ledger.TxRef, error) {
	handle, err := mpc.NewComputationHandle()
	if err != nil {
		return "", err
	}
	nonce, err := mpc.NewNonce()
	if err != nil {
		return "", err
	}
	ix, err := ledger.NewCreatePoll(p.Deriver, handle, ledgerID, creator, question, options, nonce)
	if err != nil {
		return "", err
	}

	waiter := p.Bus.Register(handle)
	txRef, err := p.Ledger.Submit(ctx, ix)
	if err != nil {
		p.Bus.Cancel(waiter)
		return "", err
	}

	if _, err := mpc.Await(ctx, p.Bus, waiter, p.initTimeout); err != nil {
		if errors.Is(err, mpc.ErrComputationTimeout) {
			// The poll record is durable; only tally initialization is
			// unconfirmed. Fall back to the ledger before declaring failure.
			addr := p.Deriver.PollAddress(creator, ledgerID)
			if exists, lookErr := p.Ledger.AccountExists(ctx, addr); lookErr == nil && exists {
				p.Logger.Warn("Tally init signal missed but poll account exists on ledger",
					zap.Uint32("ledgerId", ledgerID),
					zap.String("txRef", string(txRef)))
				return txRef, nil
			}
		}
		return txRef, fmt.Errorf("poll %d created (tx %s) but tally initialization unconfirmed: %w", ledgerID, txRef, err)
	}
	return txRef, nil
}
