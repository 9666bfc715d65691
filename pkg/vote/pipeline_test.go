package vote

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/ledger"
	"github.com/veilpoll/veilpoll/pkg/mpc"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/curve25519"
)

type fakeSubmitter struct {
	submitted []ledger.Instruction
	submitErr error
	exists    bool
	existsErr error
	onSubmit  func()
}

func (f *fakeSubmitter) Submit(_ context.Context, ix ledger.Instruction) (ledger.TxRef, error) {
	if f.onSubmit != nil {
		f.onSubmit()
	}
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, ix)
	return "tx-1", nil
}

func (f *fakeSubmitter) AccountExists(context.Context, mpc.Address) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeSubmitter) PollAccount(context.Context, mpc.Address) (*ledger.PollAccount, error) {
	return nil, ledger.ErrAccountNotFound
}

type fakeBus struct {
	registered []uint64
	deliver    func(w *mpc.Waiter)
}

func (f *fakeBus) Register(handle uint64) *mpc.Waiter {
	f.registered = append(f.registered, handle)
	w := mpc.NewWaiter(handle)
	if f.deliver != nil {
		f.deliver(w)
	}
	return w
}

func (f *fakeBus) Cancel(*mpc.Waiter) {}

type fakeVotes struct {
	voted     bool
	votedErr  error
	recorded  []*db.VoteRecord
	recordErr error
}

func (f *fakeVotes) Record(_ context.Context, r *db.VoteRecord) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	if r.ID == "" {
		r.ID = "vr-1"
	}
	f.recorded = append(f.recorded, r)
	return nil
}

func (f *fakeVotes) HasVoted(context.Context, string, string) (bool, error) {
	return f.voted, f.votedErr
}

func (f *fakeVotes) HistoryForWallet(context.Context, string) ([]*db.VoteRecord, error) {
	return f.recorded, nil
}

type fakePoints struct {
	awards   []*db.PointEntry
	awardErr error
}

func (f *fakePoints) Award(_ context.Context, e *db.PointEntry) error {
	if f.awardErr != nil {
		return f.awardErr
	}
	f.awards = append(f.awards, e)
	return nil
}

func (f *fakePoints) Balance(context.Context, string) (int, error) { return 0, nil }

func (f *fakePoints) History(context.Context, string, int) ([]*db.PointEntry, error) {
	return f.awards, nil
}

type staticKeyFetcher struct{ key [32]byte }

func (s staticKeyFetcher) NetworkPublicKey(context.Context) ([32]byte, error) { return s.key, nil }

var testWallet = strings.Repeat("ab", 32)

func testSession(t *testing.T) *mpc.Session {
	t.Helper()
	priv := [32]byte{1}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	require.NoError(t, err)
	var key [32]byte
	copy(key[:], pub)
	s, err := mpc.NewSession(context.Background(), staticKeyFetcher{key: key}, testWallet, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func testPipeline(t *testing.T, sub *fakeSubmitter, bus *fakeBus, votes *fakeVotes, points *fakePoints) *Pipeline {
	t.Helper()
	var authority mpc.Address
	authority[0] = 0xaa
	var program mpc.Address
	program[0] = 0x01
	return NewPipeline(sub, mpc.Deriver{ProgramID: program}, bus, votes, points, authority, zaptest.NewLogger(t))
}

func votingPoll() *db.Poll {
	id := uint32(3)
	return &db.Poll{
		ID:       "poll-1",
		LedgerID: &id,
		Creator:  testWallet,
		Question: "ship it?",
		Options:  []string{"yes", "no"},
		Status:   db.StatusVoting,
	}
}

func TestCastVoteSubmitsEncryptedChoice(t *testing.T) {
	sub := &fakeSubmitter{}
	votes := &fakeVotes{}
	points := &fakePoints{}
	p := testPipeline(t, sub, &fakeBus{}, votes, points)

	txRef, err := p.CastVote(context.Background(), testSession(t), votingPoll(), 1)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxRef("tx-1"), txRef)

	require.Len(t, sub.submitted, 1)
	ix := sub.submitted[0]
	assert.Equal(t, ledger.KindCastVote, ix.Kind)
	require.NotNil(t, ix.Ciphertext)
	assert.NotEqual(t, mpc.Ciphertext{}, *ix.Ciphertext)
	require.NotNil(t, ix.EphemeralKey)
	require.NotNil(t, ix.Nonce)

	// Participation projection and point award landed.
	require.Len(t, votes.recorded, 1)
	assert.Equal(t, "poll-1", votes.recorded[0].PollID)
	require.Len(t, points.awards, 1)
	assert.Equal(t, db.PointsVoteCast, points.awards[0].Amount)

	status, ok := p.Status("poll-1", testWallet)
	require.True(t, ok)
	assert.Equal(t, StatusConfirmed, status.State)
}

func TestCastVoteRejectsOutOfRangeChoice(t *testing.T) {
	p := testPipeline(t, &fakeSubmitter{}, &fakeBus{}, &fakeVotes{}, &fakePoints{})

	_, err := p.CastVote(context.Background(), testSession(t), votingPoll(), 2)
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = p.CastVote(context.Background(), testSession(t), votingPoll(), -1)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestCastVoteRejectsUnpromotedPoll(t *testing.T) {
	p := testPipeline(t, &fakeSubmitter{}, &fakeBus{}, &fakeVotes{}, &fakePoints{})
	poll := votingPoll()
	poll.LedgerID = nil

	_, err := p.CastVote(context.Background(), testSession(t), poll, 0)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCastVoteRejectsDuplicate(t *testing.T) {
	sub := &fakeSubmitter{}
	p := testPipeline(t, sub, &fakeBus{}, &fakeVotes{voted: true}, &fakePoints{})

	_, err := p.CastVote(context.Background(), testSession(t), votingPoll(), 0)
	assert.ErrorIs(t, err, ErrAlreadyVoted)
	assert.Empty(t, sub.submitted)
}

func TestCastVoteLedgerRejectionSurfacesLogs(t *testing.T) {
	subErr := &ledger.SubmissionError{Message: "already voted", Logs: []string{"program log: duplicate"}}
	p := testPipeline(t, &fakeSubmitter{submitErr: subErr}, &fakeBus{}, &fakeVotes{}, &fakePoints{})

	_, err := p.CastVote(context.Background(), testSession(t), votingPoll(), 0)
	var got *ledger.SubmissionError
	require.ErrorAs(t, err, &got)
	assert.Contains(t, got.Logs[0], "duplicate")

	status, _ := p.Status("poll-1", testWallet)
	assert.Equal(t, StatusError, status.State)
	assert.Contains(t, status.Cause, "already voted")
}

func TestCastVoteProjectionFailureIsSwallowed(t *testing.T) {
	// The ledger accepted the vote; a failed participation write must not
	// fail the call or unwind anything.
	votes := &fakeVotes{recordErr: errors.New("db down")}
	points := &fakePoints{}
	p := testPipeline(t, &fakeSubmitter{}, &fakeBus{}, votes, points)

	txRef, err := p.CastVote(context.Background(), testSession(t), votingPoll(), 0)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxRef("tx-1"), txRef)
	// No point award without a participation record to reference.
	assert.Empty(t, points.awards)
}

func TestCastVoteDuplicateProjectionAwardsNoPoints(t *testing.T) {
	// The advisory pre-check lost a race: the unique (poll_id, wallet) row
	// already exists. Replaying the projection must stay idempotent, so the
	// wallet never collects vote points a second time.
	votes := &fakeVotes{recordErr: db.ErrDuplicate}
	points := &fakePoints{}
	p := testPipeline(t, &fakeSubmitter{}, &fakeBus{}, votes, points)

	txRef, err := p.CastVote(context.Background(), testSession(t), votingPoll(), 0)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxRef("tx-1"), txRef)
	assert.Empty(t, points.awards)
}

func TestInitializePollRegistersListenerBeforeSubmit(t *testing.T) {
	var order []string
	bus := &fakeBus{deliver: func(w *mpc.Waiter) {
		order = append(order, "register")
		w.Deliver(mpc.Signal{Handle: w.Handle(), Kind: ledger.CircuitInitVoteStats})
	}}
	sub := &fakeSubmitter{onSubmit: func() { order = append(order, "submit") }}
	p := testPipeline(t, sub, bus, &fakeVotes{}, &fakePoints{})

	var authority mpc.Address
	authority[0] = 0xaa
	txRef, err := p.InitializePoll(context.Background(), 3, authority, "ship it?", []string{"yes", "no"})
	require.NoError(t, err)
	assert.Equal(t, ledger.TxRef("tx-1"), txRef)
	assert.Equal(t, []string{"register", "submit"}, order)
}

func TestInitializePollTimeoutFallsBackToLedger(t *testing.T) {
	// No signal arrives, but the poll account exists on the ledger: the
	// create succeeded and only the signal was missed.
	sub := &fakeSubmitter{exists: true}
	p := testPipeline(t, sub, &fakeBus{}, &fakeVotes{}, &fakePoints{})
	p.initTimeout = 20 * time.Millisecond

	var authority mpc.Address
	txRef, err := p.InitializePoll(context.Background(), 3, authority, "ship it?", []string{"yes", "no"})
	require.NoError(t, err)
	assert.Equal(t, ledger.TxRef("tx-1"), txRef)
}

func TestInitializePollTimeoutWithoutAccountFails(t *testing.T) {
	sub := &fakeSubmitter{exists: false}
	p := testPipeline(t, sub, &fakeBus{}, &fakeVotes{}, &fakePoints{})
	p.initTimeout = 20 * time.Millisecond

	var authority mpc.Address
	_, err := p.InitializePoll(context.Background(), 3, authority, "ship it?", []string{"yes", "no"})
	assert.ErrorIs(t, err, mpc.ErrComputationTimeout)
}
