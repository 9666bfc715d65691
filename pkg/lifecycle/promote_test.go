package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/ledger"
	"github.com/veilpoll/veilpoll/pkg/mpc"
	"github.com/veilpoll/veilpoll/pkg/reveal"
	"go.uber.org/zap/zaptest"
)

type stubPolls struct {
	db.PollStore
	top         []*db.Poll
	topErr      error
	stale       []*db.Poll
	due         []*db.Poll
	nextID      uint32
	promoted    map[string]uint32
	promoteErr  map[string]error
	tallySet    []string
	archivedIDs []string
}

func newStubPolls() *stubPolls {
	return &stubPolls{
		promoted:   map[string]uint32{},
		promoteErr: map[string]error{},
	}
}

func (s *stubPolls) TopNominations(context.Context, int, int) ([]*db.Poll, error) {
	return s.top, s.topErr
}

func (s *stubPolls) StaleNominations(context.Context, time.Time) ([]*db.Poll, error) {
	return s.stale, nil
}

func (s *stubPolls) DueForReveal(context.Context, time.Time) ([]*db.Poll, error) {
	return s.due, nil
}

func (s *stubPolls) NextLedgerID(context.Context) (uint32, error) {
	id := s.nextID
	s.nextID++
	return id, nil
}

func (s *stubPolls) MarkPromoted(_ context.Context, id string, ledgerID uint32, _, _ time.Time) error {
	if err := s.promoteErr[id]; err != nil {
		return err
	}
	s.promoted[id] = ledgerID
	return nil
}

func (s *stubPolls) SetTallyInitialized(_ context.Context, id string) error {
	s.tallySet = append(s.tallySet, id)
	return nil
}

func (s *stubPolls) MarkArchived(_ context.Context, ids []string, _ time.Time) error {
	s.archivedIDs = append(s.archivedIDs, ids...)
	return nil
}

type stubSelections struct {
	db.SelectionStore
	deletedFor []string
	deleteErr  error
}

func (s *stubSelections) DeleteForPolls(_ context.Context, ids []string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedFor = append(s.deletedFor, ids...)
	return nil
}

type stubPoints struct {
	db.PointsStore
	awards []*db.PointEntry
}

func (s *stubPoints) Award(_ context.Context, e *db.PointEntry) error {
	s.awards = append(s.awards, e)
	return nil
}

type stubInitializer struct {
	calls   []uint32
	failFor map[uint32]error
}

func (s *stubInitializer) InitializePoll(_ context.Context, ledgerID uint32, _ mpc.Address, _ string, _ []string) (ledger.TxRef, error) {
	if err := s.failFor[ledgerID]; err != nil {
		return "", err
	}
	s.calls = append(s.calls, ledgerID)
	return "tx-init", nil
}

type stubRevealer struct {
	outcomes map[string]*reveal.Outcome
	errs     map[string]error
	calls    []string
}

func (s *stubRevealer) Reveal(_ context.Context, pollID, _ string, _ time.Duration) (*reveal.Outcome, error) {
	s.calls = append(s.calls, pollID)
	if err := s.errs[pollID]; err != nil {
		return nil, err
	}
	return s.outcomes[pollID], nil
}

type stubLedger struct {
	exists bool
}

func (s *stubLedger) Submit(context.Context, ledger.Instruction) (ledger.TxRef, error) {
	return "tx", nil
}

func (s *stubLedger) AccountExists(context.Context, mpc.Address) (bool, error) {
	return s.exists, nil
}

func (s *stubLedger) PollAccount(context.Context, mpc.Address) (*ledger.PollAccount, error) {
	return nil, ledger.ErrAccountNotFound
}

func nomination(id string, selections int) *db.Poll {
	return &db.Poll{
		ID:             id,
		Creator:        "wallet-" + id,
		Question:       "q " + id,
		Options:        []string{"yes", "no"},
		Status:         db.StatusNomination,
		Section:        db.StatusNomination,
		SelectionCount: selections,
	}
}

func testContext(t *testing.T, polls *stubPolls, init *stubInitializer, rev *stubRevealer, led *stubLedger) *Context {
	t.Helper()
	if led == nil {
		led = &stubLedger{}
	}
	return &Context{
		Polls:      polls,
		Selections: &stubSelections{},
		Points:     &stubPoints{},
		Pipeline:   init,
		Revealer:   rev,
		Ledger:     led,
		Deriver:    mpc.Deriver{},
		Authority:  mpc.Address{0xaa},
		Pool:       pond.NewPool(2),
		Logger:     zaptest.NewLogger(t),
	}
}

func TestPromoteTopNominations(t *testing.T) {
	polls := newStubPolls()
	polls.top = []*db.Poll{nomination("a", 9), nomination("b", 7), nomination("c", 7)}
	init := &stubInitializer{}
	tc := testContext(t, polls, init, nil, nil)
	points := tc.Points.(*stubPoints)

	out, err := tc.PromoteTopNominations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, out.Candidates)
	require.Len(t, out.Promoted, 3)
	// Ledger ids assigned in ranking order.
	assert.Equal(t, uint32(0), out.Promoted[0].LedgerID)
	assert.Equal(t, uint32(2), out.Promoted[2].LedgerID)
	assert.Equal(t, []uint32{0, 1, 2}, init.calls)

	// Seven-day deadlines and promotion points per poll.
	for _, p := range out.Promoted {
		assert.WithinDuration(t, time.Now().Add(VotingPeriod), p.Deadline, time.Minute)
	}
	require.Len(t, points.awards, 3)
	assert.Equal(t, db.PointsPollPromoted, points.awards[0].Amount)
	assert.Equal(t, db.ReasonPollPromoted, points.awards[0].Reason)
}

func TestPromoteSkipsAlreadyPromoted(t *testing.T) {
	polls := newStubPolls()
	done := nomination("a", 9)
	now := time.Now()
	done.PromotedAt = &now
	polls.top = []*db.Poll{done, nomination("b", 5)}
	init := &stubInitializer{}
	tc := testContext(t, polls, init, nil, nil)

	out, err := tc.PromoteTopNominations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, out.Skipped)
	require.Len(t, out.Promoted, 1)
	assert.Equal(t, "b", out.Promoted[0].PollID)
}

func TestPromoteContinuesPastFailures(t *testing.T) {
	polls := newStubPolls()
	polls.top = []*db.Poll{nomination("a", 9), nomination("b", 7)}
	// Ledger id 0 goes to "a" and its creation fails; "b" still promotes.
	init := &stubInitializer{failFor: map[uint32]error{0: errors.New("ledger down")}}
	tc := testContext(t, polls, init, nil, nil)

	out, err := tc.PromoteTopNominations(context.Background())
	require.NoError(t, err)

	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "a: ")
	require.Len(t, out.Promoted, 1)
	assert.Equal(t, "b", out.Promoted[0].PollID)
}

func TestPromoteSkipsWhenGuardedUpdateLoses(t *testing.T) {
	polls := newStubPolls()
	polls.top = []*db.Poll{nomination("a", 9)}
	polls.promoteErr["a"] = db.ErrNotFound
	tc := testContext(t, polls, &stubInitializer{}, nil, nil)

	out, err := tc.PromoteTopNominations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.Promoted)
	assert.Equal(t, 1, out.Skipped)
	assert.Empty(t, out.Errors)
}

func TestPromoteReusesExistingLedgerAccount(t *testing.T) {
	// A crashed run created the account without updating the row: promotion
	// must not resubmit create-poll.
	polls := newStubPolls()
	polls.top = []*db.Poll{nomination("a", 9)}
	init := &stubInitializer{}
	tc := testContext(t, polls, init, nil, &stubLedger{exists: true})

	out, err := tc.PromoteTopNominations(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Promoted, 1)
	assert.Empty(t, init.calls)
	assert.Equal(t, uint32(0), polls.promoted["a"])
}
