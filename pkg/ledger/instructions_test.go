package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilpoll/veilpoll/pkg/mpc"
)

func testDeriver() mpc.Deriver {
	var program mpc.Address
	copy(program[:], []byte("test-program-id-0123456789abcdef"))
	return mpc.Deriver{ProgramID: program}
}

func TestValidateProposal(t *testing.T) {
	valid := []string{"yes", "no"}

	assert.NoError(t, ValidateProposal("ship it?", valid))
	assert.ErrorIs(t, ValidateProposal("", valid), ErrValidation)
	assert.ErrorIs(t, ValidateProposal("   ", valid), ErrValidation)
	assert.ErrorIs(t, ValidateProposal(strings.Repeat("q", MaxQuestionLength+1), valid), ErrValidation)
	assert.ErrorIs(t, ValidateProposal("q?", []string{"only one"}), ErrValidation)
	assert.ErrorIs(t, ValidateProposal("q?", []string{"a", "b", "c", "d", "e"}), ErrValidation)
	assert.ErrorIs(t, ValidateProposal("q?", []string{"a", " "}), ErrValidation)
}

func TestNewCreatePoll(t *testing.T) {
	d := testDeriver()
	var creator mpc.Address
	creator[0] = 9
	nonce := mpc.Nonce{1, 2, 3}

	ix, err := NewCreatePoll(d, 55, 3, creator, "  ship it?  ", []string{"yes", "no"}, nonce)
	require.NoError(t, err)

	assert.Equal(t, KindCreatePoll, ix.Kind)
	assert.Equal(t, uint64(55), ix.Handle)
	assert.Equal(t, uint32(3), ix.PollID)
	assert.Equal(t, "ship it?", ix.Question)
	assert.Equal(t, creator, ix.Payer)
	assert.Equal(t, d.PollAddress(creator, 3), ix.Poll)
	assert.Equal(t, d.CompDefAddress(CircuitInitVoteStats), ix.Accounts.CompDef)
}

func TestNewCastVote(t *testing.T) {
	d := testDeriver()
	var creator, payer mpc.Address
	creator[0], payer[0] = 1, 2
	ct := mpc.Ciphertext{7}
	eph := [32]byte{8}
	nonce := mpc.Nonce{9}

	ix := NewCastVote(d, 77, 3, creator, payer, ct, eph, nonce)

	assert.Equal(t, KindCastVote, ix.Kind)
	require.NotNil(t, ix.Ciphertext)
	assert.Equal(t, ct, *ix.Ciphertext)
	require.NotNil(t, ix.EphemeralKey)
	assert.Equal(t, eph, *ix.EphemeralKey)
	assert.Equal(t, payer, ix.Payer)
	// The poll address derives from the creator, not the voter.
	assert.Equal(t, d.PollAddress(creator, 3), ix.Poll)
	assert.Equal(t, d.CompDefAddress(CircuitVote), ix.Accounts.CompDef)
}

func TestNewReveal(t *testing.T) {
	d := testDeriver()
	var creator mpc.Address
	creator[0] = 1

	ix := NewReveal(d, 88, 3, creator, creator)

	assert.Equal(t, KindReveal, ix.Kind)
	assert.Nil(t, ix.Ciphertext)
	assert.Equal(t, d.CompDefAddress(CircuitRevealResult), ix.Accounts.CompDef)
}

func TestSubmissionErrorFormatsLogs(t *testing.T) {
	err := &SubmissionError{Message: "already voted", Logs: []string{"program log: duplicate vote"}}
	assert.Contains(t, err.Error(), "already voted")
	assert.Contains(t, err.Error(), "duplicate vote")
}
