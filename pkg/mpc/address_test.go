package mpc

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeriver() Deriver {
	var program Address
	copy(program[:], []byte("test-program-id-0123456789abcdef"))
	return Deriver{ProgramID: program, ClusterOffset: 7}
}

func TestPollAddressDeterministic(t *testing.T) {
	d := testDeriver()
	var creator Address
	copy(creator[:], []byte("creator-address-0123456789abcdef"))

	a := d.PollAddress(creator, 42)
	b := d.PollAddress(creator, 42)
	assert.Equal(t, a, b)

	// Different ids and creators land on different addresses.
	assert.NotEqual(t, a, d.PollAddress(creator, 43))
	var other Address
	other[0] = 1
	assert.NotEqual(t, a, d.PollAddress(other, 42))
}

func TestDerivedAddressesDistinct(t *testing.T) {
	d := testDeriver()
	seen := map[Address]string{}
	for name, addr := range map[string]Address{
		"signer":         d.SignerAddress(),
		"mxe":            d.MXEAddress(),
		"mempool":        d.MempoolAddress(),
		"executing_pool": d.ExecutingPoolAddress(),
		"cluster":        d.ClusterAddress(),
		"computation":    d.ComputationAddress(99),
		"comp_def_vote":  d.CompDefAddress("vote"),
	} {
		prev, dup := seen[addr]
		require.False(t, dup, "%s collides with %s", name, prev)
		seen[addr] = name
	}
}

func TestCompDefOffsetStable(t *testing.T) {
	// Offsets must agree across processes; same input, same offset.
	assert.Equal(t, CompDefOffset("vote"), CompDefOffset("vote"))
	assert.NotEqual(t, CompDefOffset("vote"), CompDefOffset("reveal_result"))
}

func TestAccountsBundle(t *testing.T) {
	d := testDeriver()
	bundle := d.Accounts(123, "vote")

	assert.Equal(t, d.SignerAddress(), bundle.Signer)
	assert.Equal(t, d.ComputationAddress(123), bundle.Computation)
	assert.Equal(t, d.CompDefAddress("vote"), bundle.CompDef)
	assert.Equal(t, d.ClusterAddress(), bundle.Cluster)
}

func TestParseAddressRoundTrip(t *testing.T) {
	d := testDeriver()
	addr := d.SignerAddress()

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)
}

func TestAddressJSONHex(t *testing.T) {
	d := testDeriver()
	addr := d.MXEAddress()

	raw, err := json.Marshal(addr)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+addr.String()+`"`, string(raw))

	var back Address
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, addr, back)
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	_, err := ParseAddress("not-hex")
	assert.Error(t, err)

	_, err = ParseAddress(strings.Repeat("ab", 16)) // too short
	assert.Error(t, err)
}
