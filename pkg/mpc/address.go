package mpc

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Address is a 32-byte deterministic account address on the ledger.
type Address [32]byte

func (a Address) String() string { return hex.EncodeToString(a[:]) }

// Addresses travel as hex strings on the wire.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes a 64-char hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("malformed address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("malformed address %q: want %d bytes, got %d", s, len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Seed strings shared with the ledger program. Changing any of these breaks
// address agreement with on-ledger state.
const (
	seedPoll          = "poll"
	seedSigner        = "SignerAccount"
	seedComputation   = "ComputationAccount"
	seedCompDef       = "ComputationDefinitionAccount"
	seedMXE           = "MXEAccount"
	seedMempool       = "Mempool"
	seedExecutingPool = "ExecutingPool"
	seedCluster       = "Cluster"
)

// Deriver derives every deterministic account address needed to interact with
// the ledger-resident program and the MPC network. Pure; the only failure mode
// is malformed fixed-width input, which is a caller bug and panics.
type Deriver struct {
	ProgramID     Address
	ClusterOffset uint32
}

func derive(parts ...[]byte) Address {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// CompDefOffset maps a confidential circuit name to its definition offset:
// the first 4 bytes of SHA-256 of the name, little-endian.
func CompDefOffset(circuit string) uint32 {
	sum := sha256.Sum256([]byte(circuit))
	return binary.LittleEndian.Uint32(sum[:4])
}

// PollAddress derives the poll record address from its creator and numeric id.
func (d Deriver) PollAddress(creator Address, pollID uint32) Address {
	return derive([]byte(seedPoll), creator[:], u32le(pollID), d.ProgramID[:])
}

// SignerAddress derives the program's signing authority address.
func (d Deriver) SignerAddress() Address {
	return derive([]byte(seedSigner), d.ProgramID[:])
}

// ComputationAddress derives the per-operation computation record address from
// its correlation handle.
func (d Deriver) ComputationAddress(handle uint64) Address {
	return derive([]byte(seedComputation), u64le(handle), d.ProgramID[:])
}

// CompDefAddress derives the computation definition record address for a circuit.
func (d Deriver) CompDefAddress(circuit string) Address {
	return derive([]byte(seedCompDef), u32le(CompDefOffset(circuit)), d.ProgramID[:])
}

// MXEAddress derives the MPC execution environment record address.
func (d Deriver) MXEAddress() Address {
	return derive([]byte(seedMXE), d.ProgramID[:])
}

// MempoolAddress derives the MPC mempool record address.
func (d Deriver) MempoolAddress() Address {
	return derive([]byte(seedMempool), d.ProgramID[:])
}

// ExecutingPoolAddress derives the MPC executing-pool record address.
func (d Deriver) ExecutingPoolAddress() Address {
	return derive([]byte(seedExecutingPool), d.ProgramID[:])
}

// ClusterAddress derives the MPC cluster record address from the configured
// cluster offset.
func (d Deriver) ClusterAddress() Address {
	return derive([]byte(seedCluster), u32le(d.ClusterOffset))
}

// AccountBundle is the full set of derived addresses one confidential
// instruction carries.
type AccountBundle struct {
	Signer        Address `json:"signer"`
	MXE           Address `json:"mxe"`
	Mempool       Address `json:"mempool"`
	ExecutingPool Address `json:"executingPool"`
	Computation   Address `json:"computation"`
	CompDef       Address `json:"compDef"`
	Cluster       Address `json:"cluster"`
}

// Accounts derives the bundle for one operation: the per-handle computation
// record plus the circuit's definition record and the fixed network accounts.
func (d Deriver) Accounts(handle uint64, circuit string) AccountBundle {
	return AccountBundle{
		Signer:        d.SignerAddress(),
		MXE:           d.MXEAddress(),
		Mempool:       d.MempoolAddress(),
		ExecutingPool: d.ExecutingPoolAddress(),
		Computation:   d.ComputationAddress(handle),
		CompDef:       d.CompDefAddress(circuit),
		Cluster:       d.ClusterAddress(),
	}
}
