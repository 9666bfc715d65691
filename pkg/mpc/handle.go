package mpc

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewComputationHandle draws 8 cryptographically random bytes and interprets
// them as a little-endian uint64. The handle correlates a queued confidential
// instruction with its later completion signal. No dedup against in-flight
// handles is performed; a 64-bit collision within one completion window is
// treated as improbable rather than defended against.
func NewComputationHandle() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("draw computation handle: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Nonce is the 128-bit nonce carried by every confidential instruction.
type Nonce [16]byte

// NewNonce draws a random 128-bit nonce.
func NewNonce() (Nonce, error) {
	var n Nonce
	if _, err := rand.Read(n[:]); err != nil {
		return Nonce{}, fmt.Errorf("draw nonce: %w", err)
	}
	return n, nil
}
