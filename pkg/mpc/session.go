package mpc

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/veilpoll/veilpoll/pkg/retry"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// Ciphertext is the fixed-width encrypted representation of one plaintext value.
type Ciphertext [32]byte

// ErrSessionClosed is returned when encrypting on a torn-down session.
var ErrSessionClosed = errors.New("encryption session closed")

// Cipher encrypts small plaintext values into fixed-width ciphertexts. The MPC
// network's cipher is substitutable behind this interface.
type Cipher interface {
	Encrypt(values []uint64, nonce Nonce) ([]Ciphertext, error)
}

// NetworkKeyFetcher fetches the MPC network's current published public key.
// The ledger client implements this.
type NetworkKeyFetcher interface {
	NetworkPublicKey(ctx context.Context) ([32]byte, error)
}

const (
	keyFetchAttempts = 10
	keyFetchDelay    = 500 * time.Millisecond
)

// Session holds the ephemeral key material for one wallet connection. It is
// torn down and regenerated whenever the active wallet changes; nothing
// survives a reconnect. A reconnect can close the session while a vote is
// encrypting on another request, so the cipher is read under a lock.
type Session struct {
	Wallet    string
	PublicKey [32]byte // ephemeral, travels with every encrypted instruction

	mu     sync.RWMutex
	cipher Cipher // nil once closed
}

// NewSession fetches the network key with bounded retry, generates an
// ephemeral x25519 pair, performs key agreement and keys a cipher with the
// shared secret. Exhausting the retries is fatal to the session.
func NewSession(ctx context.Context, fetcher NetworkKeyFetcher, wallet string, logger *zap.Logger) (*Session, error) {
	var networkKey [32]byte
	cfg := retry.FixedConfig(keyFetchAttempts, keyFetchDelay)
	err := retry.WithBackoff(ctx, cfg, logger, "fetch_network_public_key", func() error {
		k, ferr := fetcher.NetworkPublicKey(ctx)
		if ferr != nil {
			return ferr
		}
		networkKey = k
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("network public key unavailable: %w", err)
	}

	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive ephemeral public key: %w", err)
	}
	shared, err := curve25519.X25519(priv[:], networkKey[:])
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	for i := range priv {
		priv[i] = 0
	}

	cipher, err := newSharedCipher(shared)
	if err != nil {
		return nil, err
	}

	s := &Session{Wallet: wallet, cipher: cipher}
	copy(s.PublicKey[:], pub)
	logger.Debug("Encryption session established", zap.String("wallet", wallet))
	return s, nil
}

// Encrypt encrypts plaintext values under the session cipher. An encrypt
// racing a Close either completes under the old key or fails closed.
func (s *Session) Encrypt(values []uint64, nonce Nonce) ([]Ciphertext, error) {
	s.mu.RLock()
	cipher := s.cipher
	s.mu.RUnlock()
	if cipher == nil {
		return nil, ErrSessionClosed
	}
	return cipher.Encrypt(values, nonce)
}

// Close tears the session down. Ephemeral keys die with the session.
func (s *Session) Close() {
	s.mu.Lock()
	s.cipher = nil
	s.mu.Unlock()
}

// sharedCipher produces fixed-width ciphertexts from a ChaCha20 keystream
// keyed by the HKDF-expanded shared secret. Value i uses block counter i so a
// multi-value encrypt never reuses keystream.
type sharedCipher struct {
	key [32]byte
}

func newSharedCipher(shared []byte) (*sharedCipher, error) {
	c := &sharedCipher{}
	kdf := hkdf.New(sha256.New, shared, nil, []byte("veilpoll/session-cipher/v1"))
	if _, err := io.ReadFull(kdf, c.key[:]); err != nil {
		return nil, fmt.Errorf("derive cipher key: %w", err)
	}
	return c, nil
}

func (c *sharedCipher) Encrypt(values []uint64, nonce Nonce) ([]Ciphertext, error) {
	if len(values) == 0 {
		return nil, errors.New("nothing to encrypt")
	}
	out := make([]Ciphertext, len(values))
	for i, v := range values {
		stream, err := chacha20.NewUnauthenticatedCipher(c.key[:], nonce[:chacha20.NonceSize])
		if err != nil {
			return nil, fmt.Errorf("init cipher: %w", err)
		}
		stream.SetCounter(uint32(i) + 1)

		var block [32]byte
		binary.LittleEndian.PutUint64(block[:8], v)
		stream.XORKeyStream(out[i][:], block[:])
	}
	return out, nil
}
