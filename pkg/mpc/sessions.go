package mpc

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// SessionManager keeps one live encryption session per wallet. Activating a
// wallet that already has a session tears the old one down first; there is no
// persistence across reconnects.
type SessionManager struct {
	fetcher  NetworkKeyFetcher
	logger   *zap.Logger
	sessions *xsync.Map[string, *Session]
}

func NewSessionManager(fetcher NetworkKeyFetcher, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		fetcher:  fetcher,
		logger:   logger,
		sessions: xsync.NewMap[string, *Session](),
	}
}

// Activate establishes a fresh session for the wallet.
func (m *SessionManager) Activate(ctx context.Context, wallet string) (*Session, error) {
	s, err := NewSession(ctx, m.fetcher, wallet, m.logger)
	if err != nil {
		return nil, err
	}
	if prev, ok := m.sessions.LoadAndStore(wallet, s); ok {
		prev.Close()
	}
	return s, nil
}

// Get returns the wallet's live session, if any.
func (m *SessionManager) Get(wallet string) (*Session, bool) {
	return m.sessions.Load(wallet)
}

// Deactivate tears the wallet's session down.
func (m *SessionManager) Deactivate(wallet string) {
	if s, ok := m.sessions.LoadAndDelete(wallet); ok {
		s.Close()
	}
}
