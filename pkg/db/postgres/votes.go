package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/ledger"
)

// VoteStore implements db.VoteStore on Postgres. The (poll_id, wallet) unique
// constraint is the real one-vote-per-wallet mutex.
type VoteStore struct {
	client *Client
}

func NewVoteStore(client *Client) *VoteStore { return &VoteStore{client: client} }

func (s *VoteStore) Record(ctx context.Context, r *db.VoteRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.client.Pool.Exec(ctx, `
		INSERT INTO vote_records (id, poll_id, wallet, tx_ref, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.PollID, r.Wallet, string(r.TxRef), r.CreatedAt)
	return mapError(err)
}

func (s *VoteStore) HasVoted(ctx context.Context, pollID, wallet string) (bool, error) {
	var exists bool
	err := s.client.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM vote_records WHERE poll_id = $1 AND wallet = $2)`,
		pollID, wallet).Scan(&exists)
	return exists, mapError(err)
}

func (s *VoteStore) HistoryForWallet(ctx context.Context, wallet string) ([]*db.VoteRecord, error) {
	rows, err := s.client.Pool.Query(ctx, `
		SELECT id, poll_id, wallet, tx_ref, created_at
		FROM vote_records WHERE wallet = $1
		ORDER BY created_at DESC`, wallet)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*db.VoteRecord
	for rows.Next() {
		var r db.VoteRecord
		var txRef string
		if err := rows.Scan(&r.ID, &r.PollID, &r.Wallet, &txRef, &r.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		r.TxRef = ledger.TxRef(txRef)
		out = append(out, &r)
	}
	return out, mapError(rows.Err())
}
