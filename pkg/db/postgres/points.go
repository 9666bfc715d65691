package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veilpoll/veilpoll/pkg/db"
)

// PointsStore implements db.PointsStore on Postgres. Append-only; balances are
// always a SUM over entries.
type PointsStore struct {
	client *Client
}

func NewPointsStore(client *Client) *PointsStore { return &PointsStore{client: client} }

func (s *PointsStore) Award(ctx context.Context, e *db.PointEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.client.Pool.Exec(ctx, `
		INSERT INTO point_transactions (id, wallet, amount, reason, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Wallet, e.Amount, e.Reason, e.ReferenceID, e.CreatedAt)
	return mapError(err)
}

func (s *PointsStore) Balance(ctx context.Context, wallet string) (int, error) {
	var balance int
	err := s.client.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE wallet = $1`,
		wallet).Scan(&balance)
	return balance, mapError(err)
}

func (s *PointsStore) History(ctx context.Context, wallet string, limit int) ([]*db.PointEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.client.Pool.Query(ctx, `
		SELECT id, wallet, amount, reason, reference_id, created_at
		FROM point_transactions WHERE wallet = $1
		ORDER BY created_at DESC LIMIT $2`, wallet, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*db.PointEntry
	for rows.Next() {
		var e db.PointEntry
		if err := rows.Scan(&e.ID, &e.Wallet, &e.Amount, &e.Reason, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		out = append(out, &e)
	}
	return out, mapError(rows.Err())
}
