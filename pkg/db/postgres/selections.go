package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veilpoll/veilpoll/pkg/db"
)

// SelectionStore implements db.SelectionStore on Postgres. The insert/delete
// triggers keep polls.selection_count consistent and enforce the weekly cap.
type SelectionStore struct {
	client *Client
}

func NewSelectionStore(client *Client) *SelectionStore { return &SelectionStore{client: client} }

func (s *SelectionStore) Insert(ctx context.Context, sel *db.Selection) error {
	if sel.ID == "" {
		sel.ID = uuid.NewString()
	}
	if sel.CreatedAt.IsZero() {
		sel.CreatedAt = time.Now().UTC()
	}
	_, err := s.client.Pool.Exec(ctx, `
		INSERT INTO selections (id, poll_id, wallet, week_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sel.ID, sel.PollID, sel.Wallet, sel.WeekID, sel.CreatedAt)
	return mapError(err)
}

func (s *SelectionStore) Get(ctx context.Context, id string) (*db.Selection, error) {
	var sel db.Selection
	err := s.client.Pool.QueryRow(ctx, `
		SELECT id, poll_id, wallet, week_id, created_at FROM selections WHERE id = $1`, id).
		Scan(&sel.ID, &sel.PollID, &sel.Wallet, &sel.WeekID, &sel.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &sel, nil
}

func (s *SelectionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.client.Pool.Exec(ctx, `DELETE FROM selections WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *SelectionStore) CountForWallet(ctx context.Context, wallet string, weekID int) (int, error) {
	var count int
	err := s.client.Pool.QueryRow(ctx, `
		SELECT count(*) FROM selections WHERE wallet = $1 AND week_id = $2`,
		wallet, weekID).Scan(&count)
	return count, mapError(err)
}

func (s *SelectionStore) ListForWallet(ctx context.Context, wallet string, weekID int) ([]*db.Selection, error) {
	rows, err := s.client.Pool.Query(ctx, `
		SELECT id, poll_id, wallet, week_id, created_at
		FROM selections WHERE wallet = $1 AND week_id = $2
		ORDER BY created_at DESC`, wallet, weekID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*db.Selection
	for rows.Next() {
		var sel db.Selection
		if err := rows.Scan(&sel.ID, &sel.PollID, &sel.Wallet, &sel.WeekID, &sel.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		out = append(out, &sel)
	}
	return out, mapError(rows.Err())
}

func (s *SelectionStore) Exists(ctx context.Context, pollID, wallet string, weekID int) (bool, error) {
	var exists bool
	err := s.client.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM selections WHERE poll_id = $1 AND wallet = $2 AND week_id = $3)`,
		pollID, wallet, weekID).Scan(&exists)
	return exists, mapError(err)
}

func (s *SelectionStore) DeleteForPolls(ctx context.Context, pollIDs []string) error {
	if len(pollIDs) == 0 {
		return nil
	}
	_, err := s.client.Pool.Exec(ctx, `DELETE FROM selections WHERE poll_id = ANY($1)`, pollIDs)
	return mapError(err)
}
