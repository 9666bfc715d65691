package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/ledger"
)

// PollStore implements db.PollStore on Postgres.
type PollStore struct {
	client *Client
}

func NewPollStore(client *Client) *PollStore { return &PollStore{client: client} }

const pollColumns = `id, ledger_id, creator_wallet, question, options, status, section,
	week_id, selection_count, deadline, promoted_at, revealed_at, archived_at,
	vote_counts, winner, reveal_tx_ref, tally_initialized, created_at`

func scanPoll(row pgx.Row) (*db.Poll, error) {
	var p db.Poll
	var ledgerID *int64
	var txRef *string
	err := row.Scan(&p.ID, &ledgerID, &p.Creator, &p.Question, &p.Options, &p.Status,
		&p.Section, &p.WeekID, &p.SelectionCount, &p.Deadline, &p.PromotedAt,
		&p.RevealedAt, &p.ArchivedAt, &p.VoteCounts, &p.Winner, &txRef,
		&p.TallyInitialized, &p.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if ledgerID != nil {
		v := uint32(*ledgerID)
		p.LedgerID = &v
	}
	p.RevealTxRef = txRef
	return &p, nil
}

func (s *PollStore) CreateProposal(ctx context.Context, p *db.Poll) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Status = db.StatusNomination
	p.Section = db.StatusNomination

	_, err := s.client.Pool.Exec(ctx, `
		INSERT INTO polls (id, creator_wallet, question, options, status, section, week_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Creator, p.Question, p.Options, p.Status, p.Section, p.WeekID, p.CreatedAt)
	return mapError(err)
}

func (s *PollStore) Get(ctx context.Context, id string) (*db.Poll, error) {
	row := s.client.Pool.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id)
	return scanPoll(row)
}

func (s *PollStore) GetByLedgerID(ctx context.Context, ledgerID uint32) (*db.Poll, error) {
	row := s.client.Pool.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE ledger_id = $1`, int64(ledgerID))
	return scanPoll(row)
}

func (s *PollStore) List(ctx context.Context, q db.PollQuery) ([]*db.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE 1=1`
	args := []any{}
	if q.Section != "" {
		args = append(args, q.Section)
		query += fmt.Sprintf(" AND section = $%d", len(args))
	}
	if q.Creator != "" {
		args = append(args, q.Creator)
		query += fmt.Sprintf(" AND creator_wallet = $%d", len(args))
	}
	if q.WeekID != 0 {
		args = append(args, q.WeekID)
		query += fmt.Sprintf(" AND week_id = $%d", len(args))
	}
	if q.SortBySelections {
		query += " ORDER BY selection_count DESC, created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return s.queryPolls(ctx, query, args...)
}

func (s *PollStore) TopNominations(ctx context.Context, weekID int, limit int) ([]*db.Poll, error) {
	return s.queryPolls(ctx, `
		SELECT `+pollColumns+` FROM polls
		WHERE status = 'nomination' AND section = 'nomination' AND week_id = $1
		ORDER BY selection_count DESC, created_at ASC, id ASC
		LIMIT $2`, weekID, limit)
}

func (s *PollStore) StaleNominations(ctx context.Context, cutoff time.Time) ([]*db.Poll, error) {
	return s.queryPolls(ctx, `
		SELECT `+pollColumns+` FROM polls
		WHERE status = 'nomination' AND section = 'nomination' AND created_at < $1
		ORDER BY created_at ASC`, cutoff)
}

func (s *PollStore) DueForReveal(ctx context.Context, now time.Time) ([]*db.Poll, error) {
	return s.queryPolls(ctx, `
		SELECT `+pollColumns+` FROM polls
		WHERE status = 'voting' AND deadline < $1 AND revealed_at IS NULL
		ORDER BY deadline ASC`, now)
}

func (s *PollStore) NextLedgerID(ctx context.Context) (uint32, error) {
	var next int64
	err := s.client.Pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(ledger_id), -1) + 1 FROM polls`).Scan(&next)
	if err != nil {
		return 0, mapError(err)
	}
	return uint32(next), nil
}

func (s *PollStore) MarkPromoted(ctx context.Context, id string, ledgerID uint32, deadline, promotedAt time.Time) error {
	tag, err := s.client.Pool.Exec(ctx, `
		UPDATE polls
		SET status = 'voting', section = 'voting', ledger_id = $2, deadline = $3, promoted_at = $4
		WHERE id = $1 AND status = 'nomination' AND promoted_at IS NULL`,
		id, int64(ledgerID), deadline, promotedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *PollStore) SetTallyInitialized(ctx context.Context, id string) error {
	_, err := s.client.Pool.Exec(ctx,
		`UPDATE polls SET tally_initialized = true WHERE id = $1`, id)
	return mapError(err)
}

func (s *PollStore) MarkRevealed(ctx context.Context, id string, counts []int64, winner int, txRef ledger.TxRef, revealedAt time.Time) error {
	tag, err := s.client.Pool.Exec(ctx, `
		UPDATE polls
		SET status = 'completed', section = 'completed', vote_counts = $2,
			winner = $3, reveal_tx_ref = $4, revealed_at = $5
		WHERE id = $1 AND revealed_at IS NULL`,
		id, counts, winner, string(txRef), revealedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *PollStore) MarkArchived(ctx context.Context, ids []string, archivedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.client.Pool.Exec(ctx, `
		UPDATE polls
		SET status = 'archived', section = 'archived', archived_at = $2
		WHERE id = ANY($1) AND status = 'nomination'`,
		ids, archivedAt)
	return mapError(err)
}

func (s *PollStore) queryPolls(ctx context.Context, query string, args ...any) ([]*db.Poll, error) {
	rows, err := s.client.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*db.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapError(rows.Err())
}
