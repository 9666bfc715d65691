package postgres

import (
	"context"
	"fmt"
)

// InitSchema creates tables, indexes, and the triggers that enforce the
// invariants the application layer can only check advisorily:
//   - selections maintain polls.selection_count on insert/delete, so the
//     denormalized counter never drifts under concurrent select/deselect;
//   - the same trigger enforces the weekly per-wallet cap at the row level,
//     closing the check-then-insert window;
//   - vote_records carry the unique (poll_id, wallet) constraint that is the
//     real one-vote-per-wallet gate.
func (c *Client) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := c.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS polls (
		id UUID PRIMARY KEY,
		ledger_id BIGINT UNIQUE,
		creator_wallet TEXT NOT NULL,
		question TEXT NOT NULL,
		options TEXT[] NOT NULL,
		status TEXT NOT NULL DEFAULT 'nomination',
		section TEXT NOT NULL DEFAULT 'nomination',
		week_id INT NOT NULL,
		selection_count INT NOT NULL DEFAULT 0,
		deadline TIMESTAMP WITH TIME ZONE,
		promoted_at TIMESTAMP WITH TIME ZONE,
		revealed_at TIMESTAMP WITH TIME ZONE,
		archived_at TIMESTAMP WITH TIME ZONE,
		vote_counts BIGINT[],
		winner INT,
		reveal_tx_ref TEXT,
		tally_initialized BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_section_week ON polls(section, week_id)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_status_deadline ON polls(status, deadline)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_creator ON polls(creator_wallet)`,

	`CREATE TABLE IF NOT EXISTS selections (
		id UUID PRIMARY KEY,
		poll_id UUID NOT NULL REFERENCES polls(id),
		wallet TEXT NOT NULL,
		week_id INT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		UNIQUE (poll_id, wallet, week_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_selections_wallet_week ON selections(wallet, week_id)`,

	`CREATE TABLE IF NOT EXISTS vote_records (
		id UUID PRIMARY KEY,
		poll_id UUID NOT NULL REFERENCES polls(id),
		wallet TEXT NOT NULL,
		tx_ref TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		UNIQUE (poll_id, wallet)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vote_records_wallet ON vote_records(wallet)`,

	`CREATE TABLE IF NOT EXISTS point_transactions (
		id UUID PRIMARY KEY,
		wallet TEXT NOT NULL,
		amount INT NOT NULL,
		reason TEXT NOT NULL,
		reference_id TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_point_transactions_wallet ON point_transactions(wallet)`,

	// The cap check is a count, so concurrent inserts for the same
	// (wallet, week) must be serialized: under READ COMMITTED neither
	// transaction sees the other's uncommitted row and both would pass at 4.
	// The advisory xact lock holds until commit.
	`CREATE OR REPLACE FUNCTION enforce_selection_insert() RETURNS TRIGGER AS $$
	BEGIN
		PERFORM pg_advisory_xact_lock(hashtext(NEW.wallet || ':' || NEW.week_id::text));
		IF (SELECT count(*) FROM selections
			WHERE wallet = NEW.wallet AND week_id = NEW.week_id) >= 5 THEN
			RAISE EXCEPTION 'selection limit reached';
		END IF;
		UPDATE polls SET selection_count = selection_count + 1 WHERE id = NEW.poll_id;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,

	`CREATE OR REPLACE FUNCTION enforce_selection_delete() RETURNS TRIGGER AS $$
	BEGIN
		UPDATE polls SET selection_count = selection_count - 1 WHERE id = OLD.poll_id;
		RETURN OLD;
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS trg_selection_insert ON selections`,
	`CREATE TRIGGER trg_selection_insert BEFORE INSERT ON selections
		FOR EACH ROW EXECUTE FUNCTION enforce_selection_insert()`,

	`DROP TRIGGER IF EXISTS trg_selection_delete ON selections`,
	`CREATE TRIGGER trg_selection_delete AFTER DELETE ON selections
		FOR EACH ROW EXECUTE FUNCTION enforce_selection_delete()`,
}
