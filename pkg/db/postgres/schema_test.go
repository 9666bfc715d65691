package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// The weekly cap lives in the insert trigger as a count query. Two concurrent
// inserts for the same (wallet, week) would each count the same committed
// rows and both pass, so the trigger must take the per-(wallet, week)
// advisory lock before counting.
func TestSelectionInsertTriggerSerializesCapCheck(t *testing.T) {
	var trigger string
	for _, stmt := range schemaStatements {
		if strings.Contains(stmt, "enforce_selection_insert") && strings.Contains(stmt, "RETURNS TRIGGER") {
			trigger = stmt
			break
		}
	}
	require.NotEmpty(t, trigger, "selection insert trigger function missing from schema")

	lock := strings.Index(trigger, "pg_advisory_xact_lock")
	count := strings.Index(trigger, "count(*)")
	require.NotEqual(t, -1, lock, "cap check must serialize on the wallet-week advisory lock")
	require.NotEqual(t, -1, count)
	require.Less(t, lock, count, "lock must be held before the cap count runs")
}
