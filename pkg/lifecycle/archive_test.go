package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilpoll/veilpoll/pkg/db"
)

func TestArchiveStaleNominations(t *testing.T) {
	polls := newStubPolls()
	polls.stale = []*db.Poll{
		{ID: "old-1", Status: db.StatusNomination},
		{ID: "old-2", Status: db.StatusNomination},
	}
	tc := testContext(t, polls, &stubInitializer{}, nil, nil)
	sels := tc.Selections.(*stubSelections)

	out, err := tc.ArchiveStaleNominations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, out.Archived)
	assert.ElementsMatch(t, []string{"old-1", "old-2"}, polls.archivedIDs)
	assert.ElementsMatch(t, []string{"old-1", "old-2"}, sels.deletedFor)
	assert.WithinDuration(t, time.Now().Add(-StaleAfter), out.Cutoff, time.Minute)
}

func TestArchiveNothingStale(t *testing.T) {
	tc := testContext(t, newStubPolls(), &stubInitializer{}, nil, nil)

	out, err := tc.ArchiveStaleNominations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Archived)
}

func TestArchiveSurvivesSelectionCleanupFailure(t *testing.T) {
	polls := newStubPolls()
	polls.stale = []*db.Poll{{ID: "old-1", Status: db.StatusNomination}}
	tc := testContext(t, polls, &stubInitializer{}, nil, nil)
	tc.Selections = &stubSelections{deleteErr: assert.AnError}

	out, err := tc.ArchiveStaleNominations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Archived)
}
