package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Record("a.jpg", "completed", 0))
	require.NoError(t, l.Record("b.jpg", "failed", 404))
	require.NoError(t, l.Record("c.jpg.partial", "failed", 0))

	outcomes, err := l.Outcomes()
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, "a.jpg", outcomes[0].Subject)
	assert.Equal(t, "completed", outcomes[0].Outcome)
	assert.Zero(t, outcomes[0].HTTPStatus)
	assert.False(t, outcomes[0].RecordedAt.IsZero())

	assert.Equal(t, "b.jpg", outcomes[1].Subject)
	assert.Equal(t, "failed", outcomes[1].Outcome)
	assert.Equal(t, 404, outcomes[1].HTTPStatus)

	assert.Equal(t, "c.jpg.partial", outcomes[2].Subject)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "ledger.db")

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Record("a.jpg", "completed", 0))
}

func TestReopenSeesEarlierRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record("a.jpg", "completed", 0))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()

	outcomes, err := l.Outcomes()
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "a.jpg", outcomes[0].Subject)
}

func TestEmptyLedgerHasNoOutcomes(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	outcomes, err := l.Outcomes()
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}
