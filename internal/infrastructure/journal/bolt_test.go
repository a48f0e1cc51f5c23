package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltJournal_SeenAfterRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	j, err := Open(path)
	require.NoError(t, err)

	key := "charge.completed|ch_1:successful"
	seen, err := j.Seen(key)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, j.Record(key))
	require.NoError(t, j.Record(key))

	seen, err = j.Seen(key)
	require.NoError(t, err)
	assert.True(t, seen)

	// записи переживают перезапуск
	require.NoError(t, j.Close())
	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	seen, err = j.Seen(key)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestBoltJournal_Prune(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer j.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now.Add(-48 * time.Hour) }
	require.NoError(t, j.Record("old"))
	j.now = func() time.Time { return now }
	require.NoError(t, j.Record("fresh"))

	removed, err := j.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	seen, _ := j.Seen("old")
	assert.False(t, seen)
	seen, _ = j.Seen("fresh")
	assert.True(t, seen)
}
