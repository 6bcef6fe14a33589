package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jfandino/boe-harvester/internal/store"
)

func TestCheckpointLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.json")
	s := store.NewCheckpointStore(path, nil, zap.NewNop())

	_, ok := s.Load()
	assert.False(t, ok)
}

func TestCheckpointSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.json")
	captured := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(captured)

	s := store.NewCheckpointStore(path, clk, zap.NewNop())
	require.NoError(t, s.Save(20240315))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"last_date": 20240315`)
	assert.Contains(t, string(raw), `"timestamp": "2024-03-15T12:00:00Z"`)

	reopened := store.NewCheckpointStore(path, clk, zap.NewNop())
	date, ok := reopened.Load()
	require.True(t, ok)
	assert.Equal(t, 20240315, date)
}

func TestCheckpointLoadMalformed(t *testing.T) {
	dir := t.TempDir()

	t.Run("NotJSON", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o600))

		_, ok := store.NewCheckpointStore(path, nil, zap.NewNop()).Load()
		assert.False(t, ok)
	})

	t.Run("MissingLastDate", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"timestamp":"2024-01-01T00:00:00Z"}`), 0o600))

		_, ok := store.NewCheckpointStore(path, nil, zap.NewNop()).Load()
		assert.False(t, ok)
	})

	t.Run("NonNumericLastDate", func(t *testing.T) {
		path := filepath.Join(dir, "text.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"last_date":"soon"}`), 0o600))

		_, ok := store.NewCheckpointStore(path, nil, zap.NewNop()).Load()
		assert.False(t, ok)
	})
}

func TestCheckpointRefusesRegression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.json")
	s := store.NewCheckpointStore(path, nil, zap.NewNop())

	require.NoError(t, s.Save(20240310))
	require.NoError(t, s.Save(20240301)) // ignored

	date, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, 20240310, date)
}

func TestCheckpointCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "resume.json")
	s := store.NewCheckpointStore(path, nil, zap.NewNop())

	require.NoError(t, s.Save(20240101))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
