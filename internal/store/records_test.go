package store_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jfandino/boe-harvester/internal/boe"
	"github.com/jfandino/boe-harvester/internal/store"
)

func record(date int, id string) boe.ItemRecord {
	return boe.ItemRecord{
		PublicationDate: date,
		Identifier:      id,
		Title:           "act " + id,
		SectionName:     "I. Disposiciones generales",
	}
}

func TestOpenRecordStoreCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boe_data.csv")
	_, err := store.OpenRecordStore(path, zap.NewNop())
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, boe.Schema(), rows[0])
}

func TestAppendAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boe_data.csv")
	s, err := store.OpenRecordStore(path, zap.NewNop())
	require.NoError(t, err)

	saved := s.Append([]boe.ItemRecord{
		record(20240102, "BOE-A-2024-1"),
		record(20240102, "BOE-A-2024-2"),
		record(20240104, "BOE-A-2024-3"),
	})
	assert.Equal(t, 3, saved)

	t.Run("InRange", func(t *testing.T) {
		rows, ok := s.RecordsForDate(20240102)
		require.True(t, ok)
		require.Len(t, rows, 2)
		assert.Equal(t, "BOE-A-2024-1", rows[0].Identifier)
	})

	t.Run("InRangeButEmpty", func(t *testing.T) {
		// 20240103 sits between min and max: the day was covered by a
		// previous run and simply had nothing, so it is not refetched.
		rows, ok := s.RecordsForDate(20240103)
		assert.True(t, ok)
		assert.Empty(t, rows)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		_, ok := s.RecordsForDate(20240101)
		assert.False(t, ok)
		_, ok = s.RecordsForDate(20240105)
		assert.False(t, ok)
	})
}

func TestRecordsForDateOnEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boe_data.csv")
	s, err := store.OpenRecordStore(path, zap.NewNop())
	require.NoError(t, err)

	_, ok := s.RecordsForDate(20240101)
	assert.False(t, ok)
}

func TestAppendEmptyAndInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boe_data.csv")
	s, err := store.OpenRecordStore(path, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 0, s.Append(nil))
	assert.Equal(t, 0, s.Append([]boe.ItemRecord{}))
	assert.Equal(t, 0, s.Append([]boe.ItemRecord{{PublicationDate: 20240101, Title: "no identifier"}}))

	_, ok := s.RecordsForDate(20240101)
	assert.False(t, ok)
}

func TestReopenReloadsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boe_data.csv")
	s, err := store.OpenRecordStore(path, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 1, s.Append([]boe.ItemRecord{record(20240110, "BOE-A-2024-10")}))

	reopened, err := store.OpenRecordStore(path, zap.NewNop())
	require.NoError(t, err)

	rows, ok := reopened.RecordsForDate(20240110)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "BOE-A-2024-10", rows[0].Identifier)
	assert.Equal(t, "act BOE-A-2024-10", rows[0].Title)
}

// An existing file's header stays authoritative: columns it does not name
// are dropped on append, and the header itself is never extended.
func TestExistingHeaderIsAuthoritative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boe_data.csv")
	legacyHeader := "fecha_publicacion,identificador,titulo\n"
	require.NoError(t, os.WriteFile(path, []byte(legacyHeader), 0o600))

	s, err := store.OpenRecordStore(path, zap.NewNop())
	require.NoError(t, err)

	full := record(20240201, "BOE-A-2024-20")
	full.PDFURL = "https://example.org/20.pdf"
	require.Equal(t, 1, s.Append([]boe.ItemRecord{full}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.TrimSpace(legacyHeader), lines[0])
	assert.Equal(t, "20240201,BOE-A-2024-20,act BOE-A-2024-20", lines[1])
}

func TestLoadSkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boe_data.csv")
	content := "fecha_publicacion,identificador,titulo\n" +
		"20240101,BOE-A-2024-1,ok\n" +
		"20240102,short\n" +
		"20240103,,missing identifier\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := store.OpenRecordStore(path, zap.NewNop())
	require.NoError(t, err)

	rows, ok := s.RecordsForDate(20240101)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "BOE-A-2024-1", rows[0].Identifier)
}
