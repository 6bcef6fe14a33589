package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jfandino/boe-harvester/internal/boe"
	"github.com/jfandino/boe-harvester/internal/metrics"
)

// RecordStore is the append-only CSV store of item records. Rows are never
// rewritten or deleted. An in-memory index of the file is kept so the engine
// can ask whether a day was already harvested without re-reading the file;
// the index is mutated only by the orchestrating goroutine.
type RecordStore struct {
	path    string
	logger  *zap.Logger
	header  []string
	byDate  map[int][]boe.ItemRecord
	minDate int
	maxDate int
}

// OpenRecordStore opens or creates the CSV file at path. A new file is
// seeded with the canonical schema header; an existing file's header is
// authoritative from then on and is never extended.
func OpenRecordStore(path string, logger *zap.Logger) (*RecordStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RecordStore{
		path:   path,
		logger: logger,
		byDate: make(map[int][]boe.ItemRecord),
	}
	if err := s.ensureFile(); err != nil {
		return nil, err
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordsForDate reports the stored rows for one publication date. ok=false
// means the date falls outside the stored min/max range and has not been
// harvested yet; ok=true with an empty slice means the day was harvested and
// produced nothing.
func (s *RecordStore) RecordsForDate(date int) ([]boe.ItemRecord, bool) {
	if s.minDate == 0 || date < s.minDate || date > s.maxDate {
		return nil, false
	}
	return s.byDate[date], true
}

// Append writes records to the CSV file and returns the number saved.
// Invalid records (no identifier) are skipped, columns absent from the file
// header are silently dropped, and I/O failures are logged and reported as
// zero saved so the crawl continues.
func (s *RecordStore) Append(records []boe.ItemRecord) int {
	valid := make([]boe.ItemRecord, 0, len(records))
	for _, r := range records {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return 0
	}

	if err := s.appendRows(valid); err != nil {
		s.logger.Error("failed to append records", zap.Error(err))
		return 0
	}

	for _, r := range valid {
		s.index(r)
	}
	metrics.RecordsAppended.Add(float64(len(valid)))
	s.logger.Info("saved records", zap.Int("count", len(valid)))
	return len(valid)
}

func (s *RecordStore) appendRows(records []boe.ItemRecord) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	for _, r := range records {
		cols := r.Columns()
		row := make([]string, len(s.header))
		for i, name := range s.header {
			row[i] = cols[name]
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return f.Close()
}

func (s *RecordStore) ensureFile() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(boe.Schema()); err != nil {
		f.Close() //nolint:errcheck,gosec
		return fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close() //nolint:errcheck,gosec
		return fmt.Errorf("flush header: %w", err)
	}
	s.logger.Info("created record store", zap.String("path", s.path))
	return f.Close()
}

func (s *RecordStore) loadAll() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", s.path, err)
	}
	s.header = header

	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		if len(row) != len(header) {
			s.logger.Warn("skipping malformed row", zap.Int("fields", len(row)))
			continue
		}
		cols := make(map[string]string, len(header))
		for i, name := range header {
			cols[name] = row[i]
		}
		record := boe.FromColumns(cols)
		if !record.Valid() {
			continue
		}
		s.index(record)
	}
	return nil
}

func (s *RecordStore) index(r boe.ItemRecord) {
	s.byDate[r.PublicationDate] = append(s.byDate[r.PublicationDate], r)
	if s.minDate == 0 || r.PublicationDate < s.minDate {
		s.minDate = r.PublicationDate
	}
	if r.PublicationDate > s.maxDate {
		s.maxDate = r.PublicationDate
	}
}
