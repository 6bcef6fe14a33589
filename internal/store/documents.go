package store

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jfandino/boe-harvester/internal/metrics"
)

// fallbackCategory groups documents whose record carries no section name.
const fallbackCategory = "OTROS"

// DocumentStore writes fetched document bodies into a per-format, per-section
// file tree under its root. Paths are keyed uniquely by identifier and
// format, so concurrent writers need no coordination.
type DocumentStore struct {
	root   string
	logger *zap.Logger
}

// NewDocumentStore builds a store rooted at dir, creating it if necessary.
func NewDocumentStore(root string, logger *zap.Logger) (*DocumentStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create document root %s: %w", root, err)
	}
	return &DocumentStore{root: root, logger: logger}, nil
}

// Save writes body to <root>/<format>/<category>/<identifier>.<format>,
// creating the category subtree on demand. An existing file is overwritten;
// a re-fetch from the canonical source produces identical bytes. Returns the
// number of files written (1 on success).
func (s *DocumentStore) Save(body []byte, identifier, category, format string) (int, error) {
	if identifier == "" {
		return 0, fmt.Errorf("document identifier is required")
	}
	if category == "" {
		category = fallbackCategory
	}

	dir := filepath.Join(s.root, format, category)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create document dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", identifier, format))
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return 0, fmt.Errorf("write document %s: %w", path, err)
	}

	metrics.DocumentsSaved.Inc()
	s.logger.Debug("saved document", zap.String("path", path))
	return 1, nil
}
