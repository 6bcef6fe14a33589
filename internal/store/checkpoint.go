// Package store implements the durable stores backing a harvest: the resume
// checkpoint, the tabular record store, and the document file tree.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"
)

// checkpointState is the on-disk shape of the resume cursor.
type checkpointState struct {
	LastDate  int    `json:"last_date"`
	Timestamp string `json:"timestamp"`
}

// CheckpointStore persists the last fully processed publication date. The
// cursor is monotonically non-decreasing for the lifetime of a store
// directory; a save that would move it backwards is refused.
type CheckpointStore struct {
	path      string
	clk       clock.Clock
	logger    *zap.Logger
	lastSaved int
}

// NewCheckpointStore builds a store persisting to path.
func NewCheckpointStore(path string, clk clock.Clock, logger *zap.Logger) *CheckpointStore {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckpointStore{path: path, clk: clk, logger: logger}
}

// Load returns the stored cursor, or ok=false when no checkpoint exists yet.
// A malformed checkpoint is logged and treated as "start fresh", never fatal.
func (s *CheckpointStore) Load() (int, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no checkpoint found, starting from the beginning")
		} else {
			s.logger.Warn("checkpoint unreadable, starting from the beginning",
				zap.String("path", s.path), zap.Error(err))
		}
		return 0, false
	}

	var state checkpointState
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("checkpoint malformed, starting from the beginning",
			zap.String("path", s.path), zap.Error(err))
		return 0, false
	}
	if state.LastDate <= 0 {
		s.logger.Warn("checkpoint missing last_date, starting from the beginning",
			zap.String("path", s.path))
		return 0, false
	}

	s.lastSaved = state.LastDate
	s.logger.Info("loaded checkpoint", zap.Int("last_date", state.LastDate))
	return state.LastDate, true
}

// Save rewrites the checkpoint with date and a capture timestamp. The file is
// fully rewritten on every call.
func (s *CheckpointStore) Save(date int) error {
	if date < s.lastSaved {
		s.logger.Warn("refusing checkpoint regression",
			zap.Int("last_date", s.lastSaved), zap.Int("requested", date))
		return nil
	}

	state := checkpointState{
		LastDate:  date,
		Timestamp: s.clk.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	if err := os.WriteFile(s.path, payload, 0o600); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", s.path, err)
	}

	s.lastSaved = date
	s.logger.Debug("saved checkpoint", zap.Int("last_date", date))
	return nil
}
