// Package state persists per-stream sync cursors between runs.
//
// The file holds one object keyed by stream name:
//
//	{"pages": {"last_edited_time": "2021-10-10T04:40:00.000Z"}}
package state

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/errors"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
	"github.com/shayan-nathan/airbyte/pkg/logger"
)

// Store reads and writes a state file. Saves replace the file atomically
// through a temporary file in the same directory.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: logger.With(zap.String("component", "state_store"), zap.String("path", path)),
	}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted state. A missing or empty file yields an empty
// state.
func (s *Store) Load() (core.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Debug("no state file, starting fresh")
		return core.State{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read state file")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return core.State{}, nil
	}

	var st core.State
	if err := jsonpool.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse state file").
			WithDetail("path", s.path)
	}
	if st == nil {
		st = core.State{}
	}
	s.logger.Info("state loaded", zap.Int("streams", len(st)))
	return st, nil
}

// Save writes st, replacing the previous file.
func (s *Store) Save(st core.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st == nil {
		st = core.State{}
	}
	data, err := jsonpool.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create state directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create temporary state file")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write state")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to sync state")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close state")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to replace state file")
	}

	s.logger.Debug("state saved", zap.Int("streams", len(st)))
	return nil
}

// Update merges one stream's state into the file and returns the result.
func (s *Store) Update(stream string, ss core.StreamState) (core.State, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	st[stream] = ss
	if err := s.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}
