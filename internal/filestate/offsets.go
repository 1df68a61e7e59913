package filestate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Offsets maps a history file to the byte offset after its last imported line.
type Offsets map[string]int64

// Advance records a new offset. Offsets only move forward unless the file
// was truncated, which the caller signals with reset.
func (o Offsets) Advance(file string, offset int64, reset bool) {
	if reset || offset > o[file] {
		o[file] = offset
	}
}

// Tracker persists Offsets between import runs.
type Tracker interface {
	Load() (Offsets, error)
	Save(offsets Offsets) error
	Path() string
}

type jsonTracker struct {
	path string
	mu   sync.Mutex
}

func NewTracker(path string) Tracker {
	return &jsonTracker{path: path}
}

// Load returns empty offsets when the state file is missing or empty.
func (t *jsonTracker) Load() (Offsets, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("file", t.path).Msg("No import state yet, starting from the beginning of every file")
		return Offsets{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read import state %s: %w", t.path, err)
	}
	if len(data) == 0 {
		return Offsets{}, nil
	}

	offsets := Offsets{}
	if err := json.Unmarshal(data, &offsets); err != nil {
		return nil, fmt.Errorf("decode import state %s: %w", t.path, err)
	}
	log.Debug().Str("file", t.path).Int("files_tracked", len(offsets)).Msg("Loaded import state")
	return offsets, nil
}

// Save replaces the state file through a rename.
func (t *jsonTracker) Save(offsets Offsets) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.MarshalIndent(offsets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode import state: %w", err)
	}
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write import state: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace import state: %w", err)
	}
	log.Debug().Str("file", t.path).Int("files_tracked", len(offsets)).Msg("Saved import state")
	return nil
}

func (t *jsonTracker) Path() string {
	return t.path
}
