package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"executor-metrics-backend/internal/model"
)

// FileSink appends samples as JSON lines to <dir>/<appId>/<host>.json, the
// layout the history import scans.
type FileSink struct {
	mu  sync.Mutex
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Path(appID, host string) string {
	return filepath.Join(s.dir, appID, host+".json")
}

func (s *FileSink) Publish(_ context.Context, appID string, sample model.MetricSample) error {
	line, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(appID, sample.Host)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return nil
}
