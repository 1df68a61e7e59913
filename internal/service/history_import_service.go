package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/filestate"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/parser"
	"executor-metrics-backend/internal/timescaledb"
)

// HistoryImportService moves JSON-lines run history into the sample store.
type HistoryImportService interface {
	ImportHistory(ctx context.Context) error
}

type historyImportService struct {
	cfg         *config.HistoryConfig
	tracker     filestate.Tracker
	parser      parser.SampleParser
	store       timescaledb.SampleStore
	processLock sync.Mutex
}

func NewHistoryImportService(
	cfg *config.Config,
	tracker filestate.Tracker,
	parser parser.SampleParser,
	store timescaledb.SampleStore,
) HistoryImportService {
	return &historyImportService{
		cfg:     &cfg.History,
		tracker: tracker,
		parser:  parser,
		store:   store,
	}
}

// ImportHistory reads every history file from its stored offset. The offset
// only moves past lines whose samples were stored, so failures retry next cycle.
func (s *historyImportService) ImportHistory(ctx context.Context) error {
	if !s.processLock.TryLock() {
		log.Warn().Msg("History import already in progress, skipping run.")
		return nil
	}
	defer s.processLock.Unlock()

	log.Info().Msg("Starting history import cycle...")
	startTime := time.Now()

	offsets, err := s.tracker.Load()
	if err != nil {
		return fmt.Errorf("failed to load import state: %w", err)
	}

	files, err := s.findHistoryFiles()
	if err != nil {
		log.Error().Err(err).Msg("Failed to find history files")
		return fmt.Errorf("failed to find history files: %w", err)
	}
	log.Debug().Int("file_count", len(files)).Msg("Found history files to import")

	var totalLines, totalStored, totalSkipped int
	for _, filePath := range files {
		if ctx.Err() != nil {
			break
		}
		res, err := s.importFile(ctx, filePath, offsets[filePath])
		offsets.Advance(filePath, res.offset, res.reset)
		if err != nil {
			log.Error().Err(err).Str("file", filePath).Msg("Failed to import history file")
			continue
		}
		totalLines += res.lines
		totalStored += res.stored
		totalSkipped += res.skipped
	}

	if err := s.tracker.Save(offsets); err != nil {
		log.Error().Err(err).Msg("Failed to save import state")
		return fmt.Errorf("failed to save import state: %w", err)
	}

	log.Info().
		Int("lines_read", totalLines).
		Int("samples_stored", totalStored).
		Int("lines_skipped", totalSkipped).
		Int("files_processed", len(files)).
		Dur("duration", time.Since(startTime)).
		Msg("Finished history import cycle.")
	return ctx.Err()
}

func (s *historyImportService) findHistoryFiles() ([]string, error) {
	var files []string
	runDirs, err := os.ReadDir(s.cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}
	for _, runDir := range runDirs {
		if !runDir.IsDir() || !strings.HasPrefix(runDir.Name(), "app") {
			continue
		}
		runDirPath := filepath.Join(s.cfg.Directory, runDir.Name())
		entries, err := os.ReadDir(runDirPath)
		if err != nil {
			log.Warn().Err(err).Str("dir", runDirPath).Msg("Failed to read run directory")
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
				files = append(files, filepath.Join(runDirPath, entry.Name()))
			}
		}
	}
	return files, nil
}

type importResult struct {
	offset  int64
	reset   bool
	lines   int
	stored  int
	skipped int
}

// importFile consumes complete lines only. A trailing line without a newline
// is still being written and is left for the next cycle.
func (s *historyImportService) importFile(ctx context.Context, filePath string, lastOffset int64) (importResult, error) {
	res := importResult{offset: lastOffset}

	file, err := os.Open(filePath)
	if err != nil {
		return res, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return res, fmt.Errorf("failed to stat file %s: %w", filePath, err)
	}
	if info.Size() < lastOffset {
		log.Warn().Str("file", filePath).Int64("last_offset", lastOffset).Int64("current_size", info.Size()).Msg("History file truncated or rotated? Resetting offset.")
		lastOffset = 0
		res.offset = 0
		res.reset = true
	}
	if _, err := file.Seek(lastOffset, io.SeekStart); err != nil {
		return res, fmt.Errorf("failed to seek file %s to offset %d: %w", filePath, lastOffset, err)
	}

	runID := parser.ExtractRunID(filePath)
	reader := bufio.NewReaderSize(file, 64*1024)
	offset := lastOffset
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	batch := make([]model.MetricSample, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.store.StoreSamples(ctx, runID, batch); err != nil {
			return fmt.Errorf("failed to store samples of %s: %w", runID, err)
		}
		res.stored += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("error reading file %s: %w", filePath, err)
		}
		offset += int64(len(line))
		res.lines++

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		sample, perr := s.parser.Parse(line)
		if perr != nil {
			res.skipped++
			log.Warn().Err(perr).Str("file", filePath).Int64("offset", offset-int64(len(line))).Msg("Skipping malformed history line")
			continue
		}
		batch = append(batch, *sample)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return res, err
			}
			res.offset = offset
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	res.offset = offset

	log.Debug().Str("file", filePath).Str("run_id", runID).Int("lines_read", res.lines).Int("samples_stored", res.stored).Msg("Finished importing file")
	return res, nil
}
