package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"executor-metrics-backend/internal/model"
)

// ErrMalformedSample marks a history line that cannot become a MetricSample.
var ErrMalformedSample = errors.New("malformed sample")

const unknownRun = "unknown_run"

type SampleParser interface {
	Parse(line []byte) (*model.MetricSample, error)
}

type jsonSampleParser struct{}

func NewJSONSampleParser() SampleParser {
	return &jsonSampleParser{}
}

func (p *jsonSampleParser) Parse(line []byte) (*model.MetricSample, error) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedSample)
	}

	var sample model.MetricSample
	if err := json.Unmarshal([]byte(trimmed), &sample); err != nil {
		log.Debug().Str("line", trimmed).Msg("History line did not decode as a sample")
		return nil, fmt.Errorf("%w: %v", ErrMalformedSample, err)
	}
	if sample.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrMalformedSample)
	}
	if sample.TimestampSeconds <= 0 {
		return nil, fmt.Errorf("%w: missing or non-positive timestamp", ErrMalformedSample)
	}
	return &sample, nil
}

// ExtractRunID returns the run directory a history file lives in
// (e.g. app-20240101-0001), or "unknown_run" for any other layout.
func ExtractRunID(filePath string) string {
	baseDir := filepath.Base(filepath.Dir(filePath))
	if strings.HasPrefix(baseDir, "app") {
		return baseDir
	}
	return unknownRun
}
