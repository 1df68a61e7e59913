package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/elasticsearch"
	"executor-metrics-backend/internal/model"
)

// Seeds the metric description index from a two column CSV: path,description.
func main() {
	csvPath := flag.String("file", "metric_descriptions.csv", "CSV file with path,description rows")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	descriptions, err := readDescriptions(*csvPath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *csvPath).Msg("Failed to read descriptions")
	}

	store, err := elasticsearch.ConnectDescriptionStore(cfg.Elasticsearch)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating Elasticsearch client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := store.IndexDescriptions(ctx, descriptions); err != nil {
		log.Fatal().Err(err).Msg("Failed to index descriptions")
	}
	if err := store.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Error closing description store")
	}
	log.Info().Int("count", len(descriptions)).Str("index", cfg.Elasticsearch.DescriptionIndex).Msg("Indexed metric descriptions")
}

func readDescriptions(path string) ([]model.MetricDescription, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 2

	var out []model.MetricDescription
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("Error reading CSV row")
			continue
		}
		metricPath := strings.TrimSpace(record[0])
		if metricPath == "" || metricPath == "path" {
			continue
		}
		out = append(out, model.MetricDescription{Path: metricPath, Description: strings.TrimSpace(record[1])})
	}
	return out, nil
}
