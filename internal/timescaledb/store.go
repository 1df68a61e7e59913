package timescaledb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/util"
)

// SampleStore persists run history for the batch charts.
type SampleStore interface {
	StoreSamples(ctx context.Context, runID string, samples []model.MetricSample) error
	Close()
}

type timescaleSampleStore struct {
	pool      *pgxpool.Pool
	tableName string
}

const (
	sampleTableName = "executor_metric_samples"
	colSeq          = "seq"
	colTime         = "time"
	colRunID        = "run_id"
	colHost         = "host"
	colTimestamp    = "ts_seconds"
	// JSON rather than JSONB: JSONB reorders object keys.
	colValues = "metric_values"
)

func ProvideTimescaleDBPool(lc fx.Lifecycle, cfg *config.Config) (SampleStore, *pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.TimescaleDB.DSN)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse TimescaleDB DSN")
		return nil, nil, fmt.Errorf("invalid TimescaleDB DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Error().Err(err).Msg("Unable to create connection pool to TimescaleDB")
		return nil, nil, fmt.Errorf("failed to connect to TimescaleDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		log.Error().Err(err).Msg("Failed to ping TimescaleDB")
		return nil, nil, fmt.Errorf("failed to ping TimescaleDB: %w", err)
	}
	log.Info().Msg("TimescaleDB connection pool created and verified.")

	store := &timescaleSampleStore{
		pool:      pool,
		tableName: sampleTableName,
	}

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelSetup()
	if err := store.ensureHypertable(setupCtx); err != nil {
		pool.Close()
		log.Error().Err(err).Msg("Failed to ensure TimescaleDB hypertable exists")
		return nil, nil, fmt.Errorf("failed ensuring hypertable: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing TimescaleDB connection pool...")
			store.Close()
			return nil
		},
	})

	return store, pool, nil
}

func (s *timescaleSampleStore) ensureHypertable(ctx context.Context) error {
	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s BIGINT GENERATED ALWAYS AS IDENTITY,
			%s TIMESTAMPTZ NOT NULL,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s DOUBLE PRECISION NOT NULL,
			%s JSON NOT NULL
		);`,
		s.tableName, colSeq, colTime, colRunID, colHost, colTimestamp, colValues)

	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create base table %s: %w", s.tableName, err)
	}
	log.Info().Str("table", s.tableName).Msg("Ensured base table exists.")

	checkHyperSQL := `SELECT EXISTS (
        SELECT 1 FROM timescaledb_information.hypertables WHERE hypertable_name = $1
    );`
	var isHypertable bool
	_ = s.pool.QueryRow(ctx, checkHyperSQL, s.tableName).Scan(&isHypertable)

	if !isHypertable {
		log.Info().Str("table", s.tableName).Msg("Table is not a hypertable, attempting to create...")
		if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb;"); err != nil {
			log.Warn().Err(err).Msg("Failed to ensure timescaledb extension exists (permission issue?). Trying to proceed...")
		}

		createHyperSQL := fmt.Sprintf(
			"SELECT create_hypertable('%s', '%s', if_not_exists => TRUE, chunk_time_interval => INTERVAL '1 day');",
			s.tableName,
			colTime,
		)
		_, err := s.pool.Exec(ctx, createHyperSQL)
		if err != nil && !strings.Contains(err.Error(), "already a hypertable") {
			return fmt.Errorf("failed to create hypertable %s: %w", s.tableName, err)
		}
		log.Info().Str("table", s.tableName).Msg("Successfully ensured hypertable.")
	} else {
		log.Info().Str("table", s.tableName).Msg("Table is already a hypertable.")
	}

	indexSQL := fmt.Sprintf(`
        CREATE INDEX IF NOT EXISTS idx_%s_run_seq ON %s (%s, %s);
        CREATE INDEX IF NOT EXISTS idx_%s_run_time ON %s (%s, %s DESC);
    `, s.tableName, s.tableName, colRunID, colSeq, s.tableName, s.tableName, colRunID, colTime)
	if _, err := s.pool.Exec(ctx, indexSQL); err != nil {
		log.Warn().Err(err).Msg("Failed to create indexes on samples table (continuing)")
	} else {
		log.Info().Str("table", s.tableName).Msg("Ensured indexes exist on samples table.")
	}

	return nil
}

// StoreSamples copies samples in slice order, which becomes their arrival order.
func (s *timescaleSampleStore) StoreSamples(ctx context.Context, runID string, samples []model.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}

	columns := []string{colTime, colRunID, colHost, colTimestamp, colValues}

	source := pgx.CopyFromSlice(len(samples), func(i int) ([]interface{}, error) {
		row, err := sampleRow(runID, samples[i])
		if err != nil {
			log.Error().Err(err).Str("host", samples[i].Host).Msg("Failed to marshal sample values")
			return nil, err
		}
		return row, nil
	})

	copyCount, err := s.pool.CopyFrom(ctx, pgx.Identifier{s.tableName}, columns, source)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to bulk insert samples into TimescaleDB")
		return fmt.Errorf("timescaledb copyfrom failed: %w", err)
	}

	if int(copyCount) != len(samples) {
		log.Warn().Int64("inserted", copyCount).Int("expected", len(samples)).Msg("TimescaleDB CopyFrom sample count mismatch")
	} else {
		log.Debug().Int64("count", copyCount).Str("run_id", runID).Msg("Successfully inserted samples into TimescaleDB")
	}
	return nil
}

func sampleRow(runID string, sample model.MetricSample) ([]interface{}, error) {
	values, err := sample.Values.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return []interface{}{
		util.SecondsToTime(sample.TimestampSeconds),
		runID,
		sample.Host,
		sample.TimestampSeconds,
		values,
	}, nil
}

func (s *timescaleSampleStore) Close() {
	s.pool.Close()
}
