package timescaledb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"executor-metrics-backend/internal/dto"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/repository"
)

type timescaleSampleRepository struct {
	pool        *pgxpool.Pool
	sampleTable string
}

func NewTimescaleSampleRepository(pool *pgxpool.Pool) (repository.SampleRepository, error) {
	if pool == nil {
		return nil, errors.New("TimescaleDB connection pool is required for SampleRepository")
	}
	return &timescaleSampleRepository{
		pool:        pool,
		sampleTable: sampleTableName,
	}, nil
}

func buildSampleQuery(table string, q dto.SampleQuery) (string, []interface{}) {
	whereClauses := []string{fmt.Sprintf("%s = $1", colRunID)}
	args := []interface{}{q.RunID}
	argCounter := 2

	if !q.Range.Start.IsZero() {
		whereClauses = append(whereClauses, fmt.Sprintf("%s >= $%d", colTime, argCounter))
		args = append(args, q.Range.Start)
		argCounter++
	}
	if !q.Range.End.IsZero() {
		whereClauses = append(whereClauses, fmt.Sprintf("%s < $%d", colTime, argCounter))
		args = append(args, q.Range.End)
		argCounter++
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(fmt.Sprintf("SELECT %s, %s, %s FROM %s WHERE %s ORDER BY %s ASC",
		colHost, colTimestamp, colValues, table, strings.Join(whereClauses, " AND "), colSeq))
	if q.Limit > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCounter))
		args = append(args, q.Limit)
	}
	return queryBuilder.String(), args
}

// ListSamples returns samples in arrival order. Rows whose stored values no
// longer decode are skipped with a warning.
func (r *timescaleSampleRepository) ListSamples(ctx context.Context, query dto.SampleQuery) ([]model.MetricSample, error) {
	querySQL, args := buildSampleQuery(r.sampleTable, query)
	log.Debug().Str("query", querySQL).Interface("args", args).Msg("Executing TimescaleDB sample query")

	rows, err := r.pool.Query(ctx, querySQL, args...)
	if err != nil {
		log.Error().Err(err).Str("query", querySQL).Msg("Failed to execute sample query")
		return nil, fmt.Errorf("sample query failed: %w", err)
	}
	defer rows.Close()

	samples := make([]model.MetricSample, 0)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			log.Warn().Err(err).Str("run_id", query.RunID).Msg("Skipping undecodable stored sample")
			continue
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error iterating sample rows")
		return nil, fmt.Errorf("failed iterating sample results: %w", err)
	}
	return samples, nil
}

func (r *timescaleSampleRepository) FirstSample(ctx context.Context, runID string) (*model.MetricSample, error) {
	querySQL, args := buildSampleQuery(r.sampleTable, dto.SampleQuery{RunID: runID, Limit: 1})
	sample, err := scanSample(r.pool.QueryRow(ctx, querySQL, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first sample query failed: %w", err)
	}
	return &sample, nil
}

func (r *timescaleSampleRepository) ListRuns(ctx context.Context) ([]string, error) {
	querySQL := fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY %s", colRunID, r.sampleTable, colRunID)
	rows, err := r.pool.Query(ctx, querySQL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query distinct runs")
		return nil, fmt.Errorf("failed getting runs: %w", err)
	}
	defer rows.Close()

	runs := make([]string, 0)
	for rows.Next() {
		var run string
		if err := rows.Scan(&run); err != nil {
			log.Error().Err(err).Msg("Failed to scan run row")
			continue
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating run results: %w", err)
	}
	return runs, nil
}

func scanSample(row pgx.Row) (model.MetricSample, error) {
	var sample model.MetricSample
	var raw []byte
	if err := row.Scan(&sample.Host, &sample.TimestampSeconds, &raw); err != nil {
		return model.MetricSample{}, err
	}
	values, err := model.ParseMetricValue(raw)
	if err != nil {
		return model.MetricSample{}, err
	}
	sample.Values = values
	return sample, nil
}
