package timescaledb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executor-metrics-backend/internal/dto"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/util"
)

func TestBuildSampleQuery(t *testing.T) {
	start := time.UnixMilli(1000).UTC()
	end := time.UnixMilli(2000).UTC()

	tests := []struct {
		name     string
		query    dto.SampleQuery
		expected string
		args     []interface{}
	}{
		{
			name:     "Whole run",
			query:    dto.SampleQuery{RunID: "app-1"},
			expected: "SELECT host, ts_seconds, metric_values FROM t WHERE run_id = $1 ORDER BY seq ASC",
			args:     []interface{}{"app-1"},
		},
		{
			name:     "Bounded with limit",
			query:    dto.SampleQuery{RunID: "app-1", Range: util.TimeRange{Start: start, End: end}, Limit: 5},
			expected: "SELECT host, ts_seconds, metric_values FROM t WHERE run_id = $1 AND time >= $2 AND time < $3 ORDER BY seq ASC LIMIT $4",
			args:     []interface{}{"app-1", start, end, 5},
		},
		{
			name:     "End only",
			query:    dto.SampleQuery{RunID: "app-1", Range: util.TimeRange{End: end}},
			expected: "SELECT host, ts_seconds, metric_values FROM t WHERE run_id = $1 AND time < $2 ORDER BY seq ASC",
			args:     []interface{}{"app-1", end},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildSampleQuery("t", tt.query)
			assert.Equal(t, tt.expected, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestSampleRow_KeepsKeyOrder(t *testing.T) {
	values, err := model.ParseMetricValue([]byte(`{"z":1,"a":{"y":2,"b":3}}`))
	require.NoError(t, err)

	row, err := sampleRow("app-1", model.MetricSample{Host: "h_0", TimestampSeconds: 1.25, Values: values})
	require.NoError(t, err)
	require.Len(t, row, 5)
	assert.Equal(t, int64(1250), row[0].(time.Time).UnixMilli())
	assert.Equal(t, "app-1", row[1])
	assert.Equal(t, `{"z":1,"a":{"y":2,"b":3}}`, string(row[4].([]byte)))
}
