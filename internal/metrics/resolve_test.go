package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executor-metrics-backend/internal/metrics"
)

func TestResolveFloat(t *testing.T) {
	root := mustTree(t, `{"sigar":{"cpu":{"combined":0.5,"unit":"percent"},"mem":"12"},"jvm.heap":{"used":"256"}}`)

	tests := []struct {
		name    string
		path    string
		want    float64
		wantErr error
	}{
		{"nested number", "sigar.cpu.combined", 0.5, nil},
		{"string number", "sigar.mem", 12, nil},
		{"dotted key", "jvm.heap.used", 256, nil},
		{"absent intermediate", "sigar.disk.read", 0, metrics.ErrMissingMetric},
		{"leaf reached early", "sigar.mem.used", 0, metrics.ErrMissingMetric},
		{"ends on node", "sigar.cpu", 0, metrics.ErrMissingMetric},
		{"empty path", "", 0, metrics.ErrMissingMetric},
		{"text value", "sigar.cpu.unit", 0, metrics.ErrNonNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := metrics.ResolveFloat(root, tt.path)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_NilRoot(t *testing.T) {
	_, err := metrics.Resolve(nil, "a")
	assert.ErrorIs(t, err, metrics.ErrMissingMetric)
}
