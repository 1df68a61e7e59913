package metrics_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executor-metrics-backend/internal/metrics"
	"executor-metrics-backend/internal/model"
)

func mustTree(t *testing.T, raw string) *model.MetricNode {
	t.Helper()
	v, err := model.ParseMetricValue([]byte(raw))
	require.NoError(t, err)
	require.True(t, v.IsNode())
	return v.Node()
}

func TestDiscover(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		paths      []string
		superseded []string
	}{
		{
			name:       "empty sample",
			raw:        `{}`,
			paths:      []string{},
			superseded: []string{},
		},
		{
			name:       "flat keys sorted",
			raw:        `{"b":1,"a":"x"}`,
			paths:      []string{"a", "b"},
			superseded: []string{},
		},
		{
			name:       "nested keys",
			raw:        `{"sigar":{"cpu":{"combined":0.5,"user":0.1},"mem":{"used":10}},"jvm":{"heap":{"used":3}}}`,
			paths:      []string{"jvm.heap.used", "sigar.cpu.combined", "sigar.cpu.user", "sigar.mem.used"},
			superseded: []string{"jvm", "jvm.heap", "sigar", "sigar.cpu", "sigar.mem"},
		},
		{
			name:       "empty node yields nothing",
			raw:        `{"a":{},"b":2}`,
			paths:      []string{"b"},
			superseded: []string{"a"},
		},
		{
			name:       "dotted leaf shadowed by deeper path",
			raw:        `{"a.b":1,"a":{"b":{"c":2}}}`,
			paths:      []string{"a.b.c"},
			superseded: []string{"a", "a.b"},
		},
		{
			name:       "deeper path first then dotted leaf",
			raw:        `{"a":{"b":{"c":2}},"a.b":1}`,
			paths:      []string{"a.b.c"},
			superseded: []string{"a", "a.b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := metrics.Discover(mustTree(t, tt.raw))
			assert.Equal(t, tt.paths, schema.Paths)
			assert.Equal(t, tt.superseded, schema.Superseded)
		})
	}
}

func TestDiscover_PathsResolveAndAreNotPrefixes(t *testing.T) {
	raw := `{"sigar":{"cpu":{"combined":0.5},"net":{"rx":1,"tx":"2"}},"x.y":4,"x":{"y":{"z":5},"w":6},"app":{"gc":{"count":7}}}`
	root := mustTree(t, raw)

	schema := metrics.Discover(root)
	require.NotEmpty(t, schema.Paths)

	for _, p := range schema.Paths {
		v, err := metrics.Resolve(root, p)
		require.NoError(t, err, p)
		assert.True(t, v.IsScalar(), p)

		for _, q := range schema.Paths {
			if p != q {
				assert.False(t, strings.HasPrefix(q, p+"."), "%s is a prefix of %s", p, q)
			}
		}
	}
	assert.NotContains(t, schema.Paths, "x.y")
	assert.Contains(t, schema.Paths, "x.y.z")
}

func TestDiscover_NilRoot(t *testing.T) {
	schema := metrics.Discover(nil)
	assert.Empty(t, schema.Paths)
	assert.Empty(t, schema.Superseded)
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "sigar", metrics.Namespace("sigar.cpu.combined"))
	assert.Equal(t, "heap", metrics.Namespace("heap"))
	assert.Equal(t, "", metrics.Namespace(""))
}
