package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/filestate"
	"executor-metrics-backend/internal/parser"
)

func writeHistory(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

func newImportFixture(t *testing.T) (HistoryImportService, *fakeSampleStore, string, filestate.Tracker) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.History.Directory = filepath.Join(dir, "history")
	cfg.History.BatchSize = 2
	require.NoError(t, os.MkdirAll(cfg.History.Directory, 0o755))

	tracker := filestate.NewTracker(filepath.Join(dir, "state.json"))
	store := newFakeSampleStore()
	svc := NewHistoryImportService(cfg, tracker, parser.NewJSONSampleParser(), store)
	return svc, store, cfg.History.Directory, tracker
}

func TestHistoryImport_ImportsIncrementally(t *testing.T) {
	ctx := context.Background()
	svc, store, dir, tracker := newImportFixture(t)
	file := filepath.Join(dir, "app-1", "node1_0.json")

	writeHistory(t, file,
		`{"host":"node1_0","timestamp":1,"values":{"a":1}}`+"\n"+
			"not json\n"+
			`{"host":"node1_0","timestamp":2,"values":"{\"a\":2}"}`+"\n"+
			`{"host":"node1_0","timestamp":3,"values":{"a":3}}`+"\n"+
			`{"host":"node1_0","timestamp":4,"val`)
	writeHistory(t, filepath.Join(dir, "other", "ignored.json"), `{"host":"x_0","timestamp":1,"values":{}}`+"\n")

	require.NoError(t, svc.ImportHistory(ctx))
	require.Len(t, store.samples["app-1"], 3)
	assert.Equal(t, 2.0, store.samples["app-1"][1].TimestampSeconds)
	assert.NotContains(t, store.samples, "unknown_run")

	offsets, err := tracker.Load()
	require.NoError(t, err)
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Less(t, offsets[file], info.Size(), "partial trailing line is not consumed")

	writeHistory(t, file, `ues":{"a":4}}`+"\n")
	require.NoError(t, svc.ImportHistory(ctx))
	require.Len(t, store.samples["app-1"], 4)
	assert.Equal(t, 4.0, store.samples["app-1"][3].TimestampSeconds)

	require.NoError(t, svc.ImportHistory(ctx))
	assert.Len(t, store.samples["app-1"], 4, "nothing imported twice")
}

func TestHistoryImport_StoreFailureRetries(t *testing.T) {
	ctx := context.Background()
	svc, store, dir, _ := newImportFixture(t)
	file := filepath.Join(dir, "app-2", "node1_0.json")
	writeHistory(t, file, `{"host":"node1_0","timestamp":1,"values":{"a":1}}`+"\n")

	store.failFor = "app-2"
	require.NoError(t, svc.ImportHistory(ctx))
	assert.Empty(t, store.samples["app-2"])

	store.failFor = ""
	require.NoError(t, svc.ImportHistory(ctx))
	assert.Len(t, store.samples["app-2"], 1)
}

func TestHistoryImport_TruncatedFileRestarts(t *testing.T) {
	ctx := context.Background()
	svc, store, dir, _ := newImportFixture(t)
	file := filepath.Join(dir, "app-3", "node1_0.json")
	writeHistory(t, file,
		`{"host":"node1_0","timestamp":1,"values":{"a":1}}`+"\n"+
			`{"host":"node1_0","timestamp":2,"values":{"a":2}}`+"\n")
	require.NoError(t, svc.ImportHistory(ctx))
	require.Len(t, store.samples["app-3"], 2)

	require.NoError(t, os.WriteFile(file, []byte(`{"host":"node1_0","timestamp":9,"values":{"a":9}}`+"\n"), 0o644))
	require.NoError(t, svc.ImportHistory(ctx))
	require.Len(t, store.samples["app-3"], 3)
	assert.Equal(t, 9.0, store.samples["app-3"][2].TimestampSeconds)
}

func TestHistoryImport_MissingDirectory(t *testing.T) {
	cfg := &config.Config{}
	cfg.History.Directory = filepath.Join(t.TempDir(), "absent")
	svc := NewHistoryImportService(cfg, filestate.NewTracker(filepath.Join(t.TempDir(), "s.json")), parser.NewJSONSampleParser(), newFakeSampleStore())
	assert.Error(t, svc.ImportHistory(context.Background()))
}
