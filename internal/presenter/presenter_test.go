package presenter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/series"
)

func sample(t *testing.T, host string, ts float64, cpu, heap float64) model.MetricSample {
	t.Helper()
	v, err := model.ParseMetricValue([]byte(fmt.Sprintf(`{"sigar":{"cpu":{"combined":%g}},"jvm":{"heap":{"used":%g}}}`, cpu, heap)))
	require.NoError(t, err)
	return model.MetricSample{Host: host, TimestampSeconds: ts, Values: v}
}

func history(t *testing.T) []model.MetricSample {
	return []model.MetricSample{
		sample(t, "node1_0", 10, 0.1, 100),
		sample(t, "node1_0", 11, 0.2, 110),
		sample(t, "node1_1", 12, 0.3, 120),
		sample(t, "node2_0", 13, 0.4, 130),
		sample(t, "node2_0", 14, 0.5, 140),
	}
}

var timeline = model.Timeline{
	Jobs:   []model.TimelineMarker{{TimestampMillis: 9000, Label: "job 0"}},
	Stages: []model.TimelineMarker{{TimestampMillis: 9500, Label: "stage 0"}, {TimestampMillis: 12500, Label: "stage 1"}},
}

func TestBatchPresenter_Paths(t *testing.T) {
	p := NewBatchPresenter(series.NewBuilder(series.DefaultOptions()))
	assert.Equal(t, []string{"jvm.heap.used", "sigar.cpu.combined"}, p.Paths(history(t)))
	assert.Equal(t, []string{}, p.Paths(nil))
}

func TestBatchPresenter_Present(t *testing.T) {
	p := NewBatchPresenter(series.NewBuilder(series.DefaultOptions()))

	payload := p.Present(history(t), "sigar.cpu.combined", timeline, nil)
	assert.Equal(t, "sigar.cpu.combined", payload.MetricPath)
	assert.Equal(t, []string{"node1", "node2"}, payload.Legend)
	require.Len(t, payload.Series, len(payload.Legend))
	assert.Equal(t, timeline.Stages, payload.Markers)
	assert.Equal(t, timeline.Jobs, payload.JobMarkers)
	assert.Empty(t, payload.Colors)

	node1 := payload.Series[0]
	require.Len(t, node1, 4, "synthetic lead-in plus three samples")
	assert.True(t, node1[0].Synthetic)
	assert.Equal(t, int64(8500), node1[0].TimestampMillis, "anchored on the first stage, not the job")
	assert.Equal(t, 0, node1[1].NearestStageIndex)
	assert.Equal(t, 1, payload.Series[1][1].NearestStageIndex)

	for i, s := range payload.Series {
		for j := 1; j < len(s); j++ {
			assert.LessOrEqual(t, s[j-1].TimestampMillis, s[j].TimestampMillis, payload.Legend[i])
		}
	}
}

func TestBatchPresenter_NoSelection(t *testing.T) {
	p := NewBatchPresenter(series.NewBuilder(series.DefaultOptions()))
	for _, path := range []string{"", "NULL", "  "} {
		payload := p.Present(history(t), path, timeline, nil)
		assert.Empty(t, payload.Series)
		assert.Empty(t, payload.Legend)
	}
}

func TestBatchPresenter_InterleavedHostsKeepAllPoints(t *testing.T) {
	p := NewBatchPresenter(series.NewBuilder(series.DefaultOptions()))
	samples := []model.MetricSample{
		sample(t, "nodeA_0", 1, 0, 10),
		sample(t, "nodeB_0", 1, 0, 20),
		sample(t, "nodeA_0", 2, 0, 11),
		sample(t, "nodeB_0", 2, 0, 21),
	}

	payload := p.Present(samples, "jvm.heap.used", model.Timeline{}, nil)
	assert.Equal(t, []string{"nodeA_0", "nodeB_0"}, payload.Legend)
	require.Len(t, payload.Series, 2)
	assert.Len(t, payload.Series[0], 2)
	assert.Len(t, payload.Series[1], 2)
}

func TestBatchPresenter_PresentSum(t *testing.T) {
	p := NewBatchPresenter(series.NewBuilder(series.DefaultOptions()))
	payload := p.PresentSum(history(t), "cpu+heap", timeline, "sigar.cpu.combined", "jvm.heap.used")
	assert.Equal(t, "cpu+heap", payload.MetricPath)
	require.Len(t, payload.Series, 2)
	assert.InDelta(t, 100.1, payload.Series[0][0].Value, 1e-9)
}

func TestLivePresenter_ReplayMatchesBatch(t *testing.T) {
	builder := series.NewBuilder(series.DefaultOptions())
	live := NewLivePresenter(builder, 0)
	live.SetTimeline(timeline)
	live.Select("sigar.cpu.combined")

	var last *model.ChartPayload
	for _, s := range history(t) {
		if upd := live.Ingest(s); upd.Chart != nil {
			last = upd.Chart
		}
	}
	require.NotNil(t, last)

	batch := NewBatchPresenter(builder).Present(history(t), "sigar.cpu.combined", timeline, nil)
	assert.Equal(t, batch.Legend, last.Legend)
	assert.Equal(t, batch.Series, last.Series)
}

func TestLivePresenter_PathsAnnouncedOnce(t *testing.T) {
	live := NewLivePresenter(series.NewBuilder(series.DefaultOptions()), 0)
	samples := history(t)

	first := live.Ingest(samples[0])
	assert.Equal(t, []string{"jvm.heap.used", "sigar.cpu.combined"}, first.Paths)
	assert.Nil(t, first.Chart, "nothing selected yet")

	second := live.Ingest(samples[1])
	assert.Nil(t, second.Paths)
	assert.Equal(t, 2, live.Len())
}

func TestLivePresenter_SelectRendersHistoryAndClears(t *testing.T) {
	live := NewLivePresenter(series.NewBuilder(series.DefaultOptions()), 0)
	for _, s := range history(t) {
		live.Ingest(s)
	}

	payload := live.Select("jvm.heap.used")
	assert.Equal(t, "jvm.heap.used", live.Selected())
	assert.Equal(t, []string{"node1_0", "node1_1", "node2_0"}, payload.Legend)

	cleared := live.Select(NoSelection)
	assert.Empty(t, cleared.Series)
	assert.Empty(t, live.Selected())

	upd := live.Ingest(sample(t, "node3_0", 20, 0.9, 900))
	assert.Nil(t, upd.Chart)
}

func TestLivePresenter_FreshDropsChartsOfPreviousSelection(t *testing.T) {
	live := NewLivePresenter(series.NewBuilder(series.DefaultOptions()), 0)
	live.Select("jvm.heap.used")

	samples := history(t)
	first := live.Ingest(samples[0])
	second := live.Ingest(samples[1])
	require.NotNil(t, second.Chart)

	live.Select("sigar.cpu.combined")

	_, ok := live.Fresh(second)
	assert.False(t, ok, "chart of the old selection")

	paths, ok := live.Fresh(first)
	assert.True(t, ok, "paths survive a selection change")
	assert.Nil(t, paths.Chart)
	assert.NotNil(t, paths.Paths)

	third := live.Ingest(samples[2])
	current, ok := live.Fresh(third)
	require.True(t, ok)
	assert.Equal(t, "sigar.cpu.combined", current.Chart.MetricPath)
}

func TestLivePresenter_ColorsStableAcrossRenders(t *testing.T) {
	live := NewLivePresenter(series.NewBuilder(series.DefaultOptions()), 0)
	live.Select("jvm.heap.used")

	upd := live.Ingest(sample(t, "b_0", 1, 0, 1))
	require.NotNil(t, upd.Chart)
	colorB := upd.Chart.Colors[0]

	upd = live.Ingest(sample(t, "a_0", 2, 0, 2))
	require.Len(t, upd.Chart.Colors, 2)
	assert.Equal(t, colorB, upd.Chart.Colors[0])

	live.Select("sigar.cpu.combined")
	again := live.Select("jvm.heap.used")
	assert.Equal(t, upd.Chart.Colors, again.Colors)
}

func TestLivePresenter_MaxSamplesEvictsOldest(t *testing.T) {
	live := NewLivePresenter(series.NewBuilder(series.DefaultOptions()), 2)
	for _, s := range history(t) {
		live.Ingest(s)
	}
	assert.Equal(t, 2, live.Len())

	payload := live.Select("jvm.heap.used")
	assert.Equal(t, []string{"node2_0"}, payload.Legend)
}

func TestLivePresenter_DropsMalformed(t *testing.T) {
	live := NewLivePresenter(series.NewBuilder(series.DefaultOptions()), 0)
	upd := live.Ingest(model.MetricSample{Host: "x_0", TimestampSeconds: 1})
	assert.Nil(t, upd.Paths)
	assert.Zero(t, live.Len())
}

func TestColorCache(t *testing.T) {
	c := NewColorCache("red", "blue")
	assert.Equal(t, "red", c.Color("a"))
	assert.Equal(t, "blue", c.Color("b"))
	assert.Equal(t, "red", c.Color("c"))
	assert.Equal(t, "blue", c.Color("b"))
	assert.Equal(t, 3, c.Len())
}
