package presenter

import (
	"strings"

	"github.com/rs/zerolog/log"

	"executor-metrics-backend/internal/hostid"
	"executor-metrics-backend/internal/marker"
	"executor-metrics-backend/internal/metrics"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/series"
)

// NoSelection is the menu value meaning "no metric selected".
const NoSelection = "NULL"

// IsNoSelection reports whether path clears the chart.
func IsNoSelection(path string) bool {
	p := strings.TrimSpace(path)
	return p == "" || p == NoSelection
}

// BatchPresenter renders complete historical charts from a fixed sample set.
type BatchPresenter struct {
	builder *series.Builder
}

// NewBatchPresenter groups hosts by key: stored history interleaves hosts
// across import cycles, so the closed-host rule does not apply to it.
func NewBatchPresenter(builder *series.Builder) *BatchPresenter {
	return &BatchPresenter{builder: builder.WithGrouping(hostid.GroupKeyed)}
}

// Paths returns the selectable metric paths, discovered from the first sample.
func (p *BatchPresenter) Paths(samples []model.MetricSample) []string {
	for _, s := range samples {
		if s.Values.IsNode() {
			return metrics.Discover(s.Values.Node()).Paths
		}
	}
	return []string{}
}

// Present builds the chart for path. colors may be nil.
func (p *BatchPresenter) Present(samples []model.MetricSample, path string, timeline model.Timeline, colors *ColorCache) model.ChartPayload {
	if IsNoSelection(path) {
		return model.EmptyPayload("")
	}
	res := p.builder.Build(samples, path, timeline)
	if res.Omitted > 0 || res.Dropped > 0 || res.Malformed > 0 {
		log.Debug().
			Str("metric_path", path).
			Int("omitted", res.Omitted).
			Int("dropped", res.Dropped).
			Int("malformed", res.Malformed).
			Msg("Samples left out of chart")
	}
	return assemble(path, res.Hosts, timeline, colors)
}

// PresentSum builds a chart of the per-sample sum of terms, titled title.
func (p *BatchPresenter) PresentSum(samples []model.MetricSample, title string, timeline model.Timeline, terms ...string) model.ChartPayload {
	res := p.builder.BuildSum(samples, terms...)
	return assemble(title, res.Hosts, timeline, nil)
}

func assemble(path string, hosts []model.HostSeries, timeline model.Timeline, colors *ColorCache) model.ChartPayload {
	marker.NewAligner(timeline).Annotate(hosts)

	payload := model.EmptyPayload(path)
	for _, h := range hosts {
		payload.Series = append(payload.Series, h.Points)
		payload.Legend = append(payload.Legend, h.Host)
		if colors != nil {
			payload.Colors = append(payload.Colors, colors.Color(h.Host))
		}
	}
	payload.Markers = append(payload.Markers, timeline.Stages...)
	payload.JobMarkers = append(payload.JobMarkers, timeline.Jobs...)
	return payload
}
