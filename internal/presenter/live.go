package presenter

import (
	"sync"

	"github.com/rs/zerolog/log"

	"executor-metrics-backend/internal/metrics"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/series"
)

// Update is what one incoming sample produced.
type Update struct {
	// Paths is set once, when the first sample reveals the metric menu.
	Paths []string
	// Chart is set when a metric is selected.
	Chart *model.ChartPayload
	// Generation is the selection Chart was rendered for.
	Generation uint64
}

// LivePresenter folds a push stream into charts. Every arrival re-derives the
// selected chart from the whole history kept so far. Ingest and Select are
// serialized by the presenter's lock.
type LivePresenter struct {
	mu         sync.Mutex
	batch      *BatchPresenter
	colors     *ColorCache
	maxSamples int

	samples  []model.MetricSample
	paths    []string
	selected   string
	generation uint64
	timeline   model.Timeline
}

// NewLivePresenter keeps at most maxSamples samples, oldest evicted first.
// maxSamples <= 0 keeps everything.
func NewLivePresenter(builder *series.Builder, maxSamples int) *LivePresenter {
	return &LivePresenter{
		batch:      &BatchPresenter{builder: builder},
		colors:     NewColorCache(),
		maxSamples: maxSamples,
	}
}

func (p *LivePresenter) SetTimeline(timeline model.Timeline) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeline = timeline
}

func (p *LivePresenter) Ingest(s model.MetricSample) Update {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !s.Values.IsNode() {
		log.Warn().Str("host", s.Host).Float64("timestamp", s.TimestampSeconds).Msg("Dropping live sample without a metric tree")
		return Update{}
	}

	p.samples = append(p.samples, s)
	if p.maxSamples > 0 && len(p.samples) > p.maxSamples {
		p.samples = p.samples[len(p.samples)-p.maxSamples:]
	}

	upd := Update{Generation: p.generation}
	if p.paths == nil {
		p.paths = metrics.Discover(s.Values.Node()).Paths
		upd.Paths = p.paths
	}
	if p.selected != "" {
		chart := p.render()
		upd.Chart = &chart
	}
	return upd
}

// Select switches the chart to path and renders the history gathered so far.
// An empty path or NoSelection clears the chart. Charts rendered before the
// switch stop being Fresh.
func (p *LivePresenter) Select(path string) model.ChartPayload {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	if IsNoSelection(path) {
		p.selected = ""
		return model.EmptyPayload("")
	}
	p.selected = path
	return p.render()
}

// Fresh strips upd.Chart when it was rendered for an earlier selection.
// ok is false when nothing is left to deliver.
func (p *LivePresenter) Fresh(upd Update) (fresh Update, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if upd.Chart != nil && upd.Generation != p.generation {
		upd.Chart = nil
	}
	return upd, upd.Chart != nil || upd.Paths != nil
}

func (p *LivePresenter) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

func (p *LivePresenter) render() model.ChartPayload {
	return p.batch.Present(p.samples, p.selected, p.timeline, p.colors)
}

func (p *LivePresenter) Selected() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

func (p *LivePresenter) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.paths))
	copy(out, p.paths)
	return out
}

func (p *LivePresenter) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.samples)
}
