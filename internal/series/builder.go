package series

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"executor-metrics-backend/internal/hostid"
	"executor-metrics-backend/internal/metrics"
	"executor-metrics-backend/internal/model"
)

// DefaultLeadIn is how far before the first marker a backfilled point sits.
const DefaultLeadIn = time.Second

type Options struct {
	SystemNamespace string
	Grouping        hostid.GroupingMode
	LeadIn          time.Duration
	// CumulativePrefixes name counter paths whose backfill value is zero.
	CumulativePrefixes []string
}

// DefaultCumulativePrefixes are the byte counters of the system namespace.
// Rates derived from them backfill like any other gauge.
var DefaultCumulativePrefixes = []string{
	"sigar.network.rxBytes",
	"sigar.network.txBytes",
	"sigar.disk.readBytes",
	"sigar.disk.writtenBytes",
}

func DefaultOptions() Options {
	return Options{
		SystemNamespace:    hostid.DefaultSystemNamespace,
		Grouping:           hostid.GroupContiguous,
		LeadIn:             DefaultLeadIn,
		CumulativePrefixes: DefaultCumulativePrefixes,
	}
}

// Result is the output of one build pass.
type Result struct {
	// Hosts are in discovery order.
	Hosts []model.HostSeries
	// Omitted counts samples lacking the path (or holding a non-number there).
	Omitted int
	// Dropped counts samples of hosts already closed in this pass.
	Dropped int
	// Malformed counts samples whose values are not a tree at all.
	Malformed int
}

type Builder struct {
	opts     Options
	resolver *hostid.Resolver
}

func NewBuilder(opts Options) *Builder {
	if opts.Grouping == "" {
		opts.Grouping = hostid.GroupContiguous
	}
	return &Builder{
		opts:     opts,
		resolver: hostid.NewResolver(opts.SystemNamespace),
	}
}

func (b *Builder) Options() Options { return b.opts }

// WithGrouping returns a builder sharing b's options except the grouping mode.
func (b *Builder) WithGrouping(mode hostid.GroupingMode) *Builder {
	opts := b.opts
	opts.Grouping = mode
	return NewBuilder(opts)
}

type valueFunc func(root *model.MetricNode) (float64, error)

// Build turns samples into per-host series for path, then backfills every
// host when the first stage was submitted before the first observed sample.
func (b *Builder) Build(samples []model.MetricSample, path string, timeline model.Timeline) Result {
	res := b.collect(samples, metrics.Namespace(path), func(root *model.MetricNode) (float64, error) {
		return metrics.ResolveFloat(root, path)
	})
	b.backfill(res.Hosts, timeline, b.isCumulative(path))
	return res
}

// BuildSum charts the per-sample sum of several paths. Samples missing any
// term are omitted. No backfill is applied.
func (b *Builder) BuildSum(samples []model.MetricSample, terms ...string) Result {
	if len(terms) == 0 {
		return Result{Hosts: []model.HostSeries{}}
	}
	return b.collect(samples, metrics.Namespace(terms[0]), func(root *model.MetricNode) (float64, error) {
		var sum float64
		for _, term := range terms {
			v, err := metrics.ResolveFloat(root, term)
			if err != nil {
				return 0, err
			}
			sum += v
		}
		return sum, nil
	})
}

func (b *Builder) collect(samples []model.MetricSample, namespace string, value valueFunc) Result {
	res := Result{Hosts: []model.HostSeries{}}
	index := make(map[string]int)
	pass := hostid.NewPass(b.opts.Grouping)

	for _, s := range samples {
		id := b.resolver.Resolve(s.Host, namespace)
		if !pass.Admit(id.Canonical) {
			res.Dropped++
			continue
		}
		if !s.Values.IsNode() {
			res.Malformed++
			log.Warn().Str("host", s.Host).Float64("timestamp", s.TimestampSeconds).Msg("Skipping sample without a metric tree")
			continue
		}

		v, err := value(s.Values.Node())
		if err != nil {
			res.Omitted++
			if !errors.Is(err, metrics.ErrMissingMetric) && !errors.Is(err, metrics.ErrNonNumeric) {
				log.Warn().Err(err).Str("host", s.Host).Msg("Unexpected error resolving metric")
			} else {
				log.Trace().Err(err).Str("host", s.Host).Msg("Metric missing in sample")
			}
			continue
		}

		i, ok := index[id.Canonical]
		if !ok {
			i = len(res.Hosts)
			index[id.Canonical] = i
			res.Hosts = append(res.Hosts, model.HostSeries{Host: id.Canonical, Points: []model.TimedPoint{}})
		}
		res.Hosts[i].Points = append(res.Hosts[i].Points, model.TimedPoint{
			TimestampMillis: s.TimestampMillis(),
			Value:           v,
			HostLabel:       s.Host,
			ExecutorID:      id.ExecutorID,
		})
	}

	for i := range res.Hosts {
		points := res.Hosts[i].Points
		sort.SliceStable(points, func(a, b int) bool {
			return points[a].TimestampMillis < points[b].TimestampMillis
		})
	}
	return res
}

func (b *Builder) backfill(hosts []model.HostSeries, timeline model.Timeline, cumulative bool) {
	first, ok := timeline.EarliestStage()
	if !ok || len(hosts) == 0 {
		return
	}
	earliestSample := hosts[0].Points[0].TimestampMillis
	for _, h := range hosts[1:] {
		if h.Points[0].TimestampMillis < earliestSample {
			earliestSample = h.Points[0].TimestampMillis
		}
	}
	if first >= earliestSample {
		return
	}

	at := first - b.opts.LeadIn.Milliseconds()
	for i := range hosts {
		lead := hosts[i].Points[0]
		synthetic := model.TimedPoint{
			TimestampMillis: at,
			Value:           lead.Value,
			HostLabel:       lead.HostLabel,
			ExecutorID:      lead.ExecutorID,
			Synthetic:       true,
		}
		if cumulative {
			synthetic.Value = 0
		}
		hosts[i].Points = append([]model.TimedPoint{synthetic}, hosts[i].Points...)
	}
}

func (b *Builder) isCumulative(path string) bool {
	for _, prefix := range b.opts.CumulativePrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+metrics.PathSeparator) {
			return true
		}
	}
	return false
}
