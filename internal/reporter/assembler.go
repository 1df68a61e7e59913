package reporter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"executor-metrics-backend/internal/model"
)

// Sink receives every assembled sample of a run.
type Sink interface {
	Publish(ctx context.Context, appID string, sample model.MetricSample) error
}

// RegistryName is a parsed `<appId>.<executorId>.<source>.<k1>...<kn>` name.
type RegistryName struct {
	AppID      string
	ExecutorID string
	Source     string
	Keys       []string
}

// ParseRegistryName reports false for names that do not belong to an
// application executor: first segment without the "app" prefix, non-integer
// executor id, or no keys after the source.
func ParseRegistryName(name string) (RegistryName, bool) {
	parts := strings.Split(name, ".")
	if len(parts) < 4 || !strings.HasPrefix(parts[0], "app") {
		return RegistryName{}, false
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return RegistryName{}, false
	}
	return RegistryName{
		AppID:      parts[0],
		ExecutorID: parts[1],
		Source:     parts[2],
		Keys:       parts[3:],
	}, true
}

// PutLeaf stores v under keys, creating intermediate nodes. A scalar already
// sitting on the way (or at the leaf) wins and the insert is skipped.
func PutLeaf(root *model.MetricNode, keys []string, v model.MetricValue) bool {
	node := root
	for i, key := range keys {
		existing, ok := node.Get(key)
		if ok && !existing.IsNode() {
			return false
		}
		if i == len(keys)-1 {
			if ok {
				return false
			}
			node.Set(key, v)
			return true
		}
		if !ok {
			existing = model.NodeValue(nil)
			node.Set(key, existing)
		}
		node = existing.Node()
	}
	return false
}

type buffer struct {
	appID      string
	executorID string
	timestamp  int64
	tree       *model.MetricNode
}

// Assembler folds individually reported gauges into one MetricSample per
// executor and reporting timestamp.
type Assembler struct {
	mu        sync.Mutex
	localhost string
	sinks     []Sink
	buffers   map[string]*buffer
	order     []string
}

func NewAssembler(localhost string, sinks ...Sink) *Assembler {
	return &Assembler{
		localhost: localhost,
		sinks:     sinks,
		buffers:   make(map[string]*buffer),
	}
}

// Report buffers one value. A timestamp different from the buffered one
// flushes the executor's previous sample first.
func (a *Assembler) Report(ctx context.Context, name string, value model.MetricValue, timestampSeconds int64) error {
	parsed, ok := ParseRegistryName(name)
	if !ok {
		log.Trace().Str("name", name).Msg("Ignoring metric outside an application executor")
		return nil
	}

	a.mu.Lock()
	key := parsed.AppID + "/" + parsed.ExecutorID
	buf, exists := a.buffers[key]
	if !exists {
		buf = &buffer{appID: parsed.AppID, executorID: parsed.ExecutorID, tree: model.NewMetricNode()}
		a.buffers[key] = buf
		a.order = append(a.order, key)
	}

	var pending *model.MetricSample
	if buf.tree.Len() > 0 && buf.timestamp != timestampSeconds {
		s := a.detach(buf)
		pending = &s
	}
	buf.timestamp = timestampSeconds
	if !PutLeaf(buf.tree, parsed.Keys, value) {
		log.Debug().Str("name", name).Msg("Metric slot already taken in this sample")
	}
	a.mu.Unlock()

	if pending == nil {
		return nil
	}
	return a.publish(ctx, parsed.AppID, *pending)
}

// Flush publishes every non-empty buffer.
func (a *Assembler) Flush(ctx context.Context) error {
	type out struct {
		appID  string
		sample model.MetricSample
	}
	a.mu.Lock()
	var pending []out
	for _, key := range a.order {
		buf := a.buffers[key]
		if buf.tree.Len() == 0 {
			continue
		}
		pending = append(pending, out{appID: buf.appID, sample: a.detach(buf)})
	}
	a.mu.Unlock()

	var errs []error
	for _, p := range pending {
		if err := a.publish(ctx, p.appID, p.sample); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes what is left. The assembler may keep being used afterwards.
func (a *Assembler) Close(ctx context.Context) error {
	return a.Flush(ctx)
}

func (a *Assembler) detach(buf *buffer) model.MetricSample {
	s := model.MetricSample{
		Host:             a.localhost + "_" + buf.executorID,
		TimestampSeconds: float64(buf.timestamp),
		Values:           model.NodeValue(buf.tree),
	}
	buf.tree = model.NewMetricNode()
	return s
}

func (a *Assembler) publish(ctx context.Context, appID string, s model.MetricSample) error {
	var errs []error
	for _, sink := range a.sinks {
		if err := sink.Publish(ctx, appID, s); err != nil {
			log.Error().Err(err).Str("app_id", appID).Str("host", s.Host).Msg("Failed to publish sample")
			errs = append(errs, fmt.Errorf("publish %s sample: %w", appID, err))
		}
	}
	return errors.Join(errs...)
}
