package hostid

import (
	"fmt"
	"strings"
)

// DefaultSystemNamespace is the metric namespace of host resource gauges.
const DefaultSystemNamespace = "sigar"

// Identity is a raw host string resolved for one metric namespace.
type Identity struct {
	Raw        string
	Hostname   string
	ExecutorID string
	// Canonical is the series grouping key.
	Canonical string
}

type Resolver struct {
	systemNamespace string
}

func NewResolver(systemNamespace string) *Resolver {
	if systemNamespace == "" {
		systemNamespace = DefaultSystemNamespace
	}
	return &Resolver{systemNamespace: systemNamespace}
}

// Resolve maps raw to its grouping key. Under the system namespace all
// executors of a physical host share one key; elsewhere the raw string is kept.
func (r *Resolver) Resolve(raw, namespace string) Identity {
	hostname, executorID := SplitHost(raw)
	id := Identity{
		Raw:        raw,
		Hostname:   hostname,
		ExecutorID: executorID,
		Canonical:  raw,
	}
	if namespace == r.systemNamespace && hostname != "" {
		id.Canonical = hostname
	}
	return id
}

func (r *Resolver) SystemNamespace() string { return r.systemNamespace }

// SplitHost splits "<hostname>_<executorId>" on the last underscore. A string
// without an underscore is all hostname.
func SplitHost(raw string) (hostname, executorID string) {
	i := strings.LastIndex(raw, "_")
	if i < 0 {
		return raw, ""
	}
	return raw[:i], raw[i+1:]
}

// GroupingMode selects how one build pass treats hosts that reappear.
type GroupingMode string

const (
	// GroupContiguous assumes host-clustered input: once another host is seen,
	// later samples of a previous host are dropped for the pass.
	GroupContiguous GroupingMode = "contiguous"
	// GroupKeyed groups by canonical host regardless of input order.
	GroupKeyed GroupingMode = "keyed"
)

func ParseGroupingMode(s string) (GroupingMode, error) {
	switch GroupingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", GroupContiguous:
		return GroupContiguous, nil
	case GroupKeyed:
		return GroupKeyed, nil
	}
	return "", fmt.Errorf("unknown host grouping mode %q", s)
}

// Pass tracks which canonical hosts are closed during one build pass.
type Pass struct {
	mode    GroupingMode
	current string
	started bool
	closed  map[string]struct{}
}

func NewPass(mode GroupingMode) *Pass {
	return &Pass{mode: mode, closed: make(map[string]struct{})}
}

// Admit reports whether a sample of canonical may join the pass.
func (p *Pass) Admit(canonical string) bool {
	if p.mode == GroupKeyed {
		return true
	}
	if !p.started {
		p.started = true
		p.current = canonical
		return true
	}
	if canonical == p.current {
		return true
	}
	if _, closed := p.closed[canonical]; closed {
		return false
	}
	p.closed[p.current] = struct{}{}
	p.current = canonical
	return true
}
