package metrics

import (
	"sort"
	"strings"

	"executor-metrics-backend/internal/model"
)

// PathSeparator joins the keys of a metric path.
const PathSeparator = "."

// Schema is the set of selectable metric paths found in one sample.
type Schema struct {
	// Paths are the dot-joined scalar leaves, sorted, none a prefix of another.
	Paths []string
	// Superseded are the prefixes kept out of the menu because a deeper path exists.
	Superseded []string
}

// Discover flattens a sample tree into its selectable paths. The walk only
// collects; the prefix rule is applied afterwards on the collected set so the
// result does not depend on traversal order.
func Discover(root *model.MetricNode) Schema {
	leaves := make(map[string]struct{})
	inner := make(map[string]struct{})

	var walk func(node *model.MetricNode, prefix string)
	walk = func(node *model.MetricNode, prefix string) {
		node.Each(func(key string, v model.MetricValue) {
			p := JoinPath(prefix, key)
			if v.IsNode() {
				inner[p] = struct{}{}
				walk(v.Node(), p)
				return
			}
			if v.IsScalar() {
				leaves[p] = struct{}{}
			}
		})
	}
	walk(root, "")

	return finalize(leaves, inner)
}

func finalize(leaves, inner map[string]struct{}) Schema {
	ancestors := make(map[string]struct{})
	for p := range leaves {
		for i := strings.LastIndex(p, PathSeparator); i > 0; i = strings.LastIndex(p[:i], PathSeparator) {
			ancestors[p[:i]] = struct{}{}
		}
	}

	schema := Schema{Paths: []string{}, Superseded: []string{}}
	superseded := make(map[string]struct{})
	for p := range leaves {
		if _, deeper := ancestors[p]; deeper {
			superseded[p] = struct{}{}
			continue
		}
		schema.Paths = append(schema.Paths, p)
	}
	for p := range inner {
		if _, isLeaf := leaves[p]; isLeaf {
			continue
		}
		superseded[p] = struct{}{}
	}
	for p := range superseded {
		schema.Superseded = append(schema.Superseded, p)
	}

	sort.Strings(schema.Paths)
	sort.Strings(schema.Superseded)
	return schema
}

// JoinPath appends key to a dot-joined prefix.
func JoinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + PathSeparator + key
}

// Namespace is the first key of a metric path.
func Namespace(path string) string {
	if i := strings.Index(path, PathSeparator); i >= 0 {
		return path[:i]
	}
	return path
}
