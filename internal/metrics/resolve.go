package metrics

import (
	"errors"
	"fmt"
	"strings"

	"executor-metrics-backend/internal/model"
)

var (
	// ErrMissingMetric means the path does not lead to a scalar in the sample.
	ErrMissingMetric = errors.New("metric not present in sample")
	// ErrNonNumeric means the path leads to a scalar that is not a number.
	ErrNonNumeric = errors.New("metric value is not numeric")
)

// Resolve walks root along a dot-joined path and returns the scalar it ends on.
// Keys may themselves contain dots, so at each level the longest key matching
// the remaining segments is tried first.
func Resolve(root *model.MetricNode, path string) (model.MetricValue, error) {
	if root == nil || path == "" {
		return model.MetricValue{}, fmt.Errorf("%w: %q", ErrMissingMetric, path)
	}
	if v, ok := resolveSegments(root, strings.Split(path, PathSeparator)); ok {
		return v, nil
	}
	return model.MetricValue{}, fmt.Errorf("%w: %q", ErrMissingMetric, path)
}

func resolveSegments(node *model.MetricNode, segments []string) (model.MetricValue, bool) {
	for n := len(segments); n > 0; n-- {
		child, ok := node.Get(strings.Join(segments[:n], PathSeparator))
		if !ok {
			continue
		}
		rest := segments[n:]
		if len(rest) == 0 {
			if child.IsScalar() {
				return child, true
			}
			continue
		}
		if !child.IsNode() {
			continue
		}
		if v, ok := resolveSegments(child.Node(), rest); ok {
			return v, true
		}
	}
	return model.MetricValue{}, false
}

// ResolveFloat is Resolve followed by a numeric conversion.
func ResolveFloat(root *model.MetricNode, path string) (float64, error) {
	v, err := Resolve(root, path)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float()
	if !ok {
		return 0, fmt.Errorf("%w: %q = %q", ErrNonNumeric, path, v.String())
	}
	return f, nil
}
