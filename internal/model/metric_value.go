package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// ValueKind tags the variant held by a MetricValue.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindNumber
	KindString
	KindNode
)

// MetricValue is one position in a nested metric sample: either a scalar
// (number or string) or a node of named children.
type MetricValue struct {
	kind ValueKind
	num  float64
	str  string
	node *MetricNode
}

// MetricNode keeps children in the order they were first set, which for
// decoded samples is the order of the source document.
type MetricNode struct {
	keys     []string
	children map[string]MetricValue
}

func NumberValue(f float64) MetricValue { return MetricValue{kind: KindNumber, num: f} }

func StringValue(s string) MetricValue { return MetricValue{kind: KindString, str: s} }

func NodeValue(n *MetricNode) MetricValue {
	if n == nil {
		n = NewMetricNode()
	}
	return MetricValue{kind: KindNode, node: n}
}

func NewMetricNode() *MetricNode {
	return &MetricNode{children: make(map[string]MetricValue)}
}

func (v MetricValue) Kind() ValueKind { return v.kind }

func (v MetricValue) IsNode() bool { return v.kind == KindNode }

func (v MetricValue) IsScalar() bool { return v.kind == KindNumber || v.kind == KindString }

// Node returns the children of a node value, nil for scalars.
func (v MetricValue) Node() *MetricNode {
	if v.kind != KindNode {
		return nil
	}
	return v.node
}

// Float returns the numeric reading of a scalar. Strings are accepted when
// they hold a number, since gauges are often reported pre-formatted.
func (v MetricValue) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func (v MetricValue) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindNode:
		return fmt.Sprintf("node(%d)", v.node.Len())
	}
	return ""
}

// Set stores a child. Re-setting an existing key keeps its original position.
func (n *MetricNode) Set(key string, v MetricValue) {
	if _, ok := n.children[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.children[key] = v
}

func (n *MetricNode) Get(key string) (MetricValue, bool) {
	if n == nil {
		return MetricValue{}, false
	}
	v, ok := n.children[key]
	return v, ok
}

func (n *MetricNode) Len() int {
	if n == nil {
		return 0
	}
	return len(n.keys)
}

func (n *MetricNode) Keys() []string {
	if n == nil {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Each visits children in insertion order.
func (n *MetricNode) Each(fn func(key string, v MetricValue)) {
	if n == nil {
		return
	}
	for _, k := range n.keys {
		fn(k, n.children[k])
	}
}

// ParseMetricValue decodes raw JSON into a MetricValue. Object key order is
// preserved; null members are dropped and arrays become nodes keyed by index.
func ParseMetricValue(raw []byte) (MetricValue, error) {
	if !gjson.ValidBytes(raw) {
		return MetricValue{}, errors.New("invalid metric JSON")
	}
	v := valueFromResult(gjson.ParseBytes(raw))
	if v.kind == KindInvalid {
		return MetricValue{}, errors.New("metric JSON holds no value")
	}
	return v, nil
}

func valueFromResult(r gjson.Result) MetricValue {
	switch {
	case r.IsObject():
		node := NewMetricNode()
		r.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.Null {
				return true
			}
			node.Set(key.String(), valueFromResult(value))
			return true
		})
		return NodeValue(node)
	case r.IsArray():
		node := NewMetricNode()
		i := 0
		r.ForEach(func(_, value gjson.Result) bool {
			if value.Type != gjson.Null {
				node.Set(strconv.Itoa(i), valueFromResult(value))
			}
			i++
			return true
		})
		return NodeValue(node)
	}

	switch r.Type {
	case gjson.Number:
		return NumberValue(r.Float())
	case gjson.String:
		return StringValue(r.Str)
	case gjson.True, gjson.False:
		return StringValue(r.Raw)
	}
	return MetricValue{}
}

func (v *MetricValue) UnmarshalJSON(data []byte) error {
	parsed, err := ParseMetricValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v MetricValue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v MetricValue) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNumber:
		b, err := json.Marshal(v.num)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindString:
		b, _ := json.Marshal(v.str)
		buf.Write(b)
	case KindNode:
		buf.WriteByte('{')
		for i, k := range v.node.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.node.children[k].writeJSON(buf); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
	return nil
}
