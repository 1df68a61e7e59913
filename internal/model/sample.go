package model

import (
	"errors"
	"math"

	"github.com/tidwall/gjson"
)

// MetricSample is one snapshot reported by an executor.
type MetricSample struct {
	Host             string      `json:"host"`
	TimestampSeconds float64     `json:"timestamp"`
	Values           MetricValue `json:"values"`
}

// TimestampMillis converts the reported seconds to epoch millis.
func (s MetricSample) TimestampMillis() int64 {
	return int64(math.Round(s.TimestampSeconds * 1000))
}

// UnmarshalJSON accepts values either as a nested object or as a string
// holding the serialized object, which is how history files store them.
func (s *MetricSample) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("invalid sample JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return errors.New("sample is not a JSON object")
	}

	s.Host = root.Get("host").String()
	s.TimestampSeconds = root.Get("timestamp").Float()

	values := root.Get("values")
	if values.Type == gjson.String {
		if !gjson.Valid(values.Str) {
			return errors.New("serialized values are not valid JSON")
		}
		values = gjson.Parse(values.Str)
	}
	if !values.IsObject() {
		return errors.New("sample values are not an object")
	}
	s.Values = valueFromResult(values)
	return nil
}
