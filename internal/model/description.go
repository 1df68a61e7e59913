package model

// MetricDescription is the tooltip text shown for a metric path.
type MetricDescription struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}
