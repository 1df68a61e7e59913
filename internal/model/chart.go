package model

// TimelineMarker is a job or stage submission event.
type TimelineMarker struct {
	TimestampMillis int64  `json:"timestampMillis"`
	Label           string `json:"label,omitempty"`
}

// Timeline holds the markers of one run, each list in arrival order.
type Timeline struct {
	Jobs   []TimelineMarker `json:"jobs"`
	Stages []TimelineMarker `json:"stages"`
}

// EarliestStage returns the smallest stage submission time. Jobs do not
// anchor backfill.
func (t Timeline) EarliestStage() (int64, bool) {
	var min int64
	found := false
	for _, m := range t.Stages {
		if !found || m.TimestampMillis < min {
			min = m.TimestampMillis
			found = true
		}
	}
	return min, found
}

// TimedPoint is one chart point, annotated with the nearest stage and job.
type TimedPoint struct {
	TimestampMillis   int64   `json:"timestampMillis"`
	Value             float64 `json:"value"`
	HostLabel         string  `json:"hostLabel"`
	ExecutorID        string  `json:"executorId,omitempty"`
	NearestStageIndex int     `json:"nearestStageIndex"`
	NearestJobIndex   int     `json:"nearestJobIndex"`
	Synthetic         bool    `json:"synthetic,omitempty"`
}

// HostSeries is the ordered points of one canonical host.
type HostSeries struct {
	Host   string       `json:"host"`
	Points []TimedPoint `json:"points"`
}

// ChartPayload is what the renderer consumes for one selected metric path.
type ChartPayload struct {
	MetricPath  string           `json:"metricPath"`
	Description string           `json:"description,omitempty"`
	Series      [][]TimedPoint   `json:"series"`
	Legend      []string         `json:"legend"`
	Colors      []string         `json:"colors,omitempty"`
	Markers     []TimelineMarker `json:"markers"`
	JobMarkers  []TimelineMarker `json:"jobMarkers"`
}

// EmptyPayload is the cleared chart: no series, no markers.
func EmptyPayload(metricPath string) ChartPayload {
	return ChartPayload{
		MetricPath: metricPath,
		Series:     [][]TimedPoint{},
		Legend:     []string{},
		Markers:    []TimelineMarker{},
		JobMarkers: []TimelineMarker{},
	}
}

// TimelineEvent is the stored form of a job or stage submission.
type TimelineEvent struct {
	ID                uint   `gorm:"primaryKey"`
	RunID             string `gorm:"size:128;index:idx_timeline_run"`
	Kind              string `gorm:"size:16"`
	Name              string `gorm:"size:255"`
	SubmittedAtMillis int64
}

func (TimelineEvent) TableName() string { return "timeline_events" }
