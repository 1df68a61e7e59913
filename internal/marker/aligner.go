package marker

import "executor-metrics-backend/internal/model"

// NearestIndex returns the index of the marker a sample at ts belongs to.
//
// The nearest marker strictly before ts wins. A marker exactly at ts does not
// count as the floor: the sample is attributed to the next marker after it.
// A sample before every marker, or an empty marker list, maps to index 0.
func NearestIndex(ts int64, markers []int64) int {
	floor, ceil := -1, -1
	equal := false
	for i, m := range markers {
		switch {
		case m < ts:
			if floor < 0 || m > markers[floor] {
				floor = i
			}
		case m > ts:
			if ceil < 0 || m < markers[ceil] {
				ceil = i
			}
		default:
			equal = true
		}
	}

	if equal && ceil >= 0 {
		return ceil
	}
	if floor >= 0 {
		return floor
	}
	return 0
}

// Aligner annotates points against the stage and job markers of a run.
type Aligner struct {
	stages []int64
	jobs   []int64
}

func NewAligner(timeline model.Timeline) *Aligner {
	return &Aligner{
		stages: timestamps(timeline.Stages),
		jobs:   timestamps(timeline.Jobs),
	}
}

func (a *Aligner) Align(ts int64) (stageIndex, jobIndex int) {
	return NearestIndex(ts, a.stages), NearestIndex(ts, a.jobs)
}

// Annotate fills the nearest stage/job indices of every point in place.
func (a *Aligner) Annotate(hosts []model.HostSeries) {
	for h := range hosts {
		points := hosts[h].Points
		for i := range points {
			points[i].NearestStageIndex, points[i].NearestJobIndex = a.Align(points[i].TimestampMillis)
		}
	}
}

func timestamps(markers []model.TimelineMarker) []int64 {
	out := make([]int64, len(markers))
	for i, m := range markers {
		out[i] = m.TimestampMillis
	}
	return out
}
