package dto

import "executor-metrics-backend/internal/util"

// SampleQuery selects a run's stored samples, optionally bounded in time.
type SampleQuery struct {
	RunID string
	Range util.TimeRange
	Limit int
}

// ChartRequest is the query string of the chart endpoints.
type ChartRequest struct {
	Path      string `form:"path"`
	StartTime string `form:"startTime"`
	EndTime   string `form:"endTime"`
}

// TimelineEventRequest records one job or stage submission.
type TimelineEventRequest struct {
	Kind              string `json:"kind" binding:"required,oneof=job stage"`
	Name              string `json:"name"`
	SubmittedAtMillis int64  `json:"submittedAtMillis" binding:"required"`
}

// LiveCommand is a message sent by a live chart client.
type LiveCommand struct {
	Select *string `json:"select"`
}
