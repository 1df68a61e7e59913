package dto

import "executor-metrics-backend/internal/model"

type MetricPathsResponse struct {
	RunID        string            `json:"runId"`
	Paths        []string          `json:"paths"`
	Descriptions map[string]string `json:"descriptions"`
}

type SummaryResponse struct {
	RunID   string             `json:"runId"`
	Network model.ChartPayload `json:"network"`
	Disk    model.ChartPayload `json:"disk"`
}

type RunListResponse struct {
	Runs []string `json:"runs"`
}

const (
	LiveMessagePaths = "paths"
	LiveMessageChart = "chart"
	LiveMessageError = "error"
)

// LiveMessage is pushed to live chart clients.
type LiveMessage struct {
	Type    string              `json:"type"`
	Paths   []string            `json:"paths,omitempty"`
	Payload *model.ChartPayload `json:"payload,omitempty"`
	Error   string              `json:"error,omitempty"`
}
