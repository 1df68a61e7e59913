package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"executor-metrics-backend/internal/dto"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/service"
	"executor-metrics-backend/internal/util"
)

type ChartController struct {
	chartService service.ChartService
}

func NewChartController(chartService service.ChartService) *ChartController {
	return &ChartController{
		chartService: chartService,
	}
}

func RegisterChartRoutes(router *gin.Engine, controller *ChartController) {
	v1Runs := router.Group("/api/v1/runs")
	{
		v1Runs.GET("", controller.GetRuns)
		v1Runs.GET("/:runId/metrics", controller.GetMetricPaths)
		v1Runs.GET("/:runId/chart", controller.GetChart)
		v1Runs.GET("/:runId/summary", controller.GetSummary)
		v1Runs.GET("/:runId/timeline", controller.GetTimeline)
		v1Runs.POST("/:runId/timeline", controller.RecordTimelineEvent)
	}
}

// GetRuns godoc
// @Summary      List runs
// @Description  Lists the run ids that have stored samples.
// @Tags         runs
// @Produce      json
// @Success      200  {object}  dto.RunListResponse
// @Failure      500  {object}  model.Response "Internal server error"
// @Router       /api/v1/runs [get]
func (c *ChartController) GetRuns(ctx *gin.Context) {
	result, err := c.chartService.ListRuns(ctx.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error listing runs")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Failed to list runs", nil))
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetMetricPaths godoc
// @Summary      Get selectable metric paths
// @Description  Flattens the first stored sample of a run into sorted dotted metric paths, with descriptions where known.
// @Tags         charts
// @Produce      json
// @Param        runId  path      string  true  "Run id (e.g. app-20240101-0001)"
// @Success      200    {object}  dto.MetricPathsResponse
// @Failure      404    {object}  model.Response "Run has no samples"
// @Failure      500    {object}  model.Response "Internal server error"
// @Router       /api/v1/runs/{runId}/metrics [get]
func (c *ChartController) GetMetricPaths(ctx *gin.Context) {
	runID := ctx.Param("runId")
	result, err := c.chartService.GetMetricPaths(ctx.Request.Context(), runID)
	if err != nil {
		c.handleError(ctx, err, "Failed to get metric paths")
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetChart godoc
// @Summary      Get a metric chart
// @Description  Builds per-host series for one metric path over the run's history, backfilled and aligned to job and stage markers. An empty or NULL path returns an empty chart.
// @Tags         charts
// @Produce      json
// @Param        runId      path      string  true   "Run id"
// @Param        path       query     string  false  "Dotted metric path (e.g. sigar.cpu.combined)"
// @Param        startTime  query     string  false  "Start time (ISO 8601 or epoch ms)"
// @Param        endTime    query     string  false  "End time (ISO 8601 or epoch ms)"
// @Success      200        {object}  model.ChartPayload
// @Failure      400        {object}  model.Response "Invalid query parameters"
// @Failure      500        {object}  model.Response "Internal server error"
// @Router       /api/v1/runs/{runId}/chart [get]
func (c *ChartController) GetChart(ctx *gin.Context) {
	var req dto.ChartRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid query parameters: "+err.Error(), nil))
		return
	}
	timeRange, err := util.ParseTimeRange(req.StartTime, req.EndTime)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse(err.Error(), nil))
		return
	}

	result, err := c.chartService.GetChart(ctx.Request.Context(), ctx.Param("runId"), req.Path, timeRange)
	if err != nil {
		c.handleError(ctx, err, "Failed to build chart")
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetSummary godoc
// @Summary      Get resource summary charts
// @Description  Per-host network (rx+tx) and disk (read+written) throughput over the run.
// @Tags         charts
// @Produce      json
// @Param        runId      path      string  true   "Run id"
// @Param        startTime  query     string  false  "Start time (ISO 8601 or epoch ms)"
// @Param        endTime    query     string  false  "End time (ISO 8601 or epoch ms)"
// @Success      200        {object}  dto.SummaryResponse
// @Failure      400        {object}  model.Response "Invalid query parameters"
// @Failure      500        {object}  model.Response "Internal server error"
// @Router       /api/v1/runs/{runId}/summary [get]
func (c *ChartController) GetSummary(ctx *gin.Context) {
	timeRange, err := util.ParseTimeRange(ctx.Query("startTime"), ctx.Query("endTime"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse(err.Error(), nil))
		return
	}
	result, err := c.chartService.GetSummary(ctx.Request.Context(), ctx.Param("runId"), timeRange)
	if err != nil {
		c.handleError(ctx, err, "Failed to build summary")
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetTimeline godoc
// @Summary      Get job and stage markers
// @Tags         timeline
// @Produce      json
// @Param        runId  path      string  true  "Run id"
// @Success      200    {object}  model.Timeline
// @Failure      500    {object}  model.Response "Internal server error"
// @Router       /api/v1/runs/{runId}/timeline [get]
func (c *ChartController) GetTimeline(ctx *gin.Context) {
	result, err := c.chartService.GetTimeline(ctx.Request.Context(), ctx.Param("runId"))
	if err != nil {
		c.handleError(ctx, err, "Failed to get timeline")
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// RecordTimelineEvent godoc
// @Summary      Record a job or stage submission
// @Tags         timeline
// @Accept       json
// @Produce      json
// @Param        runId    path      string                    true  "Run id"
// @Param        request  body      dto.TimelineEventRequest  true  "Submission event"
// @Success      201      {object}  model.Response
// @Failure      400      {object}  model.Response "Invalid request body"
// @Failure      500      {object}  model.Response "Internal server error"
// @Router       /api/v1/runs/{runId}/timeline [post]
func (c *ChartController) RecordTimelineEvent(ctx *gin.Context) {
	var req dto.TimelineEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Invalid timeline event body")
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid request body: "+err.Error(), nil))
		return
	}
	if err := c.chartService.RecordTimelineEvent(ctx.Request.Context(), ctx.Param("runId"), req); err != nil {
		c.handleError(ctx, err, "Failed to record timeline event")
		return
	}
	ctx.JSON(http.StatusCreated, model.NewResponse("Recorded", nil))
}

func (c *ChartController) handleError(ctx *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, service.ErrRunNotFound):
		ctx.JSON(http.StatusNotFound, model.NewResponse(err.Error(), nil))
	case errors.Is(err, service.ErrInvalidPath):
		ctx.JSON(http.StatusBadRequest, model.NewResponse(err.Error(), nil))
	default:
		log.Error().Err(err).Str("run_id", ctx.Param("runId")).Msg(message)
		ctx.JSON(http.StatusInternalServerError, model.NewResponse(message, nil))
	}
}
