package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/conveyor/internal"
	"github.com/haatos/conveyor/internal/service"
	"github.com/haatos/conveyor/internal/store"
)

func SetupPipelineRoutes(g *echo.Group, pipelineService *service.PipelineService) {
	h := NewPipelineHandler(pipelineService)
	g.POST(
		"/api/pipelines/:pipeline_id/webhook-trigger/:branch",
		h.PostPipelineRunWebhookTrigger,
		WebhookKeyMiddleware(pipelineService),
	)
	pipelines := g.Group("/api/pipelines")
	pipelines.GET("", h.GetPipelines)
	pipelines.POST("", h.PostPipeline)
	pipelines.GET("/:pipeline_id", h.GetPipeline)
	pipelines.PATCH("/:pipeline_id", h.PatchPipeline)
	pipelines.DELETE("/:pipeline_id", h.DeletePipeline)
	pipelines.PATCH("/:pipeline_id/schedule", h.PatchPipelineSchedule)
	pipelines.GET("/:pipeline_id/runs", h.GetPipelineRuns)
	pipelines.POST("/:pipeline_id/runs", h.PostPipelineRun)
	pipelines.GET("/:pipeline_id/runs/:run_id", h.GetPipelineRun)
	pipelines.GET("/:pipeline_id/runs/:run_id/stages", h.GetPipelineRunStages)
	pipelines.POST("/:pipeline_id/runs/:run_id/cancel", h.PostCancelPipelineRun)
}

type PipelineHandler struct {
	pipelineService *service.PipelineService
}

func NewPipelineHandler(pipelineService *service.PipelineService) *PipelineHandler {
	return &PipelineHandler{pipelineService: pipelineService}
}

func (h *PipelineHandler) GetPipelines(c echo.Context) error {
	pipelines, err := h.pipelineService.ListPipelines(c.Request().Context())
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list pipelines")
	}
	return c.JSON(http.StatusOK, pipelines)
}

func (h *PipelineHandler) PostPipeline(c echo.Context) error {
	params := new(PipelineParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline parameters")
	}

	p, err := h.pipelineService.CreatePipeline(
		c.Request().Context(),
		params.Name,
		params.Description,
		params.Definition,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "pipeline name already in use")
		}
		return newError(err, http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *PipelineHandler) GetPipeline(c echo.Context) error {
	params := new(PipelineParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline id")
	}
	p, err := h.pipelineService.GetPipelineByID(c.Request().Context(), params.PipelineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "pipeline not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read pipeline")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PipelineHandler) PatchPipeline(c echo.Context) error {
	params := new(PipelineParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline parameters")
	}
	if err := h.pipelineService.UpdatePipeline(
		c.Request().Context(),
		params.PipelineID,
		params.Name,
		params.Description,
		params.Definition,
	); err != nil {
		return newError(err, http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PipelineHandler) DeletePipeline(c echo.Context) error {
	params := new(PipelineParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline id")
	}
	if err := h.pipelineService.DeletePipeline(
		c.Request().Context(), params.PipelineID,
	); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to delete pipeline")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PipelineHandler) PatchPipelineSchedule(c echo.Context) error {
	params := new(PipelineParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid schedule parameters")
	}
	if params.Schedule != nil && params.Branch == nil {
		return newError(nil, http.StatusBadRequest, "schedule requires a branch")
	}
	if err := h.pipelineService.UpdatePipelineSchedule(
		c.Request().Context(),
		params.PipelineID,
		params.Schedule,
		params.Branch,
	); err != nil {
		return newError(err, http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PipelineHandler) GetPipelineRuns(c echo.Context) error {
	params := new(RunParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline id")
	}
	runs, err := h.pipelineService.ListPipelineRuns(c.Request().Context(), params.PipelineID)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list runs")
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *PipelineHandler) PostPipelineRun(c echo.Context) error {
	params := new(RunParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run parameters")
	}
	if params.Branch == "" {
		return newError(nil, http.StatusBadRequest, "branch is required")
	}
	run, err := h.triggerRun(c, params.PipelineID, params.Branch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, run)
}

func (h *PipelineHandler) PostPipelineRunWebhookTrigger(c echo.Context) error {
	params := new(RunParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run parameters")
	}
	run, err := h.triggerRun(c, params.PipelineID, params.Branch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, run)
}

func (h *PipelineHandler) triggerRun(
	c echo.Context,
	pipelineID int64,
	branch string,
) (*store.Run, error) {
	ctx := c.Request().Context()
	run, err := h.pipelineService.CreatePipelineRun(ctx, pipelineID, branch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(err, http.StatusNotFound, "pipeline not found")
		}
		return nil, newError(err, http.StatusInternalServerError, "unable to create run")
	}
	if err := h.pipelineService.EnqueueRun(run); err != nil {
		return nil, newError(err, http.StatusTooManyRequests, "run queue is full")
	}
	return run, nil
}

func (h *PipelineHandler) GetPipelineRun(c echo.Context) error {
	params := new(RunParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run id")
	}
	run, err := h.pipelineService.GetRunByID(c.Request().Context(), params.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "run not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read run")
	}
	return c.JSON(http.StatusOK, run)
}

func (h *PipelineHandler) GetPipelineRunStages(c echo.Context) error {
	params := new(RunParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run id")
	}
	stages, err := h.pipelineService.ListStageResults(c.Request().Context(), params.RunID)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list stage results")
	}
	return c.JSON(http.StatusOK, stages)
}

func (h *PipelineHandler) PostCancelPipelineRun(c echo.Context) error {
	params := new(RunParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run id")
	}
	h.pipelineService.CancelRun(params.PipelineID, params.RunID)
	return c.NoContent(http.StatusAccepted)
}

// WebhookKeyMiddleware guards the webhook trigger endpoint with an API
// key header.
func WebhookKeyMiddleware(
	pipelineService *service.PipelineService,
) func(next echo.HandlerFunc) echo.HandlerFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value := c.Request().Header.Get(internal.WebhookTriggerKeyHeader)
			if value == "" {
				return newError(nil, http.StatusUnauthorized, "missing webhook key")
			}
			if _, err := pipelineService.GetAPIKeyByValue(
				c.Request().Context(), value,
			); err != nil {
				return newError(err, http.StatusUnauthorized, "invalid webhook key")
			}
			return next(c)
		}
	}
}
