package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/conveyor/internal/service"
)

func SetupTargetRoutes(g *echo.Group, pipelineService *service.PipelineService) {
	h := NewTargetHandler(pipelineService)
	targets := g.Group("/api/targets")
	targets.GET("", h.GetTargets)
	targets.POST("", h.PostTarget)
	targets.DELETE("/:target_id", h.DeleteTarget)
}

type TargetHandler struct {
	pipelineService *service.PipelineService
}

func NewTargetHandler(pipelineService *service.PipelineService) *TargetHandler {
	return &TargetHandler{pipelineService: pipelineService}
}

func (h *TargetHandler) GetTargets(c echo.Context) error {
	targets, err := h.pipelineService.ListTargets(c.Request().Context())
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list targets")
	}
	return c.JSON(http.StatusOK, targets)
}

func (h *TargetHandler) PostTarget(c echo.Context) error {
	params := new(TargetParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid target parameters")
	}
	if params.Name == "" || params.Endpoint == "" {
		return newError(nil, http.StatusBadRequest, "name and endpoint are required")
	}

	t, err := h.pipelineService.CreateTarget(
		c.Request().Context(),
		params.Name,
		params.Description,
		params.Endpoint,
		params.CredentialName,
		params.ActivateScript,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "target name already in use")
		}
		return newError(err, http.StatusInternalServerError, "unable to create target")
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TargetHandler) DeleteTarget(c echo.Context) error {
	params := new(TargetParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid target id")
	}
	if err := h.pipelineService.DeleteTarget(
		c.Request().Context(), params.TargetID,
	); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to delete target")
	}
	return c.NoContent(http.StatusNoContent)
}
