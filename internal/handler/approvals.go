package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/conveyor/internal"
	"github.com/haatos/conveyor/internal/engine"
)

func SetupApprovalRoutes(g *echo.Group, gates *engine.GateRegistry) {
	h := NewApprovalHandler(gates)
	approvals := g.Group("/api/approvals")
	approvals.GET("", h.GetPendingApprovals)
	approvals.POST("/:gate_id/decision", h.PostApprovalDecision)
}

type ApprovalHandler struct {
	gates *engine.GateRegistry
}

func NewApprovalHandler(gates *engine.GateRegistry) *ApprovalHandler {
	return &ApprovalHandler{gates: gates}
}

type pendingApproval struct {
	GateID    string `json:"gate_id"`
	Path      string `json:"path"`
	Prompt    string `json:"prompt"`
	CreatedOn string `json:"created_on"`
}

func (h *ApprovalHandler) GetPendingApprovals(c echo.Context) error {
	gates := h.gates.Pending()
	if limit := int(internal.Config.GatePageLimit); limit > 0 && len(gates) > limit {
		gates = gates[:limit]
	}
	approvals := make([]pendingApproval, 0, len(gates))
	for _, g := range gates {
		approvals = append(approvals, pendingApproval{
			GateID:    g.ID,
			Path:      g.Path,
			Prompt:    g.Prompt,
			CreatedOn: g.Created.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return c.JSON(http.StatusOK, approvals)
}

func (h *ApprovalHandler) PostApprovalDecision(c echo.Context) error {
	params := new(DecisionParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid decision parameters")
	}
	if params.Approved == nil {
		return newError(nil, http.StatusBadRequest, "approved is required")
	}

	decision, err := h.gates.Decide(params.GateID, *params.Approved)
	if err != nil {
		var notFound *engine.GateNotFoundError
		if errors.As(err, &notFound) {
			return newError(err, http.StatusNotFound, "approval gate not found")
		}
		var resolved *engine.AlreadyResolvedError
		if errors.As(err, &resolved) {
			return newError(err, http.StatusConflict, err.Error())
		}
		return newError(err, http.StatusInternalServerError, "unable to resolve approval")
	}
	return c.JSON(http.StatusOK, map[string]string{"decision": string(decision)})
}
