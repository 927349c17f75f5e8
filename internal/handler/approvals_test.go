package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/haatos/conveyor/internal"
	"github.com/haatos/conveyor/internal/engine"
)

func setupApprovalServer(gates *engine.GateRegistry) *echo.Echo {
	internal.Config = &internal.Configuration{QueueSize: 3, GatePageLimit: 50}
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	SetupApprovalRoutes(e.Group(""), gates)
	return e
}

func decisionRequest(gateID, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(
		http.MethodPost,
		"/api/approvals/"+gateID+"/decision",
		strings.NewReader(body),
	)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func TestApprovalHandler_GetPendingApprovals(t *testing.T) {
	t.Run("success - pending gates listed", func(t *testing.T) {
		// arrange
		gates := engine.NewGateRegistry()
		e := setupApprovalServer(gates)
		gate, cleanup := registerGate(gates)
		defer cleanup()

		req := httptest.NewRequest(http.MethodGet, "/api/approvals", nil)
		rec := httptest.NewRecorder()

		// act
		e.ServeHTTP(rec, req)

		// assert
		assert.Equal(t, http.StatusOK, rec.Code)
		var approvals []pendingApproval
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approvals))
		assert.Len(t, approvals, 1)
		assert.Equal(t, gate.ID, approvals[0].GateID)
		assert.Equal(t, "release/approve", approvals[0].Path)
		assert.Equal(t, "deploy?", approvals[0].Prompt)
	})
}

func TestApprovalHandler_PostApprovalDecision(t *testing.T) {
	t.Run("success - pending gate approved", func(t *testing.T) {
		// arrange
		gates := engine.NewGateRegistry()
		e := setupApprovalServer(gates)
		gate, cleanup := registerGate(gates)
		defer cleanup()

		req, rec := decisionRequest(gate.ID, `{"approved": true}`)

		// act
		e.ServeHTTP(rec, req)

		// assert
		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "approved", body["decision"])
		assert.Equal(t, engine.DecisionApproved, gate.Decision())
	})
	t.Run("failure - unknown gate id", func(t *testing.T) {
		// arrange
		e := setupApprovalServer(engine.NewGateRegistry())
		req, rec := decisionRequest("does-not-exist", `{"approved": true}`)

		// act
		e.ServeHTTP(rec, req)

		// assert
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("failure - second decision conflicts", func(t *testing.T) {
		// arrange
		gates := engine.NewGateRegistry()
		e := setupApprovalServer(gates)
		gate, cleanup := registerGate(gates)
		defer cleanup()

		first, firstRec := decisionRequest(gate.ID, `{"approved": false}`)
		e.ServeHTTP(firstRec, first)
		assert.Equal(t, http.StatusOK, firstRec.Code)

		req, rec := decisionRequest(gate.ID, `{"approved": true}`)

		// act
		e.ServeHTTP(rec, req)

		// assert
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, engine.DecisionDenied, gate.Decision())
	})
	t.Run("failure - missing approved field", func(t *testing.T) {
		// arrange
		gates := engine.NewGateRegistry()
		e := setupApprovalServer(gates)
		gate, cleanup := registerGate(gates)
		defer cleanup()

		req, rec := decisionRequest(gate.ID, `{}`)

		// act
		e.ServeHTTP(rec, req)

		// assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, engine.DecisionPending, gate.Decision())
	})
}

// registerGate exposes a gate the way a suspended run would, using the
// same registry surface the executor holds while awaiting a decision.
func registerGate(gates *engine.GateRegistry) (*engine.ApprovalGate, func()) {
	gate := engine.NewApprovalGate("release/approve", "deploy?", time.Minute)
	gates.Register(gate)
	return gate, func() { gates.Unregister(gate.ID) }
}
