package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bus-dispatch-api/internal/dto"
	"github.com/noah-isme/bus-dispatch-api/internal/middleware"
	"github.com/noah-isme/bus-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/bus-dispatch-api/pkg/errors"
)

type assignmentServiceMock struct {
	createResp *models.Assignment
	err        error
	lastQuery  dto.AssignmentQuery
	lastActor  models.Actor
	lastID     string
}

func (m *assignmentServiceMock) Create(ctx context.Context, req dto.CreateAssignmentRequest) (*models.Assignment, error) {
	return m.createResp, m.err
}

func (m *assignmentServiceMock) Transition(ctx context.Context, id string, req dto.TransitionAssignmentRequest) (*models.Assignment, error) {
	m.lastID = id
	return &models.Assignment{ID: id, Status: req.Status}, m.err
}

func (m *assignmentServiceMock) AdvanceStation(ctx context.Context, actor models.Actor, id string, req dto.AdvanceStationRequest) (*models.Assignment, error) {
	m.lastActor = actor
	return &models.Assignment{ID: id}, m.err
}

func (m *assignmentServiceMock) Get(ctx context.Context, id string) (*models.Assignment, error) {
	return &models.Assignment{ID: id}, m.err
}

func (m *assignmentServiceMock) CurrentForCrew(ctx context.Context, userID string) (*models.Assignment, error) {
	return &models.Assignment{ID: "current", DriverID: userID}, m.err
}

func (m *assignmentServiceMock) List(ctx context.Context, query dto.AssignmentQuery) ([]models.Assignment, error) {
	m.lastQuery = query
	return []models.Assignment{{ID: "a1"}}, m.err
}

type tripSheetMock struct {
	err error
}

func (m tripSheetMock) Generate(ctx context.Context, assignmentID string, format dto.TripSheetFormat) (*dto.TripSheet, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.TripSheet{Filename: "trip-sheet-" + assignmentID + ".csv", ContentType: "text/csv", Body: []byte("a,b\n")}, nil
}

type clearanceServiceMock struct {
	err       error
	lastQuery dto.ClearanceQuery
	lastReq   dto.ResolveClearanceRequest
	lastActor models.Actor
}

func (m *clearanceServiceMock) Submit(ctx context.Context, actor models.Actor, assignmentID string, req dto.SubmitClearanceRequest) (*models.ClearanceRequest, error) {
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.ClearanceRequest{ID: "r1", AssignmentID: assignmentID, StationID: req.StationID, Status: models.RequestStatusPending}, nil
}

func (m *clearanceServiceMock) Resolve(ctx context.Context, actor models.Actor, requestID string, req dto.ResolveClearanceRequest) (*models.ClearanceRequest, error) {
	m.lastActor = actor
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.ClearanceRequest{ID: requestID, Status: req.Decision.Outcome()}, nil
}

func (m *clearanceServiceMock) Get(ctx context.Context, actor models.Actor, id string) (*models.ClearanceRequest, error) {
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.ClearanceRequest{ID: id}, nil
}

func (m *clearanceServiceMock) List(ctx context.Context, query dto.ClearanceQuery) ([]models.ClearanceRequest, error) {
	m.lastQuery = query
	return nil, m.err
}

func newTestContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body struct {
		Error map[string]interface{} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error
}

var (
	officerClaims = &models.JWTClaims{UserID: "O1", Role: models.RoleOfficer}
	driverClaims  = &models.JWTClaims{UserID: "D1", Role: models.RoleDriver}
)

func TestAssignmentHandlerCreateMapsBusyError(t *testing.T) {
	busy := appErrors.Clone(appErrors.ErrResourceBusy, "driver D1 already has an active assignment").
		WithDetails(map[string]interface{}{"resource": "driver", "id": "D1"})
	h := NewAssignmentHandler(&assignmentServiceMock{err: busy}, tripSheetMock{})

	c, w := newTestContext(http.MethodPost, "/assignments", `{"busId":"B2","driverId":"D1","conductorId":"C2","routeId":"R1","startTime":"2024-05-01T08:00:00Z"}`, officerClaims)
	h.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeError(t, w)
	assert.Equal(t, "RESOURCE_BUSY", errBody["code"])
	assert.Equal(t, "D1", errBody["details"].(map[string]interface{})["id"])
}

func TestAssignmentHandlerCreateInvalidBody(t *testing.T) {
	h := NewAssignmentHandler(&assignmentServiceMock{}, tripSheetMock{})

	c, w := newTestContext(http.MethodPost, "/assignments", `{"busId":`, officerClaims)
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w)["code"])
}

func TestAssignmentHandlerListParsesFilters(t *testing.T) {
	svc := &assignmentServiceMock{}
	h := NewAssignmentHandler(svc, tripSheetMock{})

	c, w := newTestContext(http.MethodGet, "/assignments?status=active,%20completed&busId=B1&limit=900&offset=5", "", officerClaims)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.AssignmentStatus{models.AssignmentStatusActive, models.AssignmentStatusCompleted}, svc.lastQuery.Status)
	assert.Equal(t, "B1", svc.lastQuery.BusID)
	assert.Equal(t, maxLimit, svc.lastQuery.Limit)
	assert.Equal(t, 5, svc.lastQuery.Offset)
}

func TestAssignmentHandlerPositionPassesActor(t *testing.T) {
	svc := &assignmentServiceMock{}
	h := NewAssignmentHandler(svc, tripSheetMock{})

	c, w := newTestContext(http.MethodPost, "/assignments/a1/position", `{"stationId":"S2","inTransit":true}`, driverClaims)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	h.Position(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Actor{ID: "D1", Role: models.RoleDriver}, svc.lastActor)
}

func TestAssignmentHandlerPositionRequiresClaims(t *testing.T) {
	h := NewAssignmentHandler(&assignmentServiceMock{}, tripSheetMock{})

	c, w := newTestContext(http.MethodPost, "/assignments/a1/position", `{"stationId":"S2"}`, nil)
	h.Position(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAssignmentHandlerTripSheet(t *testing.T) {
	h := NewAssignmentHandler(&assignmentServiceMock{}, tripSheetMock{})
	c, w := newTestContext(http.MethodGet, "/assignments/a1/trip-sheet", "", officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	h.TripSheet(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "trip-sheet-a1.csv")

	disabled := NewAssignmentHandler(&assignmentServiceMock{}, tripSheetMock{err: appErrors.ErrFeatureDisabled})
	c, w = newTestContext(http.MethodGet, "/assignments/a1/trip-sheet", "", officerClaims)
	disabled.TripSheet(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearanceHandlerSubmit(t *testing.T) {
	svc := &clearanceServiceMock{}
	h := NewClearanceHandler(svc)

	c, w := newTestContext(http.MethodPost, "/assignments/a1/requests", `{"stationId":"S1","requestType":"DEPARTURE"}`, driverClaims)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	h.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "D1", svc.lastActor.ID)
}

func TestClearanceHandlerSubmitStationNotOnRoute(t *testing.T) {
	h := NewClearanceHandler(&clearanceServiceMock{err: appErrors.Clone(appErrors.ErrStationNotOnRoute, "station S9 is not on route R1")})

	c, w := newTestContext(http.MethodPost, "/assignments/a1/requests", `{"stationId":"S9"}`, driverClaims)
	h.Submit(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "STATION_NOT_ON_ROUTE", decodeError(t, w)["code"])
}

func TestClearanceHandlerResolve(t *testing.T) {
	svc := &clearanceServiceMock{}
	h := NewClearanceHandler(svc)

	c, w := newTestContext(http.MethodPost, "/requests/r1/resolve", `{"decision":"REJECT","reason":"platform blocked"}`, officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	h.Resolve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DecisionReject, svc.lastReq.Decision)
	assert.Equal(t, "platform blocked", svc.lastReq.Reason)

	svc.err = appErrors.ErrAlreadyResolved
	c, w = newTestContext(http.MethodPost, "/requests/r1/resolve", `{"decision":"APPROVE"}`, officerClaims)
	h.Resolve(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestClearanceHandlerListScopesCrew(t *testing.T) {
	svc := &clearanceServiceMock{}
	h := NewClearanceHandler(svc)

	c, w := newTestContext(http.MethodGet, "/requests?stationId=S1&status=pending", "", driverClaims)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "D1", svc.lastQuery.RequestedBy)
	assert.Equal(t, []models.RequestStatus{models.RequestStatusPending}, svc.lastQuery.Status)

	c, _ = newTestContext(http.MethodGet, "/requests?stationId=S1", "", officerClaims)
	h.List(c)
	assert.Empty(t, svc.lastQuery.RequestedBy)
	assert.Equal(t, "S1", svc.lastQuery.StationID)
}

func TestClearanceHandlerGetForwardsActor(t *testing.T) {
	svc := &clearanceServiceMock{}
	h := NewClearanceHandler(svc)

	c, w := newTestContext(http.MethodGet, "/requests/r1", "", driverClaims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	h.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "D1", svc.lastActor.ID)

	svc.err = appErrors.Clone(appErrors.ErrForbidden, "caller did not submit this request")
	c, w = newTestContext(http.MethodGet, "/requests/r2", "", driverClaims)
	c.Params = gin.Params{{Key: "id", Value: "r2"}}
	h.Get(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClearanceHandlerInternalErrorsAreOpaque(t *testing.T) {
	h := NewClearanceHandler(&clearanceServiceMock{err: errors.New("pq: connection refused")})

	c, w := newTestContext(http.MethodGet, "/requests/r1", "", officerClaims)
	h.Get(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})

	c, w := newTestContext(http.MethodGet, "/ready", "", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

}

func TestMetricsHandlerPrometheusWithoutRegistry(t *testing.T) {
	h := NewMetricsHandler(nil, nil)

	c, w := newTestContext(http.MethodGet, "/metrics", "", nil)
	h.Prometheus(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, w.Body.String())
}
