package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bus-dispatch-api/internal/dto"
	"github.com/noah-isme/bus-dispatch-api/internal/models"
	"github.com/noah-isme/bus-dispatch-api/pkg/response"
)

type clearanceService interface {
	Submit(ctx context.Context, actor models.Actor, assignmentID string, req dto.SubmitClearanceRequest) (*models.ClearanceRequest, error)
	Resolve(ctx context.Context, actor models.Actor, requestID string, req dto.ResolveClearanceRequest) (*models.ClearanceRequest, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.ClearanceRequest, error)
	List(ctx context.Context, query dto.ClearanceQuery) ([]models.ClearanceRequest, error)
}

// ClearanceHandler exposes clearance request endpoints.
type ClearanceHandler struct {
	requests clearanceService
}

// NewClearanceHandler constructs ClearanceHandler.
func NewClearanceHandler(requests clearanceService) *ClearanceHandler {
	return &ClearanceHandler{requests: requests}
}

// Submit godoc
// @Summary Request clearance at a station
// @Tags Clearance
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.SubmitClearanceRequest true "Clearance request"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments/{id}/requests [post]
func (h *ClearanceHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitClearanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	request, err := h.requests.Submit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Get godoc
// @Summary Get clearance request
// @Tags Clearance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *ClearanceHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	request, err := h.requests.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, request)
}

// List godoc
// @Summary List clearance requests
// @Tags Clearance
// @Produce json
// @Param stationId query string false "Station"
// @Param assignmentId query string false "Assignment"
// @Param status query string false "Comma separated statuses"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *ClearanceHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	query := dto.ClearanceQuery{
		StationID:    c.Query("stationId"),
		AssignmentID: c.Query("assignmentId"),
	}
	// Crew only see their own submissions.
	if actor.IsCrew() {
		query.RequestedBy = actor.ID
	}
	for _, s := range csvQuery(c, "status") {
		query.Status = append(query.Status, models.RequestStatus(s))
	}
	query.Limit, query.Offset = pageFromQuery(c)

	requests, err := h.requests.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, &response.Page{Limit: query.Limit, Offset: query.Offset, Count: len(requests)})
}

// Resolve godoc
// @Summary Approve or reject a pending request
// @Tags Clearance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ResolveClearanceRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/resolve [post]
func (h *ClearanceHandler) Resolve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ResolveClearanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	request, err := h.requests.Resolve(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, request)
}
