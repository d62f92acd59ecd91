package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bus-dispatch-api/internal/dto"
	"github.com/noah-isme/bus-dispatch-api/internal/models"
	"github.com/noah-isme/bus-dispatch-api/pkg/response"
)

type assignmentService interface {
	Create(ctx context.Context, req dto.CreateAssignmentRequest) (*models.Assignment, error)
	Transition(ctx context.Context, id string, req dto.TransitionAssignmentRequest) (*models.Assignment, error)
	AdvanceStation(ctx context.Context, actor models.Actor, id string, req dto.AdvanceStationRequest) (*models.Assignment, error)
	Get(ctx context.Context, id string) (*models.Assignment, error)
	CurrentForCrew(ctx context.Context, userID string) (*models.Assignment, error)
	List(ctx context.Context, query dto.AssignmentQuery) ([]models.Assignment, error)
}

type tripSheetService interface {
	Generate(ctx context.Context, assignmentID string, format dto.TripSheetFormat) (*dto.TripSheet, error)
}

// AssignmentHandler exposes assignment lifecycle endpoints.
type AssignmentHandler struct {
	assignments assignmentService
	tripSheets  tripSheetService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments assignmentService, tripSheets tripSheetService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, tripSheets: tripSheets}
}

// Create godoc
// @Summary Create an active assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req dto.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	assignment, err := h.assignments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Get godoc
// @Summary Get assignment detail
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.assignments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignment)
}

// Current godoc
// @Summary Current active assignment of the calling crew member
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments/current [get]
func (h *AssignmentHandler) Current(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	assignment, err := h.assignments.CurrentForCrew(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignment)
}

// List godoc
// @Summary List assignments
// @Tags Assignments
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param busId query string false "Bus"
// @Param driverId query string false "Driver"
// @Param conductorId query string false "Conductor"
// @Param routeId query string false "Route"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	query := dto.AssignmentQuery{
		BusID:       c.Query("busId"),
		DriverID:    c.Query("driverId"),
		ConductorID: c.Query("conductorId"),
		RouteID:     c.Query("routeId"),
	}
	for _, s := range csvQuery(c, "status") {
		query.Status = append(query.Status, models.AssignmentStatus(s))
	}
	query.Limit, query.Offset = pageFromQuery(c)

	assignments, err := h.assignments.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, &response.Page{Limit: query.Limit, Offset: query.Offset, Count: len(assignments)})
}

// Transition godoc
// @Summary Change assignment status
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.TransitionAssignmentRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/transition [post]
func (h *AssignmentHandler) Transition(c *gin.Context) {
	var req dto.TransitionAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	assignment, err := h.assignments.Transition(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignment)
}

// Position godoc
// @Summary Report station progress
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.AdvanceStationRequest true "Position"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/position [post]
func (h *AssignmentHandler) Position(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AdvanceStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	assignment, err := h.assignments.AdvanceStation(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignment)
}

// TripSheet godoc
// @Summary Export the trip sheet
// @Tags Assignments
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Assignment ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /assignments/{id}/trip-sheet [get]
func (h *AssignmentHandler) TripSheet(c *gin.Context) {
	sheet, err := h.tripSheets.Generate(c.Request.Context(), c.Param("id"), dto.TripSheetFormat(c.DefaultQuery("format", string(dto.TripSheetCSV))))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+sheet.Filename+`"`)
	c.Data(http.StatusOK, sheet.ContentType, sheet.Body)
}
