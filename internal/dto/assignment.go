package dto

import (
	"time"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
)

// CreateAssignmentRequest pairs a bus with a crew on a route.
type CreateAssignmentRequest struct {
	BusID       string    `json:"busId" validate:"required"`
	DriverID    string    `json:"driverId" validate:"required"`
	ConductorID string    `json:"conductorId" validate:"required"`
	RouteID     string    `json:"routeId" validate:"required"`
	StartTime   time.Time `json:"startTime" validate:"required"`
}

// TransitionAssignmentRequest asks for a status change.
type TransitionAssignmentRequest struct {
	Status models.AssignmentStatus `json:"status" validate:"required"`
}

// AdvanceStationRequest reports physical progress of an active trip.
type AdvanceStationRequest struct {
	StationID string `json:"stationId" validate:"required"`
	InTransit bool   `json:"inTransit"`
}

// AssignmentQuery mirrors supported listing filters.
type AssignmentQuery struct {
	Status      []models.AssignmentStatus
	BusID       string
	DriverID    string
	ConductorID string
	RouteID     string
	Limit       int
	Offset      int
}
