package dto

import "github.com/noah-isme/bus-dispatch-api/internal/models"

// SubmitClearanceRequest is the crew payload asking for clearance at a station.
type SubmitClearanceRequest struct {
	StationID   string             `json:"stationId" validate:"required"`
	RequestType models.RequestType `json:"requestType"`
}

// ResolveClearanceRequest captures an officer decision.
type ResolveClearanceRequest struct {
	Decision models.Decision `json:"decision" validate:"required"`
	Reason   string          `json:"reason"`
}

// ClearanceQuery mirrors supported listing filters.
type ClearanceQuery struct {
	AssignmentID string
	StationID    string
	RequestedBy  string
	Status       []models.RequestStatus
	Limit        int
	Offset       int
}
