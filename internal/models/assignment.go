package models

import "time"

// AssignmentStatus captures the lifecycle of a bus trip assignment.
type AssignmentStatus string

const (
	AssignmentStatusActive    AssignmentStatus = "ACTIVE"
	AssignmentStatusCompleted AssignmentStatus = "COMPLETED"
	AssignmentStatusCancelled AssignmentStatus = "CANCELLED"
)

// Valid reports whether the status is a known value.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentStatusActive, AssignmentStatusCompleted, AssignmentStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further status change is permitted.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentStatusCompleted || s == AssignmentStatusCancelled
}

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusActive: {AssignmentStatusCompleted, AssignmentStatusCancelled},
}

// CanTransitionAssignment reports whether from -> to is in the allowed set.
func CanTransitionAssignment(from, to AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Assignment pairs a bus with its crew on a route for one operational trip.
type Assignment struct {
	ID               string           `db:"id" json:"id"`
	BusID            string           `db:"bus_id" json:"busId"`
	DriverID         string           `db:"driver_id" json:"driverId"`
	ConductorID      string           `db:"conductor_id" json:"conductorId"`
	RouteID          string           `db:"route_id" json:"routeId"`
	Status           AssignmentStatus `db:"status" json:"status"`
	CurrentStationID *string          `db:"current_station_id" json:"currentStationId,omitempty"`
	FromStationID    *string          `db:"from_station_id" json:"fromStationId,omitempty"`
	InTransit        bool             `db:"in_transit" json:"inTransit"`
	StartTime        time.Time        `db:"start_time" json:"startTime"`
	EndTime          *time.Time       `db:"end_time" json:"endTime,omitempty"`
	StartedAt        *time.Time       `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt      *time.Time       `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}

// ApplyStatus moves the assignment to status and stamps the derived timestamps.
// Callers must check CanTransitionAssignment first.
func (a *Assignment) ApplyStatus(status AssignmentStatus, at time.Time) {
	a.Status = status
	switch status {
	case AssignmentStatusActive:
		SetOnce(&a.StartedAt, at)
	case AssignmentStatusCompleted:
		SetOnce(&a.CompletedAt, at)
		SetOnce(&a.EndTime, at)
	}
	a.UpdatedAt = at
}

// Reposition records physical progress. inTransit means the bus has left
// stationID; otherwise the bus is standing at stationID.
func (a *Assignment) Reposition(stationID string, inTransit bool, at time.Time) {
	station := stationID
	if inTransit {
		a.FromStationID = &station
		a.CurrentStationID = nil
	} else {
		a.CurrentStationID = &station
	}
	a.InTransit = inTransit
	a.UpdatedAt = at
}

// StationContext returns the station the bus is currently associated with, if any.
func (a *Assignment) StationContext() string {
	if a.CurrentStationID != nil && *a.CurrentStationID != "" {
		return *a.CurrentStationID
	}
	if a.FromStationID != nil {
		return *a.FromStationID
	}
	return ""
}

// HasCrewMember reports whether userID drives or conducts this assignment.
func (a *Assignment) HasCrewMember(userID string) bool {
	return userID != "" && (a.DriverID == userID || a.ConductorID == userID)
}

// AssignmentFilter constrains listing queries.
type AssignmentFilter struct {
	Status      []AssignmentStatus
	BusID       string
	DriverID    string
	ConductorID string
	RouteID     string
	Limit       int
	Offset      int
}

// SetOnce stamps *field with at only when it has never been set.
func SetOnce(field **time.Time, at time.Time) bool {
	if *field != nil {
		return false
	}
	stamp := at
	*field = &stamp
	return true
}
