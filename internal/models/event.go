package models

import "time"

// ScopeKind names a class of subscribers.
type ScopeKind string

const (
	ScopeStation    ScopeKind = "station"
	ScopeAssignment ScopeKind = "assignment"
	ScopeUser       ScopeKind = "user"
	ScopeBroadcast  ScopeKind = "broadcast"
)

// Scope addresses one subscriber group.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

// Channel renders the scope as a pub/sub channel suffix.
func (s Scope) Channel() string {
	if s.Kind == ScopeBroadcast || s.ID == "" {
		return string(ScopeBroadcast)
	}
	return string(s.Kind) + ":" + s.ID
}

// Event names emitted by the dispatch workflow.
const (
	EventAssignmentCreated  = "assignment:created"
	EventAssignmentStatus   = "assignment:status"
	EventAssignmentPosition = "assignment:position"
	EventRequestCreated     = "request:created"
	EventRequestApproved    = "request:approved"
	EventRequestRejected    = "request:rejected"
)

// Event is a committed state change fanned out to subscribers.
type Event struct {
	ID         string      `json:"id"`
	Name       string      `json:"event"`
	Scopes     []Scope     `json:"-"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// AssignmentStatusPayload accompanies assignment:status events.
type AssignmentStatusPayload struct {
	AssignmentID string           `json:"assignmentId"`
	OldStatus    AssignmentStatus `json:"oldStatus"`
	NewStatus    AssignmentStatus `json:"newStatus"`
}

// ResolutionPayload accompanies request:approved and request:rejected events.
type ResolutionPayload struct {
	Request    *ClearanceRequest `json:"request"`
	Assignment *Assignment       `json:"assignment,omitempty"`
}
