package models

import "time"

// MaxRejectionReasonLength bounds the free-text reason on rejected requests.
const MaxRejectionReasonLength = 500

// RequestType distinguishes departure and arrival clearance.
type RequestType string

const (
	RequestTypeDeparture RequestType = "DEPARTURE"
	RequestTypeArrival   RequestType = "ARRIVAL"
)

// Valid reports whether the type is known.
func (t RequestType) Valid() bool {
	return t == RequestTypeDeparture || t == RequestTypeArrival
}

// RequestStatus captures the one-way clearance workflow.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// Terminal reports whether the request has been resolved.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// Decision is an officer's resolution of a pending request.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Valid reports whether the decision is known.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Outcome maps the decision onto the terminal request status.
func (d Decision) Outcome() RequestStatus {
	if d == DecisionApprove {
		return RequestStatusApproved
	}
	return RequestStatusRejected
}

// ClearanceRequest is a crew ask for departure/arrival clearance at a station.
type ClearanceRequest struct {
	ID              string        `db:"id" json:"id"`
	AssignmentID    string        `db:"assignment_id" json:"assignmentId"`
	StationID       string        `db:"station_id" json:"stationId"`
	RequestType     RequestType   `db:"request_type" json:"requestType"`
	Status          RequestStatus `db:"status" json:"status"`
	RequestedBy     string        `db:"requested_by" json:"requestedBy"`
	RequestedAt     time.Time     `db:"requested_at" json:"requestedAt"`
	ApprovedBy      *string       `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time    `db:"approved_at" json:"approvedAt,omitempty"`
	RejectedBy      *string       `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time    `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
}

// Resolve applies the decision. It is a no-op returning false when the
// request is no longer pending.
func (r *ClearanceRequest) Resolve(decision Decision, actorID, reason string, at time.Time) bool {
	if r.Status != RequestStatusPending {
		return false
	}
	actor := actorID
	r.Status = decision.Outcome()
	if decision == DecisionApprove {
		r.ApprovedBy = &actor
		SetOnce(&r.ApprovedAt, at)
	} else {
		text := reason
		r.RejectedBy = &actor
		r.RejectionReason = &text
		SetOnce(&r.RejectedAt, at)
	}
	r.UpdatedAt = at
	return true
}

// ClearanceFilter constrains request listings.
type ClearanceFilter struct {
	AssignmentID string
	StationID    string
	RequestedBy  string
	Status       []RequestStatus
	Limit        int
	Offset       int
}
