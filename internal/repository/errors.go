package repository

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrAssignmentNotActive is returned when a guarded write finds the assignment terminal.
	ErrAssignmentNotActive = errors.New("assignment not active")
	// ErrRequestNotPending is returned when the PENDING compare-and-set loses.
	ErrRequestNotPending = errors.New("clearance request not pending")

	errCommitFailed = errors.New("commit failed")
)

const (
	pqUniqueViolation      pq.ErrorCode = "23505"
	pqSerializationFailure pq.ErrorCode = "40001"
	pqDeadlockDetected     pq.ErrorCode = "40P01"
)

// ActiveConflictError reports that a resource already backs an ACTIVE assignment.
type ActiveConflictError struct {
	Resource     string
	ResourceID   string
	AssignmentID string
}

func (e *ActiveConflictError) Error() string {
	if e.AssignmentID == "" {
		return fmt.Sprintf("%s %s already has an active assignment", e.Resource, e.ResourceID)
	}
	return fmt.Sprintf("%s %s already has an active assignment (%s)", e.Resource, e.ResourceID, e.AssignmentID)
}

// IsTransient reports whether err is a storage failure that left no partial write.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, errCommitFailed) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" {
			return true
		}
		return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
	}
	return false
}

func commitFailed(err error) error {
	return fmt.Errorf("%w: %v", errCommitFailed, err)
}
