package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), true},
		{"connection exception class", &pq.Error{Code: "08006"}, true},
		{"serialization failure", &pq.Error{Code: pqSerializationFailure}, true},
		{"deadlock", &pq.Error{Code: pqDeadlockDetected}, true},
		{"unique violation", &pq.Error{Code: pqUniqueViolation}, false},
		{"no rows", sql.ErrNoRows, false},
		{"commit failure", commitFailed(driver.ErrBadConn), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("constraint")
	err := RetryPolicy{Attempts: 5}.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyExhaustsTransientAttempts(t *testing.T) {
	calls := 0
	err := RetryPolicy{Attempts: 3}.Do(context.Background(), func() error {
		calls++
		return &pq.Error{Code: pqDeadlockDetected}
	})
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, calls)
}

func TestActiveConflictErrorMessage(t *testing.T) {
	err := &ActiveConflictError{Resource: "bus", ResourceID: "bus-1", AssignmentID: "asg-1"}
	assert.Equal(t, "bus bus-1 already has an active assignment (asg-1)", err.Error())
}
