package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
)

const assignmentColumns = `id, bus_id, driver_id, conductor_id, route_id, status, current_station_id, from_station_id,
       in_transit, start_time, end_time, started_at, completed_at, created_at, updated_at`

const activeIndexPrefix = "uq_assignments_active_"

// AssignmentRepository persists assignments and enforces active exclusivity.
type AssignmentRepository struct {
	db    *sqlx.DB
	retry RetryPolicy
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB, retry RetryPolicy) *AssignmentRepository {
	return &AssignmentRepository{db: db, retry: retry}
}

// CreateActive inserts a new ACTIVE assignment. The exclusivity checks for bus,
// driver and conductor and the insert commit as one transaction; per-resource
// advisory locks are taken in a fixed order (bus, driver, conductor).
func (r *AssignmentRepository) CreateActive(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = assignment.CreatedAt
	assignment.ApplyStatus(models.AssignmentStatusActive, assignment.CreatedAt)

	return r.retry.Do(ctx, func() error {
		return r.createActive(ctx, assignment)
	})
}

type activeHolder struct {
	ID          string `db:"id"`
	BusID       string `db:"bus_id"`
	DriverID    string `db:"driver_id"`
	ConductorID string `db:"conductor_id"`
}

func (r *AssignmentRepository) createActive(ctx context.Context, assignment *models.Assignment) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, key := range exclusivityLockKeys(assignment) {
		if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
	}

	const holdersQuery = `SELECT id, bus_id, driver_id, conductor_id FROM assignments
WHERE status = 'ACTIVE' AND (bus_id = $1 OR driver_id = $2 OR conductor_id = $3)`
	var holders []activeHolder
	if err = tx.SelectContext(ctx, &holders, holdersQuery, assignment.BusID, assignment.DriverID, assignment.ConductorID); err != nil {
		return fmt.Errorf("check active assignments: %w", err)
	}
	if conflict := firstActiveConflict(assignment, holders); conflict != nil {
		err = conflict
		return err
	}

	const insertQuery = `INSERT INTO assignments
	(id, bus_id, driver_id, conductor_id, route_id, status, current_station_id, from_station_id, in_transit,
	 start_time, end_time, started_at, completed_at, created_at, updated_at)
	VALUES (:id, :bus_id, :driver_id, :conductor_id, :route_id, :status, :current_station_id, :from_station_id, :in_transit,
	 :start_time, :end_time, :started_at, :completed_at, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, assignment); err != nil {
		if conflict := conflictFromUniqueViolation(err, assignment); conflict != nil {
			err = conflict
			return err
		}
		return fmt.Errorf("insert assignment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return commitFailed(err)
	}
	return nil
}

// GetByID fetches an assignment by identifier.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindActiveByCrew returns the ACTIVE assignment the user drives or conducts.
func (r *AssignmentRepository) FindActiveByCrew(ctx context.Context, userID string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
WHERE status = 'ACTIVE' AND (driver_id = $1 OR conductor_id = $1)
ORDER BY created_at DESC LIMIT 1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, userID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// List returns assignments matching the filter, newest first.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT ` + assignmentColumns + ` FROM assignments`)

	conditions := make([]string, 0, 5)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	for _, eq := range []struct {
		column string
		value  string
	}{
		{"bus_id", filter.BusID},
		{"driver_id", filter.DriverID},
		{"conductor_id", filter.ConductorID},
		{"route_id", filter.RouteID},
	} {
		if eq.value == "" {
			continue
		}
		args = append(args, eq.value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", eq.column, len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")
	builder.WriteString(limitClause(filter.Limit, filter.Offset))

	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// UpdateStatusParams describes a guarded status change.
type UpdateStatusParams struct {
	ID   string
	From models.AssignmentStatus
	To   models.AssignmentStatus
	At   time.Time
}

// UpdateStatus moves an assignment from params.From to params.To only if it is
// still in params.From. It returns sql.ErrNoRows when the compare-and-set loses.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) (*models.Assignment, error) {
	query := `UPDATE assignments SET
	status = $3::text,
	started_at = CASE WHEN $3::text = 'ACTIVE' THEN COALESCE(started_at, $4) ELSE started_at END,
	completed_at = CASE WHEN $3::text = 'COMPLETED' THEN COALESCE(completed_at, $4) ELSE completed_at END,
	end_time = CASE WHEN $3::text = 'COMPLETED' THEN COALESCE(end_time, $4) ELSE end_time END,
	updated_at = $4
WHERE id = $1 AND status = $2
RETURNING ` + assignmentColumns

	// Each attempt runs in its own transaction; a failed commit is final.
	var updated models.Assignment
	err := r.retry.Do(ctx, func() (err error) {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin status transaction: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		if err = tx.GetContext(ctx, &updated, query, params.ID, params.From, params.To, params.At); err != nil {
			return err
		}
		if err = tx.Commit(); err != nil {
			return commitFailed(err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("update assignment status: %w", err)
	}
	return &updated, nil
}

// Reposition records station progress for an ACTIVE assignment.
func (r *AssignmentRepository) Reposition(ctx context.Context, id, stationID string, inTransit bool, at time.Time) (*models.Assignment, error) {
	var result *models.Assignment
	err := r.retry.Do(ctx, func() (err error) {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin reposition transaction: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		if result, err = repositionLocked(ctx, tx, id, stationID, inTransit, at); err != nil {
			return err
		}
		if err = tx.Commit(); err != nil {
			return commitFailed(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// repositionLocked locks the assignment row, verifies it is ACTIVE and writes
// the new position inside tx.
func repositionLocked(ctx context.Context, tx *sqlx.Tx, id, stationID string, inTransit bool, at time.Time) (*models.Assignment, error) {
	lockQuery := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1 FOR UPDATE`
	var assignment models.Assignment
	if err := tx.GetContext(ctx, &assignment, lockQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock assignment: %w", err)
	}
	if assignment.Status != models.AssignmentStatusActive {
		return nil, ErrAssignmentNotActive
	}

	assignment.Reposition(stationID, inTransit, at)
	const updateQuery = `UPDATE assignments SET current_station_id = $2, from_station_id = $3, in_transit = $4, updated_at = $5
WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, assignment.ID, assignment.CurrentStationID, assignment.FromStationID, assignment.InTransit, assignment.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update assignment position: %w", err)
	}
	return &assignment, nil
}

func exclusivityLockKeys(a *models.Assignment) []string {
	return []string{
		"assignment:bus:" + a.BusID,
		"assignment:driver:" + a.DriverID,
		"assignment:conductor:" + a.ConductorID,
	}
}

func firstActiveConflict(a *models.Assignment, holders []activeHolder) *ActiveConflictError {
	for _, holder := range holders {
		if holder.BusID == a.BusID {
			return &ActiveConflictError{Resource: "bus", ResourceID: a.BusID, AssignmentID: holder.ID}
		}
	}
	for _, holder := range holders {
		if holder.DriverID == a.DriverID {
			return &ActiveConflictError{Resource: "driver", ResourceID: a.DriverID, AssignmentID: holder.ID}
		}
	}
	for _, holder := range holders {
		if holder.ConductorID == a.ConductorID {
			return &ActiveConflictError{Resource: "conductor", ResourceID: a.ConductorID, AssignmentID: holder.ID}
		}
	}
	return nil
}

func conflictFromUniqueViolation(err error, a *models.Assignment) *ActiveConflictError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return nil
	}
	switch strings.TrimPrefix(pqErr.Constraint, activeIndexPrefix) {
	case "bus":
		return &ActiveConflictError{Resource: "bus", ResourceID: a.BusID}
	case "driver":
		return &ActiveConflictError{Resource: "driver", ResourceID: a.DriverID}
	case "conductor":
		return &ActiveConflictError{Resource: "conductor", ResourceID: a.ConductorID}
	}
	return nil
}

func limitClause(limit, offset int) string {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}
