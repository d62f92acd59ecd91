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

	"github.com/noah-isme/bus-dispatch-api/internal/models"
)

const clearanceColumns = `id, assignment_id, station_id, request_type, status, requested_by, requested_at,
       approved_by, approved_at, rejected_by, rejected_at, rejection_reason, created_at, updated_at`

// ClearanceRepository persists clearance requests and their resolution.
type ClearanceRepository struct {
	db    *sqlx.DB
	retry RetryPolicy
}

// NewClearanceRepository constructs the repository.
func NewClearanceRepository(db *sqlx.DB, retry RetryPolicy) *ClearanceRepository {
	return &ClearanceRepository{db: db, retry: retry}
}

// Create inserts a PENDING request while holding a share lock on the
// assignment so it cannot be terminalized between the check and the insert.
func (r *ClearanceRepository) Create(ctx context.Context, request *models.ClearanceRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	request.CreatedAt = request.RequestedAt
	request.UpdatedAt = request.RequestedAt

	return r.retry.Do(ctx, func() (err error) {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin clearance transaction: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		var status models.AssignmentStatus
		if err = tx.GetContext(ctx, &status, `SELECT status FROM assignments WHERE id = $1 FOR SHARE`, request.AssignmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sql.ErrNoRows
			}
			return fmt.Errorf("lock assignment: %w", err)
		}
		if status != models.AssignmentStatusActive {
			err = ErrAssignmentNotActive
			return err
		}

		const insertQuery = `INSERT INTO clearance_requests
	(id, assignment_id, station_id, request_type, status, requested_by, requested_at,
	 approved_by, approved_at, rejected_by, rejected_at, rejection_reason, created_at, updated_at)
	VALUES (:id, :assignment_id, :station_id, :request_type, :status, :requested_by, :requested_at,
	 :approved_by, :approved_at, :rejected_by, :rejected_at, :rejection_reason, :created_at, :updated_at)`
		if _, err = tx.NamedExecContext(ctx, insertQuery, request); err != nil {
			return fmt.Errorf("insert clearance request: %w", err)
		}
		if err = tx.Commit(); err != nil {
			return commitFailed(err)
		}
		return nil
	})
}

// GetByID fetches a request by identifier.
func (r *ClearanceRepository) GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	query := `SELECT ` + clearanceColumns + ` FROM clearance_requests WHERE id = $1`
	var request models.ClearanceRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter (latest first).
func (r *ClearanceRepository) List(ctx context.Context, filter models.ClearanceFilter) ([]models.ClearanceRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT ` + clearanceColumns + ` FROM clearance_requests`)

	conditions := make([]string, 0, 4)
	if filter.StationID != "" {
		args = append(args, filter.StationID)
		conditions = append(conditions, fmt.Sprintf("station_id = $%d", len(args)))
	}
	if filter.AssignmentID != "" {
		args = append(args, filter.AssignmentID)
		conditions = append(conditions, fmt.Sprintf("assignment_id = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC")
	builder.WriteString(limitClause(filter.Limit, filter.Offset))

	var requests []models.ClearanceRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list clearance requests: %w", err)
	}
	return requests, nil
}

// ResolveParams groups the values written by a resolution.
type ResolveParams struct {
	ID       string
	Decision models.Decision
	ActorID  string
	Reason   string
	At       time.Time
}

// ResolveResult carries the committed request and, for approvals, the
// repositioned assignment.
type ResolveResult struct {
	Request    *models.ClearanceRequest
	Assignment *models.Assignment
}

// Resolve transitions a PENDING request to its terminal status. Approvals also
// reposition the assignment in the same transaction. ErrRequestNotPending is
// returned when another resolver won the compare-and-set.
func (r *ClearanceRepository) Resolve(ctx context.Context, params ResolveParams) (*ResolveResult, error) {
	var result *ResolveResult
	err := r.retry.Do(ctx, func() (err error) {
		result, err = r.resolve(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ClearanceRepository) resolve(ctx context.Context, params ResolveParams) (result *ResolveResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolve transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The pending snapshot yields the column values the decision writes.
	decided := models.ClearanceRequest{ID: params.ID, Status: models.RequestStatusPending}
	decided.Resolve(params.Decision, params.ActorID, params.Reason, params.At)

	query := `UPDATE clearance_requests SET
	status = $2,
	approved_by = COALESCE(approved_by, $3),
	approved_at = COALESCE(approved_at, $4),
	rejected_by = COALESCE(rejected_by, $5),
	rejected_at = COALESCE(rejected_at, $6),
	rejection_reason = COALESCE(rejection_reason, $7),
	updated_at = $8
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + clearanceColumns

	var request models.ClearanceRequest
	if err = tx.GetContext(ctx, &request, query,
		params.ID, decided.Status, decided.ApprovedBy, decided.ApprovedAt,
		decided.RejectedBy, decided.RejectedAt, decided.RejectionReason, decided.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrRequestNotPending
			return nil, err
		}
		return nil, fmt.Errorf("update clearance status: %w", err)
	}

	result = &ResolveResult{Request: &request}
	if params.Decision == models.DecisionApprove {
		inTransit := request.RequestType == models.RequestTypeDeparture
		result.Assignment, err = repositionLocked(ctx, tx, request.AssignmentID, request.StationID, inTransit, params.At)
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, commitFailed(err)
	}
	return result, nil
}
