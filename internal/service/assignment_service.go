package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/bus-dispatch-api/internal/dto"
	"github.com/noah-isme/bus-dispatch-api/internal/models"
	"github.com/noah-isme/bus-dispatch-api/internal/repository"
	appErrors "github.com/noah-isme/bus-dispatch-api/pkg/errors"
)

type assignmentStore interface {
	CreateActive(ctx context.Context, assignment *models.Assignment) error
	GetByID(ctx context.Context, id string) (*models.Assignment, error)
	FindActiveByCrew(ctx context.Context, userID string) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) (*models.Assignment, error)
	Reposition(ctx context.Context, id, stationID string, inTransit bool, at time.Time) (*models.Assignment, error)
}

// Directory resolves user identifiers to directory entries.
type Directory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// BusRegistry resolves bus identifiers.
type BusRegistry interface {
	FindByID(ctx context.Context, id string) (*models.Bus, error)
}

// RouteCatalog resolves route identifiers to their stop sequence.
type RouteCatalog interface {
	GetRoute(ctx context.Context, id string) (*models.Route, error)
}

// AssignmentService owns assignment creation, status transitions and position updates.
type AssignmentService struct {
	store     assignmentStore
	buses     BusRegistry
	routes    RouteCatalog
	directory Directory
	notifier  Notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAssignmentService creates the service.
func NewAssignmentService(
	store assignmentStore,
	buses BusRegistry,
	routes RouteCatalog,
	directory Directory,
	notifier Notifier,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &AssignmentService{
		store:     store,
		buses:     buses,
		routes:    routes,
		directory: directory,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the payload and collaborators, then atomically inserts an
// ACTIVE assignment. Exclusivity is decided by the store.
func (s *AssignmentService) Create(ctx context.Context, req dto.CreateAssignmentRequest) (*models.Assignment, error) {
	steps := []validationStep{
		{name: "payload", check: func(context.Context) error {
			if err := s.validator.Struct(req); err != nil {
				return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
			}
			return nil
		}},
		{name: "bus", check: func(ctx context.Context) error {
			if _, err := s.buses.FindByID(ctx, req.BusID); err != nil {
				return lookupError(err, "bus", req.BusID)
			}
			return nil
		}},
		{name: "route", check: func(ctx context.Context) error {
			_, err := s.routes.GetRoute(ctx, req.RouteID)
			return err
		}},
		{name: "driver_role", check: s.requireRole(req.DriverID, models.RoleDriver)},
		{name: "conductor_role", check: s.requireRole(req.ConductorID, models.RoleConductor)},
	}
	if err := runValidation(ctx, steps); err != nil {
		return nil, s.reject("create", err)
	}

	assignment := &models.Assignment{
		BusID:       req.BusID,
		DriverID:    req.DriverID,
		ConductorID: req.ConductorID,
		RouteID:     req.RouteID,
		StartTime:   req.StartTime.UTC(),
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateActive(ctx, assignment); err != nil {
		var conflict *repository.ActiveConflictError
		if errors.As(err, &conflict) {
			busy := invariantError(appErrors.ErrResourceBusy, conflict.Error(), "single_active_"+conflict.Resource, conflict.Resource, conflict.ResourceID)
			if conflict.AssignmentID != "" {
				busy = busy.WithDetails(map[string]interface{}{"conflictingAssignmentId": conflict.AssignmentID})
			}
			return nil, s.reject("create", busy)
		}
		return nil, storeError(err, "failed to create assignment")
	}

	s.logger.Info("assignment created",
		zap.String("assignment_id", assignment.ID),
		zap.String("bus_id", assignment.BusID),
		zap.String("driver_id", assignment.DriverID),
		zap.String("conductor_id", assignment.ConductorID),
	)
	s.notifier.Publish(ctx, newEvent(models.EventAssignmentCreated, assignment,
		assignmentScope(assignment.ID), userScope(assignment.DriverID), userScope(assignment.ConductorID),
		models.Scope{Kind: models.ScopeBroadcast},
	))
	return assignment, nil
}

// Transition moves an assignment along the allowed status graph.
func (s *AssignmentService) Transition(ctx context.Context, id string, req dto.TransitionAssignmentRequest) (*models.Assignment, error) {
	var current *models.Assignment
	steps := []validationStep{
		{name: "payload", check: func(context.Context) error {
			if !req.Status.Valid() {
				return validationFailed("status", "status must be one of ACTIVE, COMPLETED, CANCELLED")
			}
			return nil
		}},
		{name: "assignment", check: func(ctx context.Context) error {
			var err error
			if current, err = s.store.GetByID(ctx, id); err != nil {
				return lookupError(err, "assignment", id)
			}
			return nil
		}},
		{name: "transition", check: func(context.Context) error {
			return checkTransition(current, req.Status)
		}},
	}
	if err := runValidation(ctx, steps); err != nil {
		return nil, s.reject("transition", err)
	}

	updated, err := s.store.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:   id,
		From: current.Status,
		To:   req.Status,
		At:   s.now(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if latest, getErr := s.store.GetByID(ctx, id); getErr == nil {
				current = latest
			}
			return nil, s.reject("transition", checkTransitionLost(current, req.Status))
		}
		return nil, storeError(err, "failed to update assignment status")
	}

	s.metrics.ObserveTransition(current.Status, updated.Status)
	s.logger.Info("assignment status changed",
		zap.String("assignment_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)),
	)
	payload := models.AssignmentStatusPayload{AssignmentID: id, OldStatus: current.Status, NewStatus: updated.Status}
	s.notifier.Publish(ctx, newEvent(models.EventAssignmentStatus, payload, lifecycleScopes(updated)...))
	return updated, nil
}

// AdvanceStation records physical progress for an ACTIVE assignment. Crew
// callers may only move their own assignment.
func (s *AssignmentService) AdvanceStation(ctx context.Context, actor models.Actor, id string, req dto.AdvanceStationRequest) (*models.Assignment, error) {
	steps := []validationStep{
		{name: "payload", check: func(context.Context) error {
			if err := s.validator.Struct(req); err != nil {
				return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid position payload")
			}
			return nil
		}},
		{name: "crew", check: func(ctx context.Context) error {
			if !actor.IsCrew() {
				return nil
			}
			assignment, err := s.store.GetByID(ctx, id)
			if err != nil {
				return lookupError(err, "assignment", id)
			}
			return requireCrewMember(assignment, actor)
		}},
	}
	if err := runValidation(ctx, steps); err != nil {
		return nil, s.reject("advance_station", err)
	}

	updated, err := s.store.Reposition(ctx, id, req.StationID, req.InTransit, s.now())
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, s.reject("advance_station", notFound("assignment", id))
		case errors.Is(err, repository.ErrAssignmentNotActive):
			return nil, s.reject("advance_station", invariantError(appErrors.ErrInvalidState, "assignment is not active", "assignment_active", "assignment", id))
		}
		return nil, storeError(err, "failed to update assignment position")
	}

	s.notifier.Publish(ctx, newEvent(models.EventAssignmentPosition, updated,
		assignmentScope(updated.ID), stationScope(req.StationID),
	))
	return updated, nil
}

// Get returns one assignment.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "assignment", id)
	}
	return assignment, nil
}

// CurrentForCrew returns the ACTIVE assignment the user drives or conducts.
func (s *AssignmentService) CurrentForCrew(ctx context.Context, userID string) (*models.Assignment, error) {
	assignment, err := s.store.FindActiveByCrew(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active assignment for user").
				WithDetails(map[string]interface{}{"resource": "user", "id": userID})
		}
		return nil, storeError(err, "failed to load active assignment")
	}
	return assignment, nil
}

// List returns assignments matching the query, newest first.
func (s *AssignmentService) List(ctx context.Context, query dto.AssignmentQuery) ([]models.Assignment, error) {
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, validationFailed("status", "unknown assignment status "+string(status))
		}
	}
	items, err := s.store.List(ctx, models.AssignmentFilter{
		Status:      query.Status,
		BusID:       query.BusID,
		DriverID:    query.DriverID,
		ConductorID: query.ConductorID,
		RouteID:     query.RouteID,
		Limit:       query.Limit,
		Offset:      query.Offset,
	})
	if err != nil {
		return nil, storeError(err, "failed to list assignments")
	}
	return items, nil
}

func (s *AssignmentService) requireRole(userID string, role models.UserRole) func(context.Context) error {
	resource := string(role)
	return func(ctx context.Context) error {
		user, err := s.directory.FindByID(ctx, userID)
		if err != nil {
			return lookupError(err, resource, userID)
		}
		if user.Role != role {
			return invariantError(appErrors.ErrRoleMismatch, resource+" must have role "+string(role), "role_"+resource, resource, userID).
				WithDetails(map[string]interface{}{"expectedRole": role, "actualRole": user.Role})
		}
		return nil
	}
}

func (s *AssignmentService) reject(operation string, err error) error {
	appErr := appErrors.FromError(err)
	s.metrics.ObserveRejection(operation, appErr.Code)
	return appErr
}

func checkTransition(current *models.Assignment, to models.AssignmentStatus) error {
	if models.CanTransitionAssignment(current.Status, to) {
		return nil
	}
	return invariantError(appErrors.ErrInvalidTransition,
		"cannot move assignment from "+string(current.Status)+" to "+string(to),
		"assignment_transition", "assignment", current.ID,
	).WithDetails(map[string]interface{}{"from": current.Status, "to": to})
}

func checkTransitionLost(current *models.Assignment, to models.AssignmentStatus) error {
	if err := checkTransition(current, to); err != nil {
		return err
	}
	return invariantError(appErrors.ErrInvalidTransition, "assignment status changed concurrently", "assignment_transition", "assignment", current.ID).
		WithDetails(map[string]interface{}{"to": to})
}

func requireCrewMember(assignment *models.Assignment, actor models.Actor) error {
	if assignment.HasCrewMember(actor.ID) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "caller is not crew on this assignment").
		WithDetails(map[string]interface{}{"resource": "assignment", "id": assignment.ID})
}
