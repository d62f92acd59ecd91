package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/bus-dispatch-api/internal/dto"
	"github.com/noah-isme/bus-dispatch-api/internal/models"
	"github.com/noah-isme/bus-dispatch-api/internal/repository"
	appErrors "github.com/noah-isme/bus-dispatch-api/pkg/errors"
)

type clearanceStore interface {
	Create(ctx context.Context, request *models.ClearanceRequest) error
	GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error)
	List(ctx context.Context, filter models.ClearanceFilter) ([]models.ClearanceRequest, error)
	Resolve(ctx context.Context, params repository.ResolveParams) (*repository.ResolveResult, error)
}

type assignmentReader interface {
	GetByID(ctx context.Context, id string) (*models.Assignment, error)
}

// ClearanceService owns submission and resolution of clearance requests.
type ClearanceService struct {
	requests    clearanceStore
	assignments assignmentReader
	routes      RouteCatalog
	directory   Directory
	notifier    Notifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewClearanceService creates the service.
func NewClearanceService(
	requests clearanceStore,
	assignments assignmentReader,
	routes RouteCatalog,
	directory Directory,
	notifier Notifier,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ClearanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ClearanceService{
		requests:    requests,
		assignments: assignments,
		routes:      routes,
		directory:   directory,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit files a PENDING request for an ACTIVE assignment at a station on its route.
func (s *ClearanceService) Submit(ctx context.Context, actor models.Actor, assignmentID string, req dto.SubmitClearanceRequest) (*models.ClearanceRequest, error) {
	var assignment *models.Assignment
	steps := []validationStep{
		{name: "payload", check: func(context.Context) error {
			if err := s.validator.Struct(req); err != nil {
				return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clearance payload")
			}
			if req.RequestType == "" {
				req.RequestType = models.RequestTypeDeparture
			}
			if !req.RequestType.Valid() {
				return validationFailed("requestType", "requestType must be DEPARTURE or ARRIVAL")
			}
			return nil
		}},
		{name: "assignment_active", check: func(ctx context.Context) error {
			var err error
			if assignment, err = s.assignments.GetByID(ctx, assignmentID); err != nil {
				return lookupError(err, "assignment", assignmentID)
			}
			if assignment.Status != models.AssignmentStatusActive {
				return invariantError(appErrors.ErrInvalidState, "assignment is not active", "assignment_active", "assignment", assignmentID).
					WithDetails(map[string]interface{}{"status": assignment.Status})
			}
			return nil
		}},
		{name: "requester", check: func(ctx context.Context) error {
			if _, err := s.directory.FindByID(ctx, actor.ID); err != nil {
				return lookupError(err, "user", actor.ID)
			}
			if actor.IsCrew() {
				return requireCrewMember(assignment, actor)
			}
			return nil
		}},
		{name: "station_on_route", check: func(ctx context.Context) error {
			route, err := s.routes.GetRoute(ctx, assignment.RouteID)
			if err != nil {
				return err
			}
			if !route.HasStation(req.StationID) {
				return invariantError(appErrors.ErrStationNotOnRoute, "station is not a stop on the assignment route", "station_on_route", "station", req.StationID).
					WithDetails(map[string]interface{}{"routeId": route.ID, "assignmentId": assignmentID})
			}
			return nil
		}},
	}
	if err := runValidation(ctx, steps); err != nil {
		return nil, s.reject("submit", err)
	}

	request := &models.ClearanceRequest{
		AssignmentID: assignmentID,
		StationID:    req.StationID,
		RequestType:  req.RequestType,
		Status:       models.RequestStatusPending,
		RequestedBy:  actor.ID,
		RequestedAt:  s.now(),
	}
	if err := s.requests.Create(ctx, request); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, s.reject("submit", notFound("assignment", assignmentID))
		case errors.Is(err, repository.ErrAssignmentNotActive):
			return nil, s.reject("submit", invariantError(appErrors.ErrInvalidState, "assignment is not active", "assignment_active", "assignment", assignmentID))
		}
		return nil, storeError(err, "failed to create clearance request")
	}

	s.logger.Info("clearance requested",
		zap.String("request_id", request.ID),
		zap.String("assignment_id", assignmentID),
		zap.String("station_id", request.StationID),
		zap.String("type", string(request.RequestType)),
	)
	s.notifier.Publish(ctx, newEvent(models.EventRequestCreated, request,
		stationScope(request.StationID), assignmentScope(assignmentID),
	))
	return request, nil
}

// Resolve approves or rejects a PENDING request exactly once. Approval also
// moves the assignment in the same atomic unit.
func (s *ClearanceService) Resolve(ctx context.Context, actor models.Actor, requestID string, req dto.ResolveClearanceRequest) (*models.ClearanceRequest, error) {
	reason := strings.TrimSpace(req.Reason)
	var assignmentID string
	steps := []validationStep{
		{name: "payload", check: func(context.Context) error {
			if !req.Decision.Valid() {
				return validationFailed("decision", "decision must be APPROVE or REJECT")
			}
			if req.Decision != models.DecisionReject {
				return nil
			}
			if reason == "" {
				return validationFailed("reason", "rejection reason is required")
			}
			if utf8.RuneCountInString(reason) > models.MaxRejectionReasonLength {
				return validationFailed("reason", "rejection reason exceeds 500 characters")
			}
			return nil
		}},
		{name: "pending", check: func(ctx context.Context) error {
			current, err := s.requests.GetByID(ctx, requestID)
			if err != nil {
				return lookupError(err, "request", requestID)
			}
			if current.Status != models.RequestStatusPending {
				return alreadyResolved(requestID, current.Status)
			}
			assignmentID = current.AssignmentID
			return nil
		}},
		{name: "actor_role", check: func(ctx context.Context) error {
			user, err := s.directory.FindByID(ctx, actor.ID)
			if err != nil {
				return lookupError(err, "user", actor.ID)
			}
			if !user.Role.CanResolveClearance() {
				return invariantError(appErrors.ErrRoleMismatch, "only officers or admins may resolve requests", "resolver_role", "user", actor.ID).
					WithDetails(map[string]interface{}{"actualRole": user.Role})
			}
			return nil
		}},
	}
	if err := runValidation(ctx, steps); err != nil {
		return nil, s.reject("resolve", err)
	}

	result, err := s.requests.Resolve(ctx, repository.ResolveParams{
		ID:       requestID,
		Decision: req.Decision,
		ActorID:  actor.ID,
		Reason:   reason,
		At:       s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRequestNotPending):
			status := models.RequestStatus("")
			if latest, getErr := s.requests.GetByID(ctx, requestID); getErr == nil {
				status = latest.Status
			}
			return nil, s.reject("resolve", alreadyResolved(requestID, status))
		case errors.Is(err, repository.ErrAssignmentNotActive):
			return nil, s.reject("resolve", invariantError(appErrors.ErrInvalidState, "assignment is not active; request can only be rejected", "assignment_active", "request", requestID))
		case errors.Is(err, sql.ErrNoRows):
			return nil, s.reject("resolve", notFound("assignment", assignmentID))
		}
		return nil, storeError(err, "failed to resolve clearance request")
	}

	request := result.Request
	s.metrics.ObserveResolution(req.Decision, request.RequestType)
	s.logger.Info("clearance resolved",
		zap.String("request_id", request.ID),
		zap.String("status", string(request.Status)),
		zap.String("actor_id", actor.ID),
	)

	name := models.EventRequestRejected
	if request.Status == models.RequestStatusApproved {
		name = models.EventRequestApproved
	}
	s.notifier.Publish(ctx, newEvent(name, models.ResolutionPayload{Request: request, Assignment: result.Assignment},
		stationScope(request.StationID), assignmentScope(request.AssignmentID), userScope(request.RequestedBy),
	))
	return request, nil
}

// Get returns one request. Crew may only read requests they submitted, the
// same scope List applies to them.
func (s *ClearanceService) Get(ctx context.Context, actor models.Actor, id string) (*models.ClearanceRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "request", id)
	}
	if actor.IsCrew() && request.RequestedBy != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "caller did not submit this request").
			WithDetails(map[string]interface{}{"resource": "request", "id": id})
	}
	return request, nil
}

// List returns requests matching the query, newest first.
func (s *ClearanceService) List(ctx context.Context, query dto.ClearanceQuery) ([]models.ClearanceRequest, error) {
	for _, status := range query.Status {
		if status != models.RequestStatusPending && !status.Terminal() {
			return nil, validationFailed("status", "unknown request status "+string(status))
		}
	}
	items, err := s.requests.List(ctx, models.ClearanceFilter{
		AssignmentID: query.AssignmentID,
		StationID:    query.StationID,
		RequestedBy:  query.RequestedBy,
		Status:       query.Status,
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		return nil, storeError(err, "failed to list clearance requests")
	}
	return items, nil
}

func (s *ClearanceService) reject(operation string, err error) error {
	appErr := appErrors.FromError(err)
	s.metrics.ObserveRejection(operation, appErr.Code)
	return appErr
}

func alreadyResolved(requestID string, status models.RequestStatus) error {
	details := map[string]interface{}{}
	if status != "" {
		details["status"] = status
	}
	return invariantError(appErrors.ErrAlreadyResolved, "request already resolved", "request_one_way", "request", requestID).
		WithDetails(details)
}
