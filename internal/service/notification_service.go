package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
	"github.com/noah-isme/bus-dispatch-api/pkg/config"
	"github.com/noah-isme/bus-dispatch-api/pkg/jobs"
)

const notificationJobType = "event.publish"

// Notifier receives committed state changes for fan-out. Publish never blocks
// on delivery and never reports failure to the caller.
type Notifier interface {
	Publish(ctx context.Context, event models.Event)
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, models.Event) {}

type eventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// NotificationService delivers events through a bounded worker queue.
type NotificationService struct {
	publisher eventPublisher
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
	enabled   bool
}

// NewNotificationService constructs the service; call Start before publishing.
func NewNotificationService(publisher eventPublisher, metrics *MetricsService, logger *zap.Logger, cfg config.NotifierConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		enabled:   cfg.Enabled && publisher != nil,
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnFailure:  s.dropped,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s.enabled {
		s.queue.Start(ctx)
	}
}

// Stop waits for the delivery workers to exit.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Publish enqueues event for delivery. A full or stopped queue drops the event
// with a warning.
func (s *NotificationService) Publish(_ context.Context, event models.Event) {
	if !s.enabled || len(event.Scopes) == 0 {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	job := jobs.Job{ID: event.ID, Type: notificationJobType, Payload: event}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.dropped(job, err)
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.Event)
	if !ok {
		return nil
	}
	return s.publisher.Publish(ctx, event)
}

func (s *NotificationService) dropped(job jobs.Job, err error) {
	name := job.Type
	if event, ok := job.Payload.(models.Event); ok {
		name = event.Name
	}
	s.metrics.ObserveNotificationFailure(name)
	s.logger.Warn("event delivery failed", zap.String("event", name), zap.String("event_id", job.ID), zap.Error(err))
}

func assignmentScope(id string) models.Scope {
	return models.Scope{Kind: models.ScopeAssignment, ID: id}
}

func stationScope(id string) models.Scope {
	return models.Scope{Kind: models.ScopeStation, ID: id}
}

func userScope(id string) models.Scope {
	return models.Scope{Kind: models.ScopeUser, ID: id}
}

// lifecycleScopes addresses the assignment, its station context and both crew members.
func lifecycleScopes(a *models.Assignment) []models.Scope {
	scopes := []models.Scope{assignmentScope(a.ID)}
	if station := a.StationContext(); station != "" {
		scopes = append(scopes, stationScope(station))
	}
	return append(scopes, userScope(a.DriverID), userScope(a.ConductorID))
}

func newEvent(name string, payload interface{}, scopes ...models.Scope) models.Event {
	return models.Event{Name: name, Payload: payload, Scopes: scopes}
}
