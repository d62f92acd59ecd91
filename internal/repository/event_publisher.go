package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
)

// ErrPublisherUnavailable is returned when no Redis client is configured.
var ErrPublisherUnavailable = errors.New("event publisher unavailable")

// EventPublisher fans events out over Redis pub/sub, one channel per scope.
type EventPublisher struct {
	client *redis.Client
	prefix string
}

// NewEventPublisher constructs a publisher writing to "<prefix>:<scope>" channels.
func NewEventPublisher(client *redis.Client, prefix string) *EventPublisher {
	if prefix == "" {
		prefix = "dispatch"
	}
	return &EventPublisher{client: client, prefix: prefix}
}

// Channel returns the full channel name for scope.
func (p *EventPublisher) Channel(scope models.Scope) string {
	return p.prefix + ":" + scope.Channel()
}

// Publish delivers event to every scope. It attempts all scopes and returns
// the first failure.
func (p *EventPublisher) Publish(ctx context.Context, event models.Event) error {
	if p.client == nil {
		return ErrPublisherUnavailable
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Name, err)
	}

	var firstErr error
	for _, scope := range event.Scopes {
		channel := p.Channel(scope)
		if err := p.client.Publish(ctx, channel, payload).Err(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("publish %s to %s: %w", event.Name, channel, err)
		}
	}
	return firstErr
}
