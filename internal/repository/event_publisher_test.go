package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
)

func TestEventPublisherChannelNames(t *testing.T) {
	publisher := NewEventPublisher(nil, "fleet")

	assert.Equal(t, "fleet:station:st-a", publisher.Channel(models.Scope{Kind: models.ScopeStation, ID: "st-a"}))
	assert.Equal(t, "fleet:user:u-1", publisher.Channel(models.Scope{Kind: models.ScopeUser, ID: "u-1"}))
	assert.Equal(t, "fleet:broadcast", publisher.Channel(models.Scope{Kind: models.ScopeBroadcast}))
}

func TestEventPublisherWithoutClient(t *testing.T) {
	publisher := NewEventPublisher(nil, "")

	err := publisher.Publish(context.Background(), models.Event{Name: models.EventRequestCreated})
	assert.ErrorIs(t, err, ErrPublisherUnavailable)
	assert.Equal(t, "dispatch:assignment:a-1", publisher.Channel(models.Scope{Kind: models.ScopeAssignment, ID: "a-1"}))
}
