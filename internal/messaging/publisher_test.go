package messaging_test

import (
	"context"
	"testing"
	"time"

	"resource-manager/internal/activity"
	"resource-manager/internal/logger"
	"resource-manager/internal/messaging"
	"resource-manager/testing/testnats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Publish(t *testing.T) {
	broker := testnats.StartBroker(t)

	publisher, err := messaging.NewPublisher(broker.URL, "rm.activity", logger.Discard())
	require.NoError(t, err)
	defer publisher.Close()

	require.NoError(t, publisher.HealthCheck())
	assert.Equal(t, "nats", publisher.Name())

	t.Run("publishes on per-action subject", func(t *testing.T) {
		sub := broker.Listen(t, "rm.activity.>")

		event := activity.New(3, activity.ProjectCreated, activity.Details{"project_id": 9, "project_name": "Migration"}, time.Now())
		require.NoError(t, publisher.Publish(context.Background(), event))

		got := testnats.Next(t, sub, 5*time.Second)
		assert.Equal(t, "rm.activity.project_created", got.Subject)
		assert.Equal(t, event.EventID.String(), got.MsgID)
		assert.Equal(t, event.EventID, got.Event.EventID)
		assert.Equal(t, activity.ProjectCreated, got.Event.Action)
		assert.Equal(t, 3, got.Event.ActorID)
		assert.Equal(t, "Migration", got.Event.Details["project_name"])
	})

	t.Run("each action gets its own subject", func(t *testing.T) {
		sub := broker.Listen(t, "rm.activity.assignment_completed")

		other := activity.New(0, activity.ResourceCreated, activity.Details{"resource_id": 1}, time.Now())
		completed := activity.New(0, activity.AssignmentCompleted, activity.Details{"assignment_id": 4}, time.Now())
		require.NoError(t, publisher.Publish(context.Background(), other))
		require.NoError(t, publisher.Publish(context.Background(), completed))

		got := testnats.Next(t, sub, 5*time.Second)
		assert.Equal(t, completed.EventID, got.Event.EventID)
	})
}
