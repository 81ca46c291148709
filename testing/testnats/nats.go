// Package testnats starts a throwaway NATS server for audit-sink tests and reads back
// the activity events published to it.
package testnats

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"resource-manager/internal/activity"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const image = "nats:2.10-alpine"

// Broker is a running NATS server. It is terminated when the test that started it ends.
type Broker struct {
	URL string
}

// Delivery is one activity event as it arrived on the broker.
type Delivery struct {
	Subject string
	MsgID   string
	Event   activity.Event
}

func StartBroker(t *testing.T) *Broker {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start %s", image)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate nats container: %s", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)

	return &Broker{URL: endpoint}
}

// Listen subscribes to subject before anything is published, so no event is missed.
func (b *Broker) Listen(t *testing.T, subject string) *nats.Subscription {
	t.Helper()

	conn, err := nats.Connect(b.URL, nats.Name("testnats-listener"))
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	sub, err := conn.SubscribeSync(subject)
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	return sub
}

// Next waits for the next message on sub and decodes it as an activity event.
func Next(t *testing.T, sub *nats.Subscription, timeout time.Duration) Delivery {
	t.Helper()

	msg, err := sub.NextMsg(timeout)
	require.NoError(t, err, fmt.Sprintf("no event on %s within %s", sub.Subject, timeout))

	var event activity.Event
	require.NoError(t, json.Unmarshal(msg.Data, &event))

	return Delivery{
		Subject: msg.Subject,
		MsgID:   msg.Header.Get(nats.MsgIdHdr),
		Event:   event,
	}
}
