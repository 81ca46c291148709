package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"resource-manager/internal/activity"

	"github.com/nats-io/nats.go"
)

// Publisher sends activity events to NATS, one subject per action.
type Publisher struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

func NewPublisher(url string, subjectPrefix string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("resource-manager"))
	if err != nil {
		return nil, err
	}

	logger.Info("NATS publisher initialized", "url", url, "subject_prefix", subjectPrefix)

	return &Publisher{
		conn:          nc,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}, nil
}

func (p *Publisher) Name() string {
	return "nats"
}

func (p *Publisher) Publish(ctx context.Context, event activity.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal activity event", "error", err)
		return err
	}

	msg := nats.NewMsg(activity.Subject(p.subjectPrefix, event.Action))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.EventID.String())

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to send activity event to NATS", "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "activity event sent to NATS", "subject", msg.Subject, "event_id", event.EventID)
	return nil
}

// HealthCheck verifies NATS connection is healthy
func (p *Publisher) HealthCheck() error {
	if p.conn == nil {
		return nats.ErrConnectionClosed
	}

	if !p.conn.IsConnected() {
		return nats.ErrDisconnected
	}

	return nil
}

func (p *Publisher) Close() error {
	if err := p.conn.Flush(); err != nil {
		p.logger.Warn("failed to flush NATS connection", "error", err)
	}
	p.conn.Close()
	return nil
}
