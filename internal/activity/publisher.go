package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"resource-manager/internal/metrics"
)

// Publisher delivers committed events to an external audit sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Name() string
}

// Emitter fans committed events out to every publisher. Delivery is best-effort:
// failures are logged and counted, never returned to the mutation that produced them.
type Emitter struct {
	publishers []Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewEmitter(logger *slog.Logger, m *metrics.Metrics, publishers ...Publisher) *Emitter {
	return &Emitter{
		publishers: publishers,
		logger:     logger,
		metrics:    m,
	}
}

func (e *Emitter) Emit(ctx context.Context, events []Event) {
	if e == nil {
		return
	}
	for _, event := range events {
		for _, p := range e.publishers {
			err := p.Publish(ctx, event)
			e.metrics.RecordEventPublished(ctx, p.Name(), err)
			if err != nil {
				e.logger.WarnContext(ctx, "failed to publish activity event",
					"sink", p.Name(),
					"action", event.Action,
					"event_id", event.EventID,
					"error", err,
				)
			}
		}
	}
}

// Subject renders the broker subject for an action, e.g. "<prefix>.project_created".
func Subject(prefix string, action Action) string {
	name := strings.ToLower(string(action))
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func toString(v any) string {
	return fmt.Sprint(v)
}
