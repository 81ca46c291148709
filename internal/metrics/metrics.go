package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Database *DatabaseMetrics

	projectsCreated       metric.Int64Counter
	projectsUpdated       metric.Int64Counter
	projectsDeleted       metric.Int64Counter
	assignmentsCreated    metric.Int64Counter
	assignmentsCompleted  metric.Int64Counter
	assignmentsDeleted    metric.Int64Counter
	availabilityConflicts metric.Int64Counter
	eventsPublished       metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.Database, err = NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.projectsCreated, err = meter.Int64Counter(
		"resource_manager.projects.created",
		metric.WithDescription("Total number of projects created"),
		metric.WithUnit("{project}"),
	)
	if err != nil {
		return nil, err
	}

	m.projectsUpdated, err = meter.Int64Counter(
		"resource_manager.projects.updated",
		metric.WithDescription("Total number of projects updated"),
		metric.WithUnit("{project}"),
	)
	if err != nil {
		return nil, err
	}

	m.projectsDeleted, err = meter.Int64Counter(
		"resource_manager.projects.deleted",
		metric.WithDescription("Total number of projects deleted"),
		metric.WithUnit("{project}"),
	)
	if err != nil {
		return nil, err
	}

	m.assignmentsCreated, err = meter.Int64Counter(
		"resource_manager.assignments.created",
		metric.WithDescription("Total number of assignments created"),
		metric.WithUnit("{assignment}"),
	)
	if err != nil {
		return nil, err
	}

	m.assignmentsCompleted, err = meter.Int64Counter(
		"resource_manager.assignments.completed",
		metric.WithDescription("Total number of assignments marked complete"),
		metric.WithUnit("{assignment}"),
	)
	if err != nil {
		return nil, err
	}

	m.assignmentsDeleted, err = meter.Int64Counter(
		"resource_manager.assignments.deleted",
		metric.WithDescription("Total number of assignments deleted"),
		metric.WithUnit("{assignment}"),
	)
	if err != nil {
		return nil, err
	}

	m.availabilityConflicts, err = meter.Int64Counter(
		"resource_manager.availability.conflicts",
		metric.WithDescription("Total number of mutations rejected because a resource was already assigned"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return nil, err
	}

	m.eventsPublished, err = meter.Int64Counter(
		"resource_manager.activity.published",
		metric.WithDescription("Total number of activity events fanned out to the audit sink"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordProjectCreated(ctx context.Context) {
	if m != nil && m.projectsCreated != nil {
		m.projectsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordProjectUpdated(ctx context.Context) {
	if m != nil && m.projectsUpdated != nil {
		m.projectsUpdated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordProjectDeleted(ctx context.Context) {
	if m != nil && m.projectsDeleted != nil {
		m.projectsDeleted.Add(ctx, 1)
	}
}

func (m *Metrics) RecordAssignmentsCreated(ctx context.Context, n int) {
	if m != nil && m.assignmentsCreated != nil && n > 0 {
		m.assignmentsCreated.Add(ctx, int64(n))
	}
}

func (m *Metrics) RecordAssignmentCompleted(ctx context.Context) {
	if m != nil && m.assignmentsCompleted != nil {
		m.assignmentsCompleted.Add(ctx, 1)
	}
}

func (m *Metrics) RecordAssignmentsDeleted(ctx context.Context, n int) {
	if m != nil && m.assignmentsDeleted != nil && n > 0 {
		m.assignmentsDeleted.Add(ctx, int64(n))
	}
}

func (m *Metrics) RecordAvailabilityConflict(ctx context.Context) {
	if m != nil && m.availabilityConflicts != nil {
		m.availabilityConflicts.Add(ctx, 1)
	}
}

func (m *Metrics) RecordEventPublished(ctx context.Context, sink string, err error) {
	if m == nil || m.eventsPublished == nil {
		return
	}
	m.eventsPublished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sink", sink),
		attribute.Bool("error", err != nil),
	))
}

// DB returns the database collector, nil-safe for mocks.
func (m *Metrics) DB() *DatabaseMetrics {
	if m == nil {
		return nil
	}
	return m.Database
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{Database: &DatabaseMetrics{}}
}
