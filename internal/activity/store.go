package activity

import (
	"context"
	"time"

	"resource-manager/internal/metrics"

	"github.com/uptrace/bun"
)

type ListFilter struct {
	Action Action
	Limit  int
}

// Store persists events. Record takes the caller's transaction so audit rows
// commit or roll back together with the change they describe.
type Store interface {
	Record(ctx context.Context, db bun.IDB, events []Event) error
	List(ctx context.Context, filter ListFilter) ([]Event, error)
}

type store struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewStore(db *bun.DB, m *metrics.Metrics) Store {
	return &store{
		db:      db,
		metrics: m,
	}
}

func (s *store) Record(ctx context.Context, db bun.IDB, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	_, err := db.NewInsert().Model(&events).Exec(ctx)

	s.metrics.DB().RecordQuery(ctx, "insert", "activity_logs", time.Since(start), err)

	return err
}

func (s *store) List(ctx context.Context, filter ListFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	start := time.Now()
	var events []Event
	q := s.db.NewSelect().
		Model(&events).
		Order("timestamp DESC", "id DESC").
		Limit(limit)
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	err := q.Scan(ctx)

	s.metrics.DB().RecordQuery(ctx, "select", "activity_logs", time.Since(start), err)

	return events, err
}
