package assignment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"resource-manager/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	// WithTx returns a repository bound to tx.
	WithTx(tx bun.IDB) Repository
	CreateMany(ctx context.Context, assignments []*Assignment) error
	GetByID(ctx context.Context, id int) (*Assignment, error)
	// GetForUpdate loads the assignment and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id int) (*Assignment, error)
	ListByProject(ctx context.Context, projectID int) ([]Assignment, error)
	// ListActiveByResources returns active assignments of resourceIDs, skipping excludeProjectID when set.
	ListActiveByResources(ctx context.Context, resourceIDs []int, excludeProjectID *int) ([]Assignment, error)
	ListActive(ctx context.Context) ([]Assignment, error)
	DeleteByIDs(ctx context.Context, ids []int) (int, error)
	UpdateRange(ctx context.Context, ids []int, start, end time.Time) (int, error)
	MarkInactive(ctx context.Context, a *Assignment) error
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) WithTx(tx bun.IDB) Repository {
	return &repository{db: tx, metrics: r.metrics}
}

func (r *repository) CreateMany(ctx context.Context, assignments []*Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	start := time.Now()
	_, err := r.db.NewInsert().Model(&assignments).Returning("*").Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "insert", "assignments", time.Since(start), err)

	return err
}

func (r *repository) GetByID(ctx context.Context, id int) (*Assignment, error) {
	start := time.Now()
	a := new(Assignment)
	err := r.db.NewSelect().
		Model(a).
		Relation("Resource").
		Where("a.id = ?", id).
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "assignments", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id int) (*Assignment, error) {
	start := time.Now()
	a := new(Assignment)
	err := r.db.NewSelect().
		Model(a).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select_for_update", "assignments", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *repository) ListByProject(ctx context.Context, projectID int) ([]Assignment, error) {
	start := time.Now()
	var assignments []Assignment
	err := r.db.NewSelect().
		Model(&assignments).
		Relation("Resource").
		Where("a.project_id = ?", projectID).
		Order("a.id ASC").
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "assignments", time.Since(start), err)

	return assignments, err
}

func (r *repository) ListActiveByResources(ctx context.Context, resourceIDs []int, excludeProjectID *int) ([]Assignment, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}

	start := time.Now()
	var assignments []Assignment
	q := r.db.NewSelect().
		Model(&assignments).
		Relation("Resource").
		Where("a.active").
		Where("a.resource_id IN (?)", bun.In(resourceIDs)).
		Order("a.resource_id ASC")
	if excludeProjectID != nil {
		q = q.Where("a.project_id <> ?", *excludeProjectID)
	}
	err := q.Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "assignments", time.Since(start), err)

	return assignments, err
}

func (r *repository) ListActive(ctx context.Context) ([]Assignment, error) {
	start := time.Now()
	var assignments []Assignment
	err := r.db.NewSelect().
		Model(&assignments).
		Where("a.active").
		Order("a.resource_id ASC").
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "assignments", time.Since(start), err)

	return assignments, err
}

func (r *repository) DeleteByIDs(ctx context.Context, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	start := time.Now()
	result, err := r.db.NewDelete().
		Model((*Assignment)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "delete", "assignments", time.Since(start), err)

	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// UpdateRange moves the given active assignments to a new date range.
func (r *repository) UpdateRange(ctx context.Context, ids []int, startDate, endDate time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	start := time.Now()
	result, err := r.db.NewUpdate().
		Model((*Assignment)(nil)).
		Set("start_date = ?", startDate).
		Set("end_date = ?", endDate).
		Where("id IN (?)", bun.In(ids)).
		Where("active").
		Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "update", "assignments", time.Since(start), err)

	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (r *repository) MarkInactive(ctx context.Context, a *Assignment) error {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model(a).
		Set("active = FALSE").
		Set("end_date = ?", a.EndDate).
		WherePK().
		Where("active").
		Returning("updated_at").
		Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "update", "assignments", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrAlreadyInactive
	}
	a.Active = false
	return nil
}
