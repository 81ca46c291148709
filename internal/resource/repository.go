package resource

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
	Create(ctx context.Context, resource *Resource) error
	GetAll(ctx context.Context) ([]Resource, error)
	GetByID(ctx context.Context, id int) (*Resource, error)
	GetByIDs(ctx context.Context, ids []int) ([]Resource, error)
	// LockByIDs selects the rows FOR UPDATE in ascending id order. Only meaningful inside a transaction.
	LockByIDs(ctx context.Context, ids []int) ([]Resource, error)
	Update(ctx context.Context, resource *Resource) error
	Delete(ctx context.Context, id int) error
	CountAssignments(ctx context.Context, id int) (int, error)
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

func (r *repository) Create(ctx context.Context, resource *Resource) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(resource).Returning("*").Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "insert", "resources", time.Since(start), err)

	return err
}

func (r *repository) GetAll(ctx context.Context) ([]Resource, error) {
	start := time.Now()
	var resources []Resource
	err := r.db.NewSelect().Model(&resources).Order("name ASC", "id ASC").Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "resources", time.Since(start), err)

	return resources, err
}

func (r *repository) GetByID(ctx context.Context, id int) (*Resource, error) {
	start := time.Now()
	resource := new(Resource)
	err := r.db.NewSelect().Model(resource).Where("id = ?", id).Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "resources", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return resource, nil
}

// GetByIDs returns the existing resources among ids, ordered by id.
func (r *repository) GetByIDs(ctx context.Context, ids []int) ([]Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	start := time.Now()
	var resources []Resource
	err := r.db.NewSelect().
		Model(&resources).
		Where("id IN (?)", bun.In(ids)).
		Order("id ASC").
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "resources", time.Since(start), err)

	return resources, err
}

func (r *repository) LockByIDs(ctx context.Context, ids []int) ([]Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	start := time.Now()
	var resources []Resource
	err := r.db.NewSelect().
		Model(&resources).
		Where("id IN (?)", bun.In(ids)).
		Order("id ASC").
		For("UPDATE").
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select_for_update", "resources", time.Since(start), err)

	return resources, err
}

func (r *repository) Update(ctx context.Context, resource *Resource) error {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model(resource).
		Column("name", "email", "skills").
		WherePK().
		Returning("updated_at").
		Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "update", "resources", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrResourceNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int) error {
	start := time.Now()
	resource := &Resource{ID: id}
	result, err := r.db.NewDelete().Model(resource).WherePK().Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "delete", "resources", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// CountAssignments counts every assignment row of the resource, active or not.
func (r *repository) CountAssignments(ctx context.Context, id int) (int, error) {
	start := time.Now()
	count, err := r.db.NewSelect().
		Table("assignments").
		Where("resource_id = ?", id).
		Count(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "assignments", time.Since(start), err)

	return count, err
}
