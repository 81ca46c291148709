package project

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
	Create(ctx context.Context, project *Project) error
	List(ctx context.Context, filter ListFilter) ([]Project, error)
	GetByID(ctx context.Context, id int) (*Project, error)
	GetByIDs(ctx context.Context, ids []int) ([]Project, error)
	// GetWithAssignments loads the project with its assignments and their resources.
	GetWithAssignments(ctx context.Context, id int) (*Project, error)
	// GetForUpdate locks the project row until the transaction ends.
	GetForUpdate(ctx context.Context, id int) (*Project, error)
	Update(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id int) error
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

func (r *repository) Create(ctx context.Context, project *Project) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(project).Returning("*").Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "insert", "projects", time.Since(start), err)

	return err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Project, error) {
	start := time.Now()
	var projects []Project
	q := r.db.NewSelect().
		Model(&projects).
		Relation("Assignments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("a.id ASC")
		}).
		Relation("Assignments.Resource").
		Order("p.created_at DESC", "p.id DESC")

	switch filter.Type {
	case "task":
		q = q.Where("p.is_task")
	case "project":
		q = q.Where("NOT p.is_task")
	}

	status := filter.Status
	if status == "" {
		status = string(StatusActive)
	}
	if status != "all" {
		q = q.Where("p.status = ?", status)
	}

	err := q.Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "projects", time.Since(start), err)

	return projects, err
}

func (r *repository) GetByID(ctx context.Context, id int) (*Project, error) {
	start := time.Now()
	project := new(Project)
	err := r.db.NewSelect().Model(project).Where("p.id = ?", id).Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "projects", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []int) ([]Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	start := time.Now()
	var projects []Project
	err := r.db.NewSelect().
		Model(&projects).
		Where("p.id IN (?)", bun.In(ids)).
		Order("p.id ASC").
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "projects", time.Since(start), err)

	return projects, err
}

func (r *repository) GetWithAssignments(ctx context.Context, id int) (*Project, error) {
	start := time.Now()
	project := new(Project)
	err := r.db.NewSelect().
		Model(project).
		Relation("Assignments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("a.id ASC")
		}).
		Relation("Assignments.Resource").
		Where("p.id = ?", id).
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select", "projects", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id int) (*Project, error) {
	start := time.Now()
	project := new(Project)
	err := r.db.NewSelect().
		Model(project).
		Where("p.id = ?", id).
		For("UPDATE").
		Scan(ctx)

	r.metrics.DB().RecordQuery(ctx, "select_for_update", "projects", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

func (r *repository) Update(ctx context.Context, project *Project) error {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model(project).
		Column("name", "description", "start_date", "time_estimate_hours", "deadline", "is_task", "status").
		WherePK().
		Returning("updated_at").
		Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "update", "projects", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// Delete removes the project; its assignments are removed by the foreign key cascade.
func (r *repository) Delete(ctx context.Context, id int) error {
	start := time.Now()
	project := &Project{ID: id}
	result, err := r.db.NewDelete().Model(project).WherePK().Exec(ctx)

	r.metrics.DB().RecordQuery(ctx, "delete", "projects", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}
