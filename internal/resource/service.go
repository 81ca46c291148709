package resource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"resource-manager/internal/activity"
	"resource-manager/internal/calendar"
	"resource-manager/internal/validation"

	"github.com/uptrace/bun"
)

var (
	ErrResourceNotFound  = errors.New("resource not found")
	ErrTransactionFailed = errors.New("resource change could not be saved")
)

type Service interface {
	CreateResource(ctx context.Context, actorID int, in Input) (*Resource, error)
	GetAllResources(ctx context.Context) ([]Resource, error)
	GetResourceByID(ctx context.Context, id int) (*Resource, error)
	UpdateResource(ctx context.Context, actorID int, id int, in Input) (*Resource, error)
	DeleteResource(ctx context.Context, actorID int, id int) error
}

type service struct {
	db        *bun.DB
	repo      Repository
	store     activity.Store
	emitter   *activity.Emitter
	validator *validation.Validator
	clock     calendar.Clock
	logger    *slog.Logger
}

func NewService(db *bun.DB, repo Repository, store activity.Store, emitter *activity.Emitter, clock calendar.Clock, logger *slog.Logger) Service {
	return &service{
		db:        db,
		repo:      repo,
		store:     store,
		emitter:   emitter,
		validator: validation.New(),
		clock:     clock,
		logger:    logger,
	}
}

func (s *service) CreateResource(ctx context.Context, actorID int, in Input) (*Resource, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	resource := &Resource{Name: in.Name, Email: in.Email, Skills: in.Skills}
	var events []activity.Event
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.WithTx(tx).Create(ctx, resource); err != nil {
			return err
		}
		events = []activity.Event{activity.New(actorID, activity.ResourceCreated, activity.Details{
			"resource_id":    resource.ID,
			"resource_name":  resource.Name,
			"resource_email": resource.Email,
		}, s.clock())}
		return s.store.Record(ctx, tx, events)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create resource", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	s.emitter.Emit(ctx, events)
	return resource, nil
}

func (s *service) GetAllResources(ctx context.Context) ([]Resource, error) {
	return s.repo.GetAll(ctx)
}

func (s *service) GetResourceByID(ctx context.Context, id int) (*Resource, error) {
	if id <= 0 {
		return nil, ErrResourceNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) UpdateResource(ctx context.Context, actorID int, id int, in Input) (*Resource, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	resource, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := resource.apply(in)
	if len(changes) == 0 {
		return resource, nil
	}

	var events []activity.Event
	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.WithTx(tx).Update(ctx, resource); err != nil {
			return err
		}
		events = []activity.Event{activity.New(actorID, activity.ResourceUpdated, activity.Details{
			"resource_id":   resource.ID,
			"resource_name": resource.Name,
			"changes":       changes,
		}, s.clock())}
		return s.store.Record(ctx, tx, events)
	})
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "failed to update resource", "resource_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	s.emitter.Emit(ctx, events)
	return resource, nil
}

// DeleteResource removes the resource; its assignments go with it through the foreign key cascade.
func (s *service) DeleteResource(ctx context.Context, actorID int, id int) error {
	resource, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var events []activity.Event
	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		removed, err := repo.CountAssignments(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		events = []activity.Event{activity.New(actorID, activity.ResourceDeleted, activity.Details{
			"resource_id":         resource.ID,
			"resource_name":       resource.Name,
			"assignments_removed": removed,
		}, s.clock())}
		return s.store.Record(ctx, tx, events)
	})
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return err
		}
		s.logger.ErrorContext(ctx, "failed to delete resource", "resource_id", id, "error", err)
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	s.emitter.Emit(ctx, events)
	return nil
}
