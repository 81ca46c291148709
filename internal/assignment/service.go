package assignment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"resource-manager/internal/activity"
	"resource-manager/internal/calendar"
	"resource-manager/internal/metrics"

	"github.com/uptrace/bun"
)

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAlreadyInactive    = errors.New("assignment already inactive")
	ErrTransactionFailed  = errors.New("assignment change could not be saved")
)

type Service interface {
	GetAssignment(ctx context.Context, id int) (*Assignment, error)
	// Complete deactivates an active assignment. Completing an inactive one is not an error:
	// the Outcome reports AlreadyInactive and nothing is written or emitted.
	Complete(ctx context.Context, actorID int, id int) (*Outcome, []activity.Event, error)
}

type service struct {
	db      *bun.DB
	repo    Repository
	store   activity.Store
	emitter *activity.Emitter
	clock   calendar.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(db *bun.DB, repo Repository, store activity.Store, emitter *activity.Emitter, clock calendar.Clock, m *metrics.Metrics, logger *slog.Logger) Service {
	return &service{
		db:      db,
		repo:    repo,
		store:   store,
		emitter: emitter,
		clock:   clock,
		metrics: m,
		logger:  logger,
	}
}

func (s *service) GetAssignment(ctx context.Context, id int) (*Assignment, error) {
	if id <= 0 {
		return nil, ErrAssignmentNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) Complete(ctx context.Context, actorID int, id int) (*Outcome, []activity.Event, error) {
	existing, err := s.GetAssignment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !existing.Active {
		s.logger.WarnContext(ctx, "assignment already inactive", "assignment_id", id)
		return &Outcome{Assignment: existing, AlreadyInactive: true, Message: "Assignment was already inactive."}, nil, nil
	}

	today := calendar.Today(s.clock)
	var events []activity.Event
	alreadyInactive := false

	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !locked.Active {
			alreadyInactive = true
			return nil
		}

		// An end date already in the past is kept; otherwise the assignment ends today.
		completion := today
		if locked.EndDate != nil && calendar.Date(*locked.EndDate).Before(today) {
			completion = calendar.Date(*locked.EndDate)
		}
		locked.EndDate = &completion

		if err := repo.MarkInactive(ctx, locked); err != nil {
			return err
		}

		projectName, err := projectName(ctx, tx, locked.ProjectID)
		if err != nil {
			return err
		}

		events = []activity.Event{activity.New(actorID, activity.AssignmentCompleted, activity.Details{
			"assignment_id":   locked.ID,
			"project_id":      locked.ProjectID,
			"project_name":    projectName,
			"resource_id":     locked.ResourceID,
			"resource_name":   resourceName(existing),
			"completion_date": calendar.Format(completion),
		}, s.clock())}
		return s.store.Record(ctx, tx, events)
	})
	if err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return nil, nil, err
		}
		s.metrics.DB().RecordRollback(ctx, "complete_assignment")
		s.logger.ErrorContext(ctx, "failed to complete assignment", "assignment_id", id, "error", err)
		return nil, nil, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	completed, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if alreadyInactive {
		s.logger.WarnContext(ctx, "assignment completed concurrently", "assignment_id", id)
		return &Outcome{Assignment: completed, AlreadyInactive: true, Message: "Assignment was already inactive."}, nil, nil
	}

	s.metrics.RecordAssignmentCompleted(ctx)
	s.emitter.Emit(ctx, events)

	return &Outcome{Assignment: completed, Message: "Assignment marked as complete."}, events, nil
}

func projectName(ctx context.Context, db bun.IDB, projectID int) (string, error) {
	var name string
	err := db.NewSelect().
		Table("projects").
		Column("name").
		Where("id = ?", projectID).
		Scan(ctx, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

func resourceName(a *Assignment) string {
	if a.Resource == nil {
		return ""
	}
	return a.Resource.Name
}
