package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"resource-manager/internal/activity"
	"resource-manager/internal/assignment"
	"resource-manager/internal/availability"
	"resource-manager/internal/calendar"
	"resource-manager/internal/db"
	"resource-manager/internal/lock"
	"resource-manager/internal/metrics"
	"resource-manager/internal/resource"
	"resource-manager/internal/schedule"
	"resource-manager/internal/validation"

	"github.com/uptrace/bun"
)

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrTransactionFailed = errors.New("project change could not be saved")
)

// Service coordinates projects and their assignments. Every mutation runs in one transaction,
// records its activity events in that transaction and publishes them after commit.
type Service interface {
	CreateWithAssignments(ctx context.Context, actorID int, in Input) (*Result, error)
	UpdateWithAssignments(ctx context.Context, actorID int, id int, in Input) (*Result, error)
	Delete(ctx context.Context, actorID int, id int) ([]activity.Event, error)
	GetProject(ctx context.Context, id int) (*Project, error)
	ListProjects(ctx context.Context, filter ListFilter) ([]Project, error)
	AvailableResources(ctx context.Context) ([]resource.Resource, error)
	ResourcesFor(ctx context.Context, id int) ([]availability.ResourceStatus, error)
}

// Deps wires a Service.
type Deps struct {
	DB          *bun.DB
	Projects    Repository
	Assignments assignment.Repository
	Resources   resource.Repository
	Registry    *availability.Registry
	Engine      *schedule.Engine
	Locker      lock.Locker
	Store       activity.Store
	Emitter     *activity.Emitter
	Clock       calendar.Clock
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

type service struct {
	Deps
	validator *validation.Validator
}

func NewService(deps Deps) Service {
	if deps.Engine == nil {
		deps.Engine = schedule.New(schedule.DefaultHoursPerDay)
	}
	if deps.Locker == nil {
		deps.Locker = lock.Noop{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &service{
		Deps:      deps,
		validator: validation.New(),
	}
}

// fields is a validated Input.
type fields struct {
	name        string
	description string
	startDate   time.Time
	hours       int
	deadline    *time.Time
	isTask      *bool
	status      Status
	resourceIDs []int
}

func (s *service) parse(in Input) (*fields, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	start, err := calendar.Parse(in.StartDate)
	if err != nil {
		return nil, validation.Field("start_date", "must be a date in 2006-01-02 format")
	}

	f := &fields{
		name:        in.Name,
		description: in.Description,
		startDate:   start,
		hours:       in.TimeEstimateHours,
		isTask:      in.IsTask,
		status:      in.Status,
		resourceIDs: availability.Dedupe(in.ResourceIDs),
	}

	if in.Deadline != "" {
		deadline, err := calendar.Parse(in.Deadline)
		if err != nil {
			return nil, validation.Field("deadline", "must be a date in 2006-01-02 format")
		}
		if deadline.Before(start) {
			return nil, validation.Field("deadline", "must be on or after the start date")
		}
		f.deadline = &deadline
	}
	return f, nil
}

// requireResources fails with resource.ErrResourceNotFound naming the first unknown id.
func (s *service) requireResources(ctx context.Context, ids []int) (map[int]resource.Resource, error) {
	found, err := s.Resources.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]resource.Resource, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %d", resource.ErrResourceNotFound, id)
		}
	}
	return byID, nil
}

func (s *service) acquire(ctx context.Context, ids []int) (lock.Release, error) {
	release, err := s.Locker.Acquire(ctx, lock.ResourceKeys(ids))
	if err != nil {
		return nil, err
	}
	return release, nil
}

func (s *service) release(ctx context.Context, release lock.Release) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		s.Logger.WarnContext(ctx, "failed to release resource locks", "error", err)
	}
}

func (s *service) CreateWithAssignments(ctx context.Context, actorID int, in Input) (*Result, error) {
	f, err := s.parse(in)
	if err != nil {
		return nil, err
	}
	if today := calendar.Today(s.Clock); f.startDate.Before(today) {
		return nil, validation.Field("start_date", "must be today or later")
	}

	resources, err := s.requireResources(ctx, f.resourceIDs)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, f.resourceIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer s.release(ctx, release)

	project := &Project{
		Name:              f.name,
		Description:       f.description,
		StartDate:         f.startDate,
		TimeEstimateHours: f.hours,
		Deadline:          f.deadline,
		IsTask:            f.isTask != nil && *f.isTask,
		Status:            f.status,
	}
	if project.Status == "" {
		project.Status = StatusActive
	}

	rng := s.Engine.Compute(f.startDate, f.hours, len(f.resourceIDs))
	var events []activity.Event
	var created []*assignment.Assignment

	err = s.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.Registry.LockResources(ctx, tx, f.resourceIDs); err != nil {
			return err
		}
		if err := s.Registry.ValidateAdditions(ctx, tx, f.resourceIDs, nil); err != nil {
			return err
		}

		if err := s.Projects.WithTx(tx).Create(ctx, project); err != nil {
			return err
		}
		now := s.Clock()
		events = append(events, activity.New(actorID, activity.ProjectCreated, activity.Details{
			"project_id":   project.ID,
			"project_name": project.Name,
			"is_task":      project.IsTask,
			"resource_ids": f.resourceIDs,
		}, now))

		created = newAssignments(project.ID, f.resourceIDs, rng)
		if err := s.Assignments.WithTx(tx).CreateMany(ctx, created); err != nil {
			return err
		}
		for _, a := range created {
			events = append(events, assignmentCreated(actorID, a, project, resources[a.ResourceID], now))
		}

		return s.Store.Record(ctx, tx, events)
	})
	if err != nil {
		return nil, s.failure(ctx, "create_project", f.resourceIDs, nil, err)
	}

	s.Metrics.RecordProjectCreated(ctx)
	s.Metrics.RecordAssignmentsCreated(ctx, len(created))
	s.Emitter.Emit(ctx, events)

	s.Logger.InfoContext(ctx, "project created",
		"project_id", project.ID,
		"resources", len(created),
		"start_date", calendar.Format(rng.Start),
		"end_date", calendar.Format(rng.End),
	)

	for _, a := range created {
		if r, ok := resources[a.ResourceID]; ok {
			a.Resource = &r
		}
	}
	project.Assignments = created
	return &Result{Project: project, Range: &rng, Events: events}, nil
}

func (s *service) UpdateWithAssignments(ctx context.Context, actorID int, id int, in Input) (*Result, error) {
	f, err := s.parse(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.Projects.GetWithAssignments(ctx, id)
	if err != nil {
		return nil, err
	}

	resources, err := s.requireResources(ctx, f.resourceIDs)
	if err != nil {
		return nil, err
	}

	involved := append([]int{}, f.resourceIDs...)
	for _, a := range existing.Assignments {
		involved = append(involved, a.ResourceID)
	}
	release, err := s.acquire(ctx, involved)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer s.release(ctx, release)

	var (
		events          []activity.Event
		rng             *schedule.Range
		project         *Project
		added           int
		removed         int
		rosterUnchanged bool
	)

	err = s.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		projects := s.Projects.WithTx(tx)
		assignments := s.Assignments.WithTx(tx)

		var err error
		project, err = projects.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.Clock()

		previousStart, previousHours := project.StartDate, project.TimeEstimateHours
		changes := project.apply(f)
		if len(changes) > 0 {
			if err := projects.Update(ctx, project); err != nil {
				return err
			}
			events = append(events, activity.New(actorID, activity.ProjectUpdated, activity.Details{
				"project_id":   project.ID,
				"project_name": project.Name,
				"changes":      changes,
			}, now))
		}

		current, err := assignments.ListByProject(ctx, id)
		if err != nil {
			return err
		}
		currentIDs := make([]int, 0, len(current))
		for _, a := range current {
			currentIDs = append(currentIDs, a.ResourceID)
		}
		change := availability.Diff(currentIDs, f.resourceIDs)

		if _, err := s.Registry.LockResources(ctx, tx, append(append([]int(nil), change.ToAdd...), change.ToRemove...)); err != nil {
			return err
		}

		if len(change.ToRemove) > 0 {
			removeSet := make(map[int]bool, len(change.ToRemove))
			for _, rid := range change.ToRemove {
				removeSet[rid] = true
			}
			var ids []int
			for _, a := range current {
				if removeSet[a.ResourceID] {
					ids = append(ids, a.ID)
					events = append(events, activity.New(actorID, activity.AssignmentDeleted, activity.Details{
						"assignment_id": a.ID,
						"project_id":    a.ProjectID,
						"resource_id":   a.ResourceID,
						"resource_name": resourceName(a.Resource),
					}, now))
				}
			}
			if removed, err = assignments.DeleteByIDs(ctx, ids); err != nil {
				return err
			}
		}

		if len(change.ToAdd) > 0 {
			if err := s.Registry.ValidateAdditions(ctx, tx, change.ToAdd, &id); err != nil {
				return err
			}
			computed := s.Engine.Compute(project.StartDate, project.TimeEstimateHours, len(f.resourceIDs))
			rng = &computed

			created := newAssignments(project.ID, change.ToAdd, computed)
			if err := assignments.CreateMany(ctx, created); err != nil {
				return err
			}
			for _, a := range created {
				events = append(events, assignmentCreated(actorID, a, project, resources[a.ResourceID], now))
			}
			added = len(created)
		}

		rosterUnchanged = change.Empty()
		datesChanged := !project.StartDate.Equal(previousStart) || project.TimeEstimateHours != previousHours
		if rosterUnchanged && datesChanged {
			var activeIDs []int
			for _, a := range current {
				if a.Active {
					activeIDs = append(activeIDs, a.ID)
				}
			}
			computed := s.Engine.Compute(project.StartDate, project.TimeEstimateHours, len(f.resourceIDs))
			rng = &computed
			if _, err := assignments.UpdateRange(ctx, activeIDs, computed.Start, computed.End); err != nil {
				return err
			}
		}

		return s.Store.Record(ctx, tx, events)
	})
	if err != nil {
		return nil, s.failure(ctx, "update_project", f.resourceIDs, &id, err)
	}

	s.Metrics.RecordProjectUpdated(ctx)
	s.Metrics.RecordAssignmentsCreated(ctx, added)
	s.Metrics.RecordAssignmentsDeleted(ctx, removed)
	s.Emitter.Emit(ctx, events)

	s.Logger.InfoContext(ctx, "project updated",
		"project_id", id,
		"assignments_added", added,
		"assignments_removed", removed,
		"roster_unchanged", rosterUnchanged,
	)

	updated, err := s.Projects.GetWithAssignments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{Project: updated, Range: rng, Events: events}, nil
}

func (s *service) Delete(ctx context.Context, actorID int, id int) ([]activity.Event, error) {
	if _, err := s.Projects.GetByID(ctx, id); err != nil {
		return nil, err
	}

	var events []activity.Event
	err := s.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		projects := s.Projects.WithTx(tx)

		project, err := projects.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		current, err := s.Assignments.WithTx(tx).ListByProject(ctx, id)
		if err != nil {
			return err
		}

		if err := projects.Delete(ctx, id); err != nil {
			return err
		}

		now := s.Clock()
		for _, a := range current {
			events = append(events, activity.New(actorID, activity.AssignmentDeleted, activity.Details{
				"assignment_id": a.ID,
				"project_id":    a.ProjectID,
				"resource_id":   a.ResourceID,
				"resource_name": resourceName(a.Resource),
			}, now))
		}
		events = append(events, activity.New(actorID, activity.ProjectDeleted, activity.Details{
			"project_id":   project.ID,
			"project_name": project.Name,
		}, now))

		return s.Store.Record(ctx, tx, events)
	})
	if err != nil {
		return nil, s.failure(ctx, "delete_project", nil, &id, err)
	}

	s.Metrics.RecordProjectDeleted(ctx)
	s.Metrics.RecordAssignmentsDeleted(ctx, len(events)-1)
	s.Emitter.Emit(ctx, events)

	s.Logger.InfoContext(ctx, "project deleted", "project_id", id, "assignments_removed", len(events)-1)
	return events, nil
}

func (s *service) GetProject(ctx context.Context, id int) (*Project, error) {
	if id <= 0 {
		return nil, ErrProjectNotFound
	}
	return s.Projects.GetWithAssignments(ctx, id)
}

func (s *service) ListProjects(ctx context.Context, filter ListFilter) ([]Project, error) {
	switch filter.Type {
	case "", "project", "task":
	default:
		return nil, validation.Field("type", "must be one of: project task")
	}
	switch Status(filter.Status) {
	case "", "all", StatusActive, StatusCompleted, StatusArchived, StatusOnPause:
	default:
		return nil, validation.Field("status", "must be one of: all active completed archived on_pause")
	}
	return s.Projects.List(ctx, filter)
}

func (s *service) AvailableResources(ctx context.Context) ([]resource.Resource, error) {
	return s.Registry.Available(ctx)
}

func (s *service) ResourcesFor(ctx context.Context, id int) ([]availability.ResourceStatus, error) {
	if _, err := s.Projects.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.Registry.Resources(ctx, &id)
}

// failure classifies a rolled back transaction. Domain errors pass through; a unique violation on the
// active assignment index means a concurrent writer won, reported as an availability conflict.
// Anything else is wrapped in ErrTransactionFailed.
func (s *service) failure(ctx context.Context, operation string, resourceIDs []int, projectID *int, err error) error {
	s.Metrics.DB().RecordRollback(ctx, operation)

	var verr *validation.Error
	switch {
	case errors.Is(err, availability.ErrResourceUnavailable):
		s.Logger.InfoContext(ctx, "resource unavailable", "operation", operation, "error", err)
		return err
	case errors.As(err, &verr), errors.Is(err, ErrProjectNotFound), errors.Is(err, resource.ErrResourceNotFound):
		return err
	case db.IsUniqueViolation(err, db.ActiveAssignmentIndex):
		s.Metrics.RecordAvailabilityConflict(ctx)
		if conflictErr := s.Registry.ValidateAdditions(ctx, s.DB, resourceIDs, projectID); conflictErr != nil &&
			errors.Is(conflictErr, availability.ErrResourceUnavailable) {
			return conflictErr
		}
		return availability.NewConflictError([]availability.Conflict{{ResourceID: firstOrZero(resourceIDs)}})
	}

	s.Logger.ErrorContext(ctx, "project transaction failed", "operation", operation, "error", err)
	return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
}

func newAssignments(projectID int, resourceIDs []int, rng schedule.Range) []*assignment.Assignment {
	out := make([]*assignment.Assignment, 0, len(resourceIDs))
	for _, rid := range resourceIDs {
		end := rng.End
		out = append(out, &assignment.Assignment{
			ProjectID:  projectID,
			ResourceID: rid,
			StartDate:  rng.Start,
			EndDate:    &end,
			Active:     true,
		})
	}
	return out
}

func assignmentCreated(actorID int, a *assignment.Assignment, p *Project, r resource.Resource, now time.Time) activity.Event {
	details := activity.Details{
		"assignment_id": a.ID,
		"project_id":    p.ID,
		"project_name":  p.Name,
		"resource_id":   a.ResourceID,
		"resource_name": r.Name,
		"start_date":    calendar.Format(a.StartDate),
	}
	if a.EndDate != nil {
		details["estimated_end_date"] = calendar.Format(*a.EndDate)
	}
	return activity.New(actorID, activity.AssignmentCreated, details, now)
}

func resourceName(r *resource.Resource) string {
	if r == nil {
		return ""
	}
	return r.Name
}

func firstOrZero(ids []int) int {
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}

// apply copies validated fields onto p and returns what changed, keyed by form field name.
// IsTask is kept when the form leaves it out.
func (p *Project) apply(f *fields) map[string]any {
	changes := make(map[string]any)
	if p.Name != f.name {
		changes["name"] = f.name
		p.Name = f.name
	}
	if p.Description != f.description {
		changes["description"] = f.description
		p.Description = f.description
	}
	if !calendar.Date(p.StartDate).Equal(f.startDate) {
		changes["start_date"] = calendar.Format(f.startDate)
		p.StartDate = f.startDate
	}
	if p.TimeEstimateHours != f.hours {
		changes["time_estimate_hours"] = f.hours
		p.TimeEstimateHours = f.hours
	}
	if !sameDate(p.Deadline, f.deadline) {
		if f.deadline == nil {
			changes["deadline"] = nil
		} else {
			changes["deadline"] = calendar.Format(*f.deadline)
		}
		p.Deadline = f.deadline
	}
	if f.isTask != nil && p.IsTask != *f.isTask {
		changes["is_task"] = *f.isTask
		p.IsTask = *f.isTask
	}
	if f.status != "" && p.Status != f.status {
		changes["status"] = string(f.status)
		p.Status = f.status
	}
	return changes
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return calendar.Date(*a).Equal(calendar.Date(*b))
}
