// Package dashboard summarizes who is free and who is busy.
package dashboard

import (
	"context"
	"log/slog"

	"resource-manager/internal/assignment"
	"resource-manager/internal/project"
	"resource-manager/internal/resource"
)

type ProjectSummary struct {
	ID     int            `json:"id"`
	Name   string         `json:"name"`
	IsTask bool           `json:"isTask"`
	Status project.Status `json:"status"`
}

// Occupied is a resource with its active assignment and that assignment's project.
type Occupied struct {
	resource.Resource
	ActiveAssignment *assignment.Assignment `json:"activeAssignment"`
	Project          *ProjectSummary        `json:"project"`
}

type Overview struct {
	AvailableResources []resource.Resource `json:"availableResources"`
	OccupiedResources  []Occupied          `json:"occupiedResources"`
}

type Service interface {
	Overview(ctx context.Context) (*Overview, error)
}

type service struct {
	resources   resource.Repository
	assignments assignment.Repository
	projects    project.Repository
	logger      *slog.Logger
}

func NewService(resources resource.Repository, assignments assignment.Repository, projects project.Repository, logger *slog.Logger) Service {
	return &service{
		resources:   resources,
		assignments: assignments,
		projects:    projects,
		logger:      logger,
	}
}

// Overview partitions every resource, ordered by name, by whether it holds an active assignment.
func (s *service) Overview(ctx context.Context) (*Overview, error) {
	all, err := s.resources.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.assignments.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	byResource := make(map[int]assignment.Assignment, len(active))
	projectIDs := make([]int, 0, len(active))
	for _, a := range active {
		byResource[a.ResourceID] = a
		projectIDs = append(projectIDs, a.ProjectID)
	}

	projects, err := s.projects.GetByIDs(ctx, projectIDs)
	if err != nil {
		return nil, err
	}
	summaries := make(map[int]*ProjectSummary, len(projects))
	for _, p := range projects {
		summaries[p.ID] = &ProjectSummary{ID: p.ID, Name: p.Name, IsTask: p.IsTask, Status: p.Status}
	}

	overview := &Overview{
		AvailableResources: []resource.Resource{},
		OccupiedResources:  []Occupied{},
	}
	for _, r := range all {
		a, busy := byResource[r.ID]
		if !busy {
			overview.AvailableResources = append(overview.AvailableResources, r)
			continue
		}
		a.Resource = nil
		overview.OccupiedResources = append(overview.OccupiedResources, Occupied{
			Resource:         r,
			ActiveAssignment: &a,
			Project:          summaries[a.ProjectID],
		})
	}

	s.logger.DebugContext(ctx, "dashboard overview built",
		"available", len(overview.AvailableResources),
		"occupied", len(overview.OccupiedResources),
	)
	return overview, nil
}
