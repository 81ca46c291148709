package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"resource-manager/internal/assignment"
	"resource-manager/internal/dashboard"
	"resource-manager/internal/logger"
	"resource-manager/internal/project"
	"resource-manager/internal/resource"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResources struct {
	resource.Repository
	all []resource.Resource
	err error
}

func (s *stubResources) GetAll(context.Context) ([]resource.Resource, error) {
	return s.all, s.err
}

type stubAssignments struct {
	assignment.Repository
	active []assignment.Assignment
}

func (s *stubAssignments) ListActive(context.Context) ([]assignment.Assignment, error) {
	return s.active, nil
}

type stubProjects struct {
	project.Repository
	projects []project.Project
}

func (s *stubProjects) GetByIDs(_ context.Context, ids []int) ([]project.Project, error) {
	var out []project.Project
	for _, p := range s.projects {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func TestService_Overview(t *testing.T) {
	resources := &stubResources{all: []resource.Resource{
		{ID: 2, Name: "Ada"},
		{ID: 1, Name: "Grace"},
		{ID: 3, Name: "Linus"},
	}}
	assignments := &stubAssignments{active: []assignment.Assignment{
		{ID: 10, ProjectID: 7, ResourceID: 1, Active: true},
	}}
	projects := &stubProjects{projects: []project.Project{
		{ID: 7, Name: "Compiler", Status: project.StatusActive},
	}}

	overview, err := dashboard.NewService(resources, assignments, projects, logger.Discard()).Overview(context.Background())
	require.NoError(t, err)

	require.Len(t, overview.AvailableResources, 2)
	assert.Equal(t, "Ada", overview.AvailableResources[0].Name)
	assert.Equal(t, "Linus", overview.AvailableResources[1].Name)

	require.Len(t, overview.OccupiedResources, 1)
	occupied := overview.OccupiedResources[0]
	assert.Equal(t, "Grace", occupied.Name)
	assert.Equal(t, 10, occupied.ActiveAssignment.ID)
	require.NotNil(t, occupied.Project)
	assert.Equal(t, "Compiler", occupied.Project.Name)
}

func TestHandler_Overview(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		service := dashboard.NewService(&stubResources{}, &stubAssignments{}, &stubProjects{}, logger.Discard())
		router := chi.NewRouter()
		dashboard.NewHandler(service, logger.Discard()).RegisterRoutes(router)

		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string][]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Empty(t, response["availableResources"])
		assert.Empty(t, response["occupiedResources"])
	})

	t.Run("repository failure", func(t *testing.T) {
		service := dashboard.NewService(&stubResources{err: errors.New("boom")}, &stubAssignments{}, &stubProjects{}, logger.Discard())
		router := chi.NewRouter()
		dashboard.NewHandler(service, logger.Discard()).RegisterRoutes(router)

		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
