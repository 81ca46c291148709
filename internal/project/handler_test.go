package project_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"resource-manager/internal/activity"
	"resource-manager/internal/availability"
	"resource-manager/internal/logger"
	"resource-manager/internal/middleware"
	"resource-manager/internal/project"
	"resource-manager/internal/resource"
	"resource-manager/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockService is a mock implementation of project.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) CreateWithAssignments(ctx context.Context, actorID int, in project.Input) (*project.Result, error) {
	args := m.Called(ctx, actorID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*project.Result), args.Error(1)
}

func (m *MockService) UpdateWithAssignments(ctx context.Context, actorID int, id int, in project.Input) (*project.Result, error) {
	args := m.Called(ctx, actorID, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*project.Result), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, actorID int, id int) ([]activity.Event, error) {
	args := m.Called(ctx, actorID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]activity.Event), args.Error(1)
}

func (m *MockService) GetProject(ctx context.Context, id int) (*project.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*project.Project), args.Error(1)
}

func (m *MockService) ListProjects(ctx context.Context, filter project.ListFilter) ([]project.Project, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]project.Project), args.Error(1)
}

func (m *MockService) AvailableResources(ctx context.Context) ([]resource.Resource, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]resource.Resource), args.Error(1)
}

func (m *MockService) ResourcesFor(ctx context.Context, id int) ([]availability.ResourceStatus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]availability.ResourceStatus), args.Error(1)
}

func newRouter(service project.Service) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Actor)
	project.NewHandler(service, logger.Discard()).RegisterRoutes(router)
	return router
}

func TestProjectHandler_CreateProject(t *testing.T) {
	input := project.Input{
		Name:              "Billing",
		StartDate:         "2026-10-19",
		TimeEstimateHours: 7,
		ResourceIDs:       []int{1, 2},
	}

	tests := []struct {
		name       string
		body       string
		setupMock  func(m *MockService)
		wantStatus int
		check      func(t *testing.T, body map[string]interface{})
	}{
		{
			name: "created",
			setupMock: func(m *MockService) {
				m.On("CreateWithAssignments", mock.Anything, 4, input).
					Return(&project.Result{Project: &project.Project{ID: 10, Name: "Billing"}}, nil)
			},
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, body map[string]interface{}) {
				p := body["project"].(map[string]interface{})
				assert.EqualValues(t, 10, p["id"])
			},
		},
		{
			name: "resource conflict names the field",
			setupMock: func(m *MockService) {
				m.On("CreateWithAssignments", mock.Anything, 4, input).
					Return(nil, availability.NewConflictError([]availability.Conflict{
						{ResourceID: 2, ResourceName: "Grace", ProjectID: 5},
						{ResourceID: 1, ResourceName: "Ada", ProjectID: 6},
					}))
			},
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]interface{}) {
				fields := body["fields"].(map[string]interface{})
				assert.Equal(t, "Grace is already assigned to another active project", fields["resource_ids"])

				// only the first conflict is reported
				assert.NotContains(t, body, "conflicts")
				first := body["conflict"].(map[string]interface{})
				assert.EqualValues(t, 2, first["resourceId"])
				assert.EqualValues(t, 5, first["projectId"])
			},
		},
		{
			name: "validation error",
			setupMock: func(m *MockService) {
				m.On("CreateWithAssignments", mock.Anything, 4, input).
					Return(nil, validation.Field("start_date", "must be today or later"))
			},
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]interface{}) {
				fields := body["fields"].(map[string]interface{})
				assert.Equal(t, "must be today or later", fields["start_date"])
			},
		},
		{
			name: "unknown resource",
			setupMock: func(m *MockService) {
				m.On("CreateWithAssignments", mock.Anything, 4, input).
					Return(nil, fmt.Errorf("%w: %d", resource.ErrResourceNotFound, 2))
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "transaction failure echoes input",
			setupMock: func(m *MockService) {
				m.On("CreateWithAssignments", mock.Anything, 4, input).
					Return(nil, fmt.Errorf("%w: connection reset", project.ErrTransactionFailed))
			},
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "Failed to create project. Please try again.", body["error"])
				echoed := body["input"].(map[string]interface{})
				assert.Equal(t, "Billing", echoed["name"])
				assert.Equal(t, []interface{}{float64(1), float64(2)}, echoed["resource_ids"])
			},
		},
		{
			name:       "malformed body",
			body:       "{",
			setupMock:  func(m *MockService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			tt.setupMock(service)
			router := newRouter(service)

			body := tt.body
			if body == "" {
				raw, err := json.Marshal(input)
				require.NoError(t, err)
				body = string(raw)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(middleware.ActorHeader, "4")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.check != nil {
				var response map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				tt.check(t, response)
			}
			service.AssertExpectations(t)
		})
	}
}

func TestProjectHandler_UpdateProject(t *testing.T) {
	input := project.Input{Name: "Billing", StartDate: "2026-10-19", TimeEstimateHours: 14, ResourceIDs: []int{1}}
	raw, err := json.Marshal(input)
	require.NoError(t, err)

	t.Run("not found", func(t *testing.T) {
		service := new(MockService)
		service.On("UpdateWithAssignments", mock.Anything, 0, 8, input).Return(nil, project.ErrProjectNotFound)

		req := httptest.NewRequest(http.MethodPut, "/api/projects/8", bytes.NewReader(raw))
		w := httptest.NewRecorder()
		newRouter(service).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		service := new(MockService)

		req := httptest.NewRequest(http.MethodPut, "/api/projects/abc", bytes.NewReader(raw))
		w := httptest.NewRecorder()
		newRouter(service).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		service.AssertNotCalled(t, "UpdateWithAssignments")
	})
}

func TestProjectHandler_ListProjects(t *testing.T) {
	service := new(MockService)
	service.On("ListProjects", mock.Anything, project.ListFilter{Type: "task", Status: "all"}).
		Return([]project.Project{{ID: 1, Name: "Task", IsTask: true}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/projects?type=task&status=all", nil)
	w := httptest.NewRecorder()
	newRouter(service).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response []project.Project
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response, 1)
	assert.True(t, response[0].IsTask)
	service.AssertExpectations(t)
}

func TestProjectHandler_DeleteProject(t *testing.T) {
	service := new(MockService)
	service.On("Delete", mock.Anything, 2, 5).Return([]activity.Event{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/projects/5", nil)
	req.Header.Set(middleware.ActorHeader, "2")
	w := httptest.NewRecorder()
	newRouter(service).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	service.AssertExpectations(t)
}

func TestProjectHandler_AvailableResourcesRoute(t *testing.T) {
	service := new(MockService)
	service.On("AvailableResources", mock.Anything).Return([]resource.Resource{{ID: 3, Name: "Free"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/available-resources", nil)
	w := httptest.NewRecorder()
	newRouter(service).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Free")
	service.AssertExpectations(t)
}
