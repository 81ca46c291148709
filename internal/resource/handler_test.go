package resource_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"resource-manager/internal/activity"
	"resource-manager/internal/assignment"
	"resource-manager/internal/logger"
	"resource-manager/internal/metrics"
	"resource-manager/internal/middleware"
	"resource-manager/internal/project"
	"resource-manager/internal/resource"
	"resource-manager/testing/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceHandler_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t,
		(*resource.Resource)(nil),
		(*project.Project)(nil),
		(*assignment.Assignment)(nil),
		(*activity.Event)(nil),
	)

	log := logger.Discard()
	m := metrics.NewMock()
	store := activity.NewStore(pgContainer.DB, m)
	repo := resource.NewRepository(pgContainer.DB, m)
	service := resource.NewService(pgContainer.DB, repo, store, activity.NewEmitter(log, m), time.Now, log)
	handler := resource.NewHandler(service, log)

	router := chi.NewRouter()
	router.Use(middleware.Actor)
	handler.RegisterRoutes(router)

	cleanup := func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "assignments", "projects", "resources", "activity_logs")
	}

	actions := func(t *testing.T) []activity.Action {
		var events []activity.Event
		require.NoError(t, pgContainer.DB.NewSelect().Model(&events).Order("id ASC").Scan(context.Background()))
		out := make([]activity.Action, 0, len(events))
		for _, e := range events {
			out = append(out, e.Action)
		}
		return out
	}

	t.Run("CreateResource", func(t *testing.T) {
		cleanup(t)

		body, _ := json.Marshal(map[string]interface{}{
			"name":   "Ada Lovelace",
			"email":  "ada@example.com",
			"skills": "Go, Postgres",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/resources", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.ActorHeader, "7")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response resource.Resource
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.NotZero(t, response.ID)
		assert.Equal(t, "Ada Lovelace", response.Name)

		var event activity.Event
		require.NoError(t, pgContainer.DB.NewSelect().Model(&event).Limit(1).Scan(context.Background()))
		assert.Equal(t, activity.ResourceCreated, event.Action)
		assert.Equal(t, 7, event.ActorID)
		assert.Equal(t, "ada@example.com", event.Details["resource_email"])
	})

	t.Run("CreateResourceInvalid", func(t *testing.T) {
		cleanup(t)

		body, _ := json.Marshal(map[string]interface{}{"name": "", "email": "not-an-email"})
		req := httptest.NewRequest(http.MethodPost, "/api/resources", bytes.NewReader(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var response struct {
			Fields map[string]string `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Contains(t, response.Fields, "name")
		assert.Contains(t, response.Fields, "email")
		assert.Empty(t, actions(t))
	})

	t.Run("GetAllResourcesOrderedByName", func(t *testing.T) {
		cleanup(t)

		ctx := context.Background()
		for _, r := range []*resource.Resource{
			{Name: "Zoe", Email: "zoe@example.com"},
			{Name: "Alan", Email: "alan@example.com"},
		} {
			_, err := pgContainer.DB.NewInsert().Model(r).Exec(ctx)
			require.NoError(t, err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/resources", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response []resource.Resource
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		require.Len(t, response, 2)
		assert.Equal(t, "Alan", response[0].Name)
		assert.Equal(t, "Zoe", response[1].Name)
	})

	t.Run("GetResourceNotFound", func(t *testing.T) {
		cleanup(t)

		req := httptest.NewRequest(http.MethodGet, "/api/resources/99999", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("UpdateResourceRecordsChanges", func(t *testing.T) {
		cleanup(t)

		ctx := context.Background()
		existing := &resource.Resource{Name: "Grace", Email: "grace@example.com", Skills: "COBOL"}
		_, err := pgContainer.DB.NewInsert().Model(existing).Exec(ctx)
		require.NoError(t, err)

		body, _ := json.Marshal(map[string]interface{}{
			"name":   "Grace",
			"email":  "grace@example.com",
			"skills": "COBOL, Go",
		})
		req := httptest.NewRequest(http.MethodPut, "/api/resources/"+strconv.Itoa(existing.ID), bytes.NewReader(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var event activity.Event
		require.NoError(t, pgContainer.DB.NewSelect().Model(&event).Where("action = ?", activity.ResourceUpdated).Scan(ctx))
		changes, ok := event.Details["changes"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, map[string]interface{}{"skills": "COBOL, Go"}, changes)
	})

	t.Run("UpdateResourceWithoutChangesIsSilent", func(t *testing.T) {
		cleanup(t)

		ctx := context.Background()
		existing := &resource.Resource{Name: "Linus", Email: "linus@example.com"}
		_, err := pgContainer.DB.NewInsert().Model(existing).Exec(ctx)
		require.NoError(t, err)

		body, _ := json.Marshal(map[string]interface{}{"name": "Linus", "email": "linus@example.com"})
		req := httptest.NewRequest(http.MethodPut, "/api/resources/"+strconv.Itoa(existing.ID), bytes.NewReader(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, actions(t))
	})

	t.Run("DeleteResourceCascadesAssignments", func(t *testing.T) {
		cleanup(t)

		ctx := context.Background()
		existing := &resource.Resource{Name: "Ken", Email: "ken@example.com"}
		_, err := pgContainer.DB.NewInsert().Model(existing).Exec(ctx)
		require.NoError(t, err)

		start := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 0, 1)
		p := &project.Project{Name: "Unix", StartDate: start, TimeEstimateHours: 7, Status: project.StatusActive}
		_, err = pgContainer.DB.NewInsert().Model(p).Exec(ctx)
		require.NoError(t, err)
		_, err = pgContainer.DB.NewInsert().Model(&assignment.Assignment{
			ProjectID: p.ID, ResourceID: existing.ID, StartDate: start, EndDate: &end, Active: true,
		}).Exec(ctx)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodDelete, "/api/resources/"+strconv.Itoa(existing.ID), nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)

		count, err := pgContainer.DB.NewSelect().Table("assignments").Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		var event activity.Event
		require.NoError(t, pgContainer.DB.NewSelect().Model(&event).Where("action = ?", activity.ResourceDeleted).Scan(ctx))
		assert.EqualValues(t, 1, event.Details["assignments_removed"])
	})

	t.Run("DeleteResourceNotFound", func(t *testing.T) {
		cleanup(t)

		req := httptest.NewRequest(http.MethodDelete, "/api/resources/424242", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
