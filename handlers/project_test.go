package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/patronhub/models"
	"github.com/yourusername/patronhub/services"
)

type projectFixture struct {
	app       *fiber.App
	projects  *MockProjectRepository
	users     *MockUserRepository
	analytics *services.Analytics
	viewer    uuid.UUID
}

func newProjectFixture(t *testing.T, caller uuid.UUID) *projectFixture {
	f := &projectFixture{
		projects:  new(MockProjectRepository),
		users:     new(MockUserRepository),
		analytics: services.NewAnalytics(services.NewMemoryCounter(), quietLogger()),
	}
	media, _ := newTestMedia(t)
	viewer := func(*fiber.Ctx) uuid.UUID { return f.viewer }
	h := NewProjectHandler(f.projects, f.users, media, f.analytics, viewer, testValidator(), quietLogger())

	f.app = fiber.New()
	f.app.Get("/projects/:id", h.Get)
	f.app.Get("/users/:username/projects", h.ListByUser)
	f.app.Post("/projects", asUser(caller), h.Create)
	f.app.Patch("/projects/:id", asUser(caller), h.Update)
	f.app.Delete("/projects/:id", asUser(caller), h.Delete)
	return f
}

func TestCreateProject_DefaultsToDraft(t *testing.T) {
	me := uuid.New()
	f := newProjectFixture(t, me)
	f.projects.On("Create", mock.MatchedBy(func(p *models.Project) bool {
		return p.CreatorID == me && p.Status == models.ProjectDraft && p.PublishedAt == nil && p.Title == "Sketchbook"
	})).Return(nil)

	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/projects", map[string]string{"title": "  Sketchbook "}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	f.projects.AssertExpectations(t)
}

func TestCreateProject_PublishedStampsTime(t *testing.T) {
	f := newProjectFixture(t, uuid.New())
	f.projects.On("Create", mock.AnythingOfType("*models.Project")).Return(nil)

	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/projects", map[string]string{"title": "Zine", "status": "published"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var p models.Project
	decode(t, resp, &p)
	assert.Equal(t, models.ProjectPublished, p.Status)
	assert.NotNil(t, p.PublishedAt)

	resp, err = f.app.Test(jsonRequest(t, http.MethodPost, "/projects", map[string]string{"title": "Zine", "status": "archived"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetProject_Visibility(t *testing.T) {
	creator := uuid.New()
	f := newProjectFixture(t, creator)
	draft := &models.Project{ID: uuid.New(), CreatorID: creator, Title: "WIP", Status: models.ProjectDraft}
	published := &models.Project{ID: uuid.New(), CreatorID: creator, Title: "Done", Status: models.ProjectPublished}
	f.projects.On("GetByID", draft.ID).Return(draft, nil)
	f.projects.On("GetByID", published.ID).Return(published, nil)

	f.viewer = uuid.Nil
	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/projects/"+draft.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "anonymous readers never see drafts")

	f.viewer = creator
	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/projects/"+draft.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	f.viewer = uuid.Nil
	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/projects/"+published.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	ctx := context.Background()
	stats, err := f.analytics.Stats(ctx, services.ViewProject, published.ID.String(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	stats, err = f.analytics.Stats(ctx, services.ViewProject, draft.ID.String(), 1)
	require.NoError(t, err)
	assert.Zero(t, stats.Total, "draft reads are not counted")

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/projects/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdateProject(t *testing.T) {
	me := uuid.New()
	f := newProjectFixture(t, me)
	mine := &models.Project{ID: uuid.New(), CreatorID: me, Title: "Old", Status: models.ProjectDraft}
	theirs := &models.Project{ID: uuid.New(), CreatorID: uuid.New(), Title: "Theirs", Status: models.ProjectPublished}
	f.projects.On("GetByID", mine.ID).Return(mine, nil)
	f.projects.On("GetByID", theirs.ID).Return(theirs, nil)
	f.projects.On("Update", mine).Return(nil)

	resp, err := f.app.Test(jsonRequest(t, http.MethodPatch, "/projects/"+mine.ID.String(), map[string]string{"title": "New", "status": "published"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "New", mine.Title)
	require.NotNil(t, mine.PublishedAt)
	first := *mine.PublishedAt

	resp, err = f.app.Test(jsonRequest(t, http.MethodPatch, "/projects/"+mine.ID.String(), map[string]string{"status": "published"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, first.Equal(*mine.PublishedAt), "republishing keeps the first publish time")

	resp, err = f.app.Test(jsonRequest(t, http.MethodPatch, "/projects/"+theirs.ID.String(), map[string]string{"title": "Mine now"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	f.projects.AssertNotCalled(t, "Update", theirs)
}

func TestDeleteProject(t *testing.T) {
	me := uuid.New()
	f := newProjectFixture(t, me)
	mine := &models.Project{ID: uuid.New(), CreatorID: me}
	theirs := &models.Project{ID: uuid.New(), CreatorID: uuid.New()}
	f.projects.On("GetByID", mine.ID).Return(mine, nil)
	f.projects.On("GetByID", theirs.ID).Return(theirs, nil)
	f.projects.On("GetByID", mock.Anything).Return(nil, models.ErrNotFound)
	f.projects.On("Delete", mine.ID).Return(nil)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodDelete, "/projects/"+theirs.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodDelete, "/projects/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodDelete, "/projects/"+mine.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	f.projects.AssertNotCalled(t, "Delete", theirs.ID)
}

func TestListProjectsByUser(t *testing.T) {
	f := newProjectFixture(t, uuid.New())
	jane := &models.User{ID: uuid.New(), Username: "jane"}
	f.users.On("GetByUsername", "jane").Return(jane, nil)
	f.users.On("GetByUsername", "ghost").Return(nil, models.ErrNotFound)
	now := time.Now().UTC()
	f.projects.On("ListPublishedByCreator", jane.ID, 3, defaultPageSize).Return([]models.Project{
		{ID: uuid.New(), CreatorID: jane.ID, Title: "One", Status: models.ProjectPublished, PublishedAt: &now},
	}, 41, nil)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/users/Jane/projects?page=3", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Projects []models.Project `json:"projects"`
		Page     int              `json:"page"`
		Total    int              `json:"total"`
	}
	decode(t, resp, &body)
	assert.Equal(t, 3, body.Page)
	assert.Equal(t, 41, body.Total)
	assert.Len(t, body.Projects, 1)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/users/ghost/projects", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
