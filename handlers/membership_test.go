package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/patronhub/models"
)

func membershipApp(repo *MockMembershipRepository, users *MockUserRepository, caller uuid.UUID) *fiber.App {
	h := NewMembershipHandler(repo, users, testValidator(), quietLogger())
	app := fiber.New()
	app.Get("/users/:username/tiers", h.ListTiersByUser)
	app.Post("/tiers", asUser(caller), h.CreateTier)
	app.Delete("/tiers/:id", asUser(caller), h.DeleteTier)
	app.Post("/tiers/:id/join", asUser(caller), h.Join)
	app.Delete("/tiers/:id/join", asUser(caller), h.Leave)
	app.Get("/me/memberships", asUser(caller), h.MyMemberships)
	app.Get("/me/members", asUser(caller), h.MyMembers)
	return app
}

func TestCreateTier(t *testing.T) {
	repo := new(MockMembershipRepository)
	me := uuid.New()
	app := membershipApp(repo, new(MockUserRepository), me)

	repo.On("CreateTier", mock.MatchedBy(func(tier *models.Tier) bool {
		return tier.CreatorID == me && tier.Currency == "EUR" && len(tier.Benefits) == 2 && tier.Benefits[0] == "Early access"
	})).Return(nil)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/tiers", map[string]interface{}{
		"name":        "Supporter",
		"price_cents": 500,
		"currency":    "eur",
		"benefits":    []string{"  Early access ", "", "Discord role"},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	repo.AssertExpectations(t)

	for name, body := range map[string]map[string]interface{}{
		"negative price": {"name": "X", "price_cents": -1, "currency": "USD"},
		"bad currency":   {"name": "X", "price_cents": 1, "currency": "US1"},
		"missing name":   {"price_cents": 1, "currency": "USD"},
	} {
		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/tiers", body))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, name)
	}
}

func TestJoinTier(t *testing.T) {
	repo := new(MockMembershipRepository)
	me := uuid.New()
	app := membershipApp(repo, new(MockUserRepository), me)

	own := &models.Tier{ID: uuid.New(), CreatorID: me, Name: "Mine", PriceCents: 100, Currency: "USD"}
	other := &models.Tier{ID: uuid.New(), CreatorID: uuid.New(), Name: "Gold", PriceCents: 1000, Currency: "USD"}
	repo.On("GetTier", own.ID).Return(own, nil)
	repo.On("GetTier", other.ID).Return(other, nil)
	repo.On("GetTier", mock.Anything).Return(nil, models.ErrNotFound)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/tiers/"+own.ID.String()+"/join", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/tiers/"+uuid.NewString()+"/join", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	repo.On("Join", mock.MatchedBy(func(m *models.Membership) bool {
		return m.SupporterID == me && m.TierName == "Gold" && m.PriceCents == 1000 && m.CreatorID == other.CreatorID
	})).Return(nil).Once()
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/tiers/"+other.ID.String()+"/join", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	repo.On("Join", mock.AnythingOfType("*models.Membership")).Return(models.ErrAlreadyMember)
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/tiers/"+other.ID.String()+"/join", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	repo.AssertExpectations(t)
}

func TestLeaveTier(t *testing.T) {
	repo := new(MockMembershipRepository)
	me := uuid.New()
	app := membershipApp(repo, new(MockUserRepository), me)
	held, notHeld := uuid.New(), uuid.New()
	repo.On("Cancel", me, held).Return(nil)
	repo.On("Cancel", me, notHeld).Return(models.ErrNotFound)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/tiers/"+held.String()+"/join", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/tiers/"+notHeld.String()+"/join", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteTier_OnlyCreator(t *testing.T) {
	repo := new(MockMembershipRepository)
	me := uuid.New()
	app := membershipApp(repo, new(MockUserRepository), me)
	theirs := &models.Tier{ID: uuid.New(), CreatorID: uuid.New()}
	repo.On("GetTier", theirs.ID).Return(theirs, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/tiers/"+theirs.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	repo.AssertNotCalled(t, "DeleteTier", theirs.ID)
}

func TestMyMembers(t *testing.T) {
	repo := new(MockMembershipRepository)
	me := uuid.New()
	app := membershipApp(repo, new(MockUserRepository), me)
	repo.On("ListByCreator", me).Return([]models.Membership{
		{ID: uuid.New(), CreatorID: me, PriceCents: 500, Currency: "USD", Status: models.MembershipActive},
		{ID: uuid.New(), CreatorID: me, PriceCents: 1500, Currency: "USD", Status: models.MembershipActive},
		{ID: uuid.New(), CreatorID: me, PriceCents: 900, Currency: "EUR", Status: models.MembershipActive},
	}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me/members", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Count        int              `json:"count"`
		MonthlyCents map[string]int64 `json:"monthly_cents"`
	}
	decode(t, resp, &body)
	assert.Equal(t, 3, body.Count)
	assert.Equal(t, map[string]int64{"USD": 2000, "EUR": 900}, body.MonthlyCents)
}

func TestListTiersByUser(t *testing.T) {
	repo := new(MockMembershipRepository)
	users := new(MockUserRepository)
	app := membershipApp(repo, users, uuid.New())
	jane := &models.User{ID: uuid.New(), Username: "jane"}
	users.On("GetByUsername", "jane").Return(jane, nil)
	repo.On("ListTiersByCreator", jane.ID).Return([]models.Tier{{ID: uuid.New(), CreatorID: jane.ID, Name: "Fan"}}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/jane/tiers", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Tiers []models.Tier `json:"tiers"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Tiers, 1)
	assert.Equal(t, "Fan", body.Tiers[0].Name)
}
