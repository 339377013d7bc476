package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/patronhub/models"
	"github.com/yourusername/patronhub/services"
)

type MockUserRepository struct {
	mock.Mock
}

var _ models.UserRepositoryInterface = (*MockUserRepository)(nil)

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(user)
	if args.Error(0) == nil {
		user.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockUserRepository) userResult(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.userResult(m.Called(id))
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.userResult(m.Called(email))
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.userResult(m.Called(username))
}

func (m *MockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	return m.Called(user).Error(0)
}

func (m *MockUserRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	return m.Called(id, email).Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return m.Called(id, hash).Error(0)
}

func (m *MockUserRepository) UpdateFlags(ctx context.Context, id uuid.UUID, isAdmin, isDisabled bool) error {
	return m.Called(id, isAdmin, isDisabled).Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, page, limit int) ([]models.User, int, error) {
	args := m.Called(page, limit)
	return args.Get(0).([]models.User), args.Int(1), args.Error(2)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(id).Error(0)
}

type MockProjectRepository struct {
	mock.Mock
}

var _ models.ProjectRepositoryInterface = (*MockProjectRepository)(nil)

func (m *MockProjectRepository) Create(ctx context.Context, p *models.Project) error {
	args := m.Called(p)
	if args.Error(0) == nil {
		p.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectRepository) ListPublishedByCreator(ctx context.Context, creatorID uuid.UUID, page, limit int) ([]models.Project, int, error) {
	args := m.Called(creatorID, page, limit)
	return args.Get(0).([]models.Project), args.Int(1), args.Error(2)
}

func (m *MockProjectRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Project, error) {
	args := m.Called(creatorID)
	return args.Get(0).([]models.Project), args.Error(1)
}

func (m *MockProjectRepository) Update(ctx context.Context, p *models.Project) error {
	return m.Called(p).Error(0)
}

func (m *MockProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(id).Error(0)
}

type MockMembershipRepository struct {
	mock.Mock
}

var _ models.MembershipRepositoryInterface = (*MockMembershipRepository)(nil)

func (m *MockMembershipRepository) CreateTier(ctx context.Context, t *models.Tier) error {
	args := m.Called(t)
	if args.Error(0) == nil {
		t.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockMembershipRepository) GetTier(ctx context.Context, id uuid.UUID) (*models.Tier, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tier), args.Error(1)
}

func (m *MockMembershipRepository) ListTiersByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Tier, error) {
	args := m.Called(creatorID)
	return args.Get(0).([]models.Tier), args.Error(1)
}

func (m *MockMembershipRepository) DeleteTier(ctx context.Context, id uuid.UUID) error {
	return m.Called(id).Error(0)
}

func (m *MockMembershipRepository) Join(ctx context.Context, ms *models.Membership) error {
	return m.Called(ms).Error(0)
}

func (m *MockMembershipRepository) Cancel(ctx context.Context, supporterID, tierID uuid.UUID) error {
	return m.Called(supporterID, tierID).Error(0)
}

func (m *MockMembershipRepository) ListBySupporter(ctx context.Context, supporterID uuid.UUID) ([]models.Membership, error) {
	args := m.Called(supporterID)
	return args.Get(0).([]models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Membership, error) {
	args := m.Called(creatorID)
	return args.Get(0).([]models.Membership), args.Error(1)
}

type MockShopRepository struct {
	mock.Mock
}

var _ models.ShopRepositoryInterface = (*MockShopRepository)(nil)

func (m *MockShopRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	args := m.Called(p)
	if args.Error(0) == nil {
		p.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockShopRepository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockShopRepository) ListProductsByCreator(ctx context.Context, creatorID uuid.UUID, activeOnly bool) ([]models.Product, error) {
	args := m.Called(creatorID, activeOnly)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockShopRepository) UpdateProduct(ctx context.Context, p *models.Product) error {
	return m.Called(p).Error(0)
}

func (m *MockShopRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return m.Called(id).Error(0)
}

func (m *MockShopRepository) Purchase(ctx context.Context, order *models.Order) error {
	return m.Called(order).Error(0)
}

func (m *MockShopRepository) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	args := m.Called(buyerID)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockShopRepository) ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	args := m.Called(sellerID)
	return args.Get(0).([]models.Order), args.Error(1)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

func testValidator() *validator.Validate {
	return NewValidator(services.NewUsernamePolicy(services.UsernameConfig{}))
}

// asUser stands in for JWT.Protected in handler tests.
func asUser(id uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func newTestAccounts(repo *MockUserRepository) *services.AccountService {
	policy := services.NewUsernamePolicy(services.UsernameConfig{})
	alloc := services.NewUsernameAllocator(policy, repo)
	return services.NewAccountService(repo, alloc, services.DefaultPasswordPolicy(), 3, quietLogger())
}

func newTestMedia(t *testing.T) (*MediaUploader, *services.LocalStorage) {
	st := services.NewLocalStorage(t.TempDir())
	images := services.NewImageProcessor(services.MediaConfig{MaxWidth: 256, AvatarSize: 64})
	return NewMediaUploader(st, images, 1<<20, quietLogger()), st
}
