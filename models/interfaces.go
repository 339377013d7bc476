package models

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// UserRepositoryInterface stores accounts. Usernames and emails are stored lowercase;
// lookups by either are case-insensitive.
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, user *User) error
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateFlags(ctx context.Context, id uuid.UUID, isAdmin, isDisabled bool) error
	List(ctx context.Context, page, limit int) ([]User, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProjectRepositoryInterface interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	ListPublishedByCreator(ctx context.Context, creatorID uuid.UUID, page, limit int) ([]Project, int, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type MembershipRepositoryInterface interface {
	CreateTier(ctx context.Context, t *Tier) error
	GetTier(ctx context.Context, id uuid.UUID) (*Tier, error)
	ListTiersByCreator(ctx context.Context, creatorID uuid.UUID) ([]Tier, error)
	DeleteTier(ctx context.Context, id uuid.UUID) error
	// Join activates m, cancelling any other active membership the supporter holds
	// with the same creator. Returns ErrAlreadyMember if m's tier is already active.
	Join(ctx context.Context, m *Membership) error
	Cancel(ctx context.Context, supporterID, tierID uuid.UUID) error
	ListBySupporter(ctx context.Context, supporterID uuid.UUID) ([]Membership, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Membership, error)
}

type ShopRepositoryInterface interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProductsByCreator(ctx context.Context, creatorID uuid.UUID, activeOnly bool) ([]Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	// Purchase takes quantity units from stock and records order in one step.
	// Returns ErrNotFound for missing or inactive products and ErrOutOfStock when
	// stock is short.
	Purchase(ctx context.Context, order *Order) error
	ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]Order, error)
}

// Repositories bundles the store implementations for one backend.
type Repositories struct {
	// Backend is "postgres" or "mongo".
	Backend     string
	Users       UserRepositoryInterface
	Projects    ProjectRepositoryInterface
	Memberships MembershipRepositoryInterface
	Shop        ShopRepositoryInterface
	// Ping checks the backing store.
	Ping func(ctx context.Context) error
	// Dump returns one exported table or collection as a JSON array.
	Dump func(ctx context.Context, name string) (json.RawMessage, error)
}
