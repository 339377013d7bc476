package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MembershipActive    = "active"
	MembershipCancelled = "cancelled"
)

// Tier is a paid membership level offered by a creator.
type Tier struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CreatorID   uuid.UUID `json:"creator_id" db:"creator_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	PriceCents  int64     `json:"price_cents" db:"price_cents"`
	Currency    string    `json:"currency" db:"currency"`
	Benefits    []string  `json:"benefits" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Membership links a supporter to one tier of a creator. Tier name and price are
// copied at join time.
type Membership struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	TierID      uuid.UUID  `json:"tier_id" db:"tier_id"`
	CreatorID   uuid.UUID  `json:"creator_id" db:"creator_id"`
	SupporterID uuid.UUID  `json:"supporter_id" db:"supporter_id"`
	TierName    string     `json:"tier_name" db:"tier_name"`
	PriceCents  int64      `json:"price_cents" db:"price_cents"`
	Currency    string     `json:"currency" db:"currency"`
	Status      string     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CancelledAt *time.Time `json:"cancelled_at" db:"cancelled_at"`
}

type CreateTierRequest struct {
	Name        string   `json:"name" validate:"required,max=80"`
	Description string   `json:"description" validate:"max=2000"`
	PriceCents  int64    `json:"price_cents" validate:"gte=0"`
	Currency    string   `json:"currency" validate:"required,len=3,alpha"`
	Benefits    []string `json:"benefits" validate:"max=20,dive,max=200"`
}
