package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CreatorID   uuid.UUID `json:"creator_id" db:"creator_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	PriceCents  int64     `json:"price_cents" db:"price_cents"`
	Currency    string    `json:"currency" db:"currency"`
	Stock       int       `json:"stock" db:"stock"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	ImageURL    *string   `json:"image_url" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Order struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ProductID      uuid.UUID `json:"product_id" db:"product_id"`
	BuyerID        uuid.UUID `json:"buyer_id" db:"buyer_id"`
	SellerID       uuid.UUID `json:"seller_id" db:"seller_id"`
	ProductName    string    `json:"product_name" db:"product_name"`
	Quantity       int       `json:"quantity" db:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents" db:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents" db:"total_cents"`
	Currency       string    `json:"currency" db:"currency"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type CreateProductRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=5000"`
	PriceCents  int64  `json:"price_cents" validate:"gte=0"`
	Currency    string `json:"currency" validate:"required,len=3,alpha"`
	Stock       int    `json:"stock" validate:"gte=0"`
	IsActive    *bool  `json:"is_active"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=120"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	PriceCents  *int64  `json:"price_cents" validate:"omitempty,gte=0"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"is_active"`
}

type PurchaseRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=100"`
}

// NewOrder prices quantity units of p for buyer.
func NewOrder(p *Product, buyerID uuid.UUID, quantity int) *Order {
	o := &Order{
		ID:        uuid.New(),
		ProductID: p.ID,
		BuyerID:   buyerID,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
	o.snapshot(p.CreatorID, p.Name, p.PriceCents, p.Currency)
	return o
}

// snapshot copies the product fields an order keeps. Purchase calls it again with
// the row it just decremented, so the order never carries a stale price.
func (o *Order) snapshot(sellerID uuid.UUID, name string, priceCents int64, currency string) {
	o.SellerID = sellerID
	o.ProductName = name
	o.UnitPriceCents = priceCents
	o.TotalCents = priceCents * int64(o.Quantity)
	o.Currency = currency
}
