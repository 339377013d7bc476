package models

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ShopRepository struct {
	db *sqlx.DB
}

func NewShopRepository(db *sqlx.DB) *ShopRepository {
	return &ShopRepository{db: db}
}

func (r *ShopRepository) CreateProduct(ctx context.Context, p *Product) error {
	query := `
		INSERT INTO products (creator_id, name, description, price_cents, currency, stock, is_active, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return mapPQError(r.db.QueryRowxContext(ctx, query,
		p.CreatorID, p.Name, p.Description, p.PriceCents, p.Currency, p.Stock, p.IsActive, p.ImageURL).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt))
}

func (r *ShopRepository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	if err := r.db.GetContext(ctx, &p, `SELECT * FROM products WHERE id = $1`, id); err != nil {
		return nil, mapPQError(err)
	}
	return &p, nil
}

func (r *ShopRepository) ListProductsByCreator(ctx context.Context, creatorID uuid.UUID, activeOnly bool) ([]Product, error) {
	products := []Product{}
	err := r.db.SelectContext(ctx, &products, `
		SELECT * FROM products
		WHERE creator_id = $1 AND ($2 = FALSE OR is_active)
		ORDER BY created_at DESC`, creatorID, activeOnly)
	return products, err
}

func (r *ShopRepository) UpdateProduct(ctx context.Context, p *Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price_cents = $4, stock = $5, is_active = $6, image_url = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return mapPQError(r.db.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Description, p.PriceCents, p.Stock, p.IsActive, p.ImageURL).
		Scan(&p.UpdatedAt))
}

func (r *ShopRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return expectAffected(r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id))
}

func (r *ShopRepository) Purchase(ctx context.Context, order *Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var row struct {
		CreatorID  uuid.UUID `db:"creator_id"`
		Name       string    `db:"name"`
		PriceCents int64     `db:"price_cents"`
		Currency   string    `db:"currency"`
	}
	err = tx.GetContext(ctx, &row, `
		UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND is_active AND stock >= $2
		RETURNING creator_id, name, price_cents, currency`, order.ProductID, order.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		var active bool
		err := tx.GetContext(ctx, &active, `SELECT is_active FROM products WHERE id = $1`, order.ProductID)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrOutOfStock
	}
	if err != nil {
		return err
	}
	order.snapshot(row.CreatorID, row.Name, row.PriceCents, row.Currency)

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO orders (id, product_id, buyer_id, seller_id, product_name, quantity, unit_price_cents, total_cents, currency, created_at)
		VALUES (:id, :product_id, :buyer_id, :seller_id, :product_name, :quantity, :unit_price_cents, :total_cents, :currency, :created_at)`,
		order)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ShopRepository) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]Order, error) {
	orders := []Order{}
	err := r.db.SelectContext(ctx, &orders,
		`SELECT * FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
	return orders, err
}

func (r *ShopRepository) ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]Order, error) {
	orders := []Order{}
	err := r.db.SelectContext(ctx, &orders,
		`SELECT * FROM orders WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
	return orders, err
}
