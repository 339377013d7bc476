package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/patronhub/db"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type productDoc struct {
	ID          string    `bson:"_id"`
	CreatorID   string    `bson:"creator_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	PriceCents  int64     `bson:"price_cents"`
	Currency    string    `bson:"currency"`
	Stock       int       `bson:"stock"`
	IsActive    bool      `bson:"is_active"`
	ImageURL    *string   `bson:"image_url"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d productDoc) toProduct() Product {
	return Product{
		ID:          parseID(d.ID),
		CreatorID:   parseID(d.CreatorID),
		Name:        d.Name,
		Description: d.Description,
		PriceCents:  d.PriceCents,
		Currency:    d.Currency,
		Stock:       d.Stock,
		IsActive:    d.IsActive,
		ImageURL:    d.ImageURL,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type orderDoc struct {
	ID             string    `bson:"_id"`
	ProductID      string    `bson:"product_id"`
	BuyerID        string    `bson:"buyer_id"`
	SellerID       string    `bson:"seller_id"`
	ProductName    string    `bson:"product_name"`
	Quantity       int       `bson:"quantity"`
	UnitPriceCents int64     `bson:"unit_price_cents"`
	TotalCents     int64     `bson:"total_cents"`
	Currency       string    `bson:"currency"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (d orderDoc) toOrder() Order {
	return Order{
		ID:             parseID(d.ID),
		ProductID:      parseID(d.ProductID),
		BuyerID:        parseID(d.BuyerID),
		SellerID:       parseID(d.SellerID),
		ProductName:    d.ProductName,
		Quantity:       d.Quantity,
		UnitPriceCents: d.UnitPriceCents,
		TotalCents:     d.TotalCents,
		Currency:       d.Currency,
		CreatedAt:      d.CreatedAt,
	}
}

type MongoShopRepository struct {
	products *mongo.Collection
	orders   *mongo.Collection
}

func NewMongoShopRepository(database *mongo.Database) *MongoShopRepository {
	return &MongoShopRepository{
		products: database.Collection(db.ProductsCollection),
		orders:   database.Collection(db.OrdersCollection),
	}
}

func (r *MongoShopRepository) CreateProduct(ctx context.Context, p *Product) error {
	now := time.Now().UTC()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.products.InsertOne(ctx, productDoc{
		ID:          idString(p.ID),
		CreatorID:   idString(p.CreatorID),
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Currency:    p.Currency,
		Stock:       p.Stock,
		IsActive:    p.IsActive,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	})
	return mapMongoError(err)
}

func (r *MongoShopRepository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var doc productDoc
	if err := r.products.FindOne(ctx, bson.D{{Key: "_id", Value: idString(id)}}).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	p := doc.toProduct()
	return &p, nil
}

func (r *MongoShopRepository) ListProductsByCreator(ctx context.Context, creatorID uuid.UUID, activeOnly bool) ([]Product, error) {
	filter := bson.D{{Key: "creator_id", Value: idString(creatorID)}}
	if activeOnly {
		filter = append(filter, bson.E{Key: "is_active", Value: true})
	}
	cur, err := r.products.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, d.toProduct())
	}
	return products, nil
}

func (r *MongoShopRepository) UpdateProduct(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()
	return matchedOrNotFound(r.products.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: idString(p.ID)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "name", Value: p.Name},
			{Key: "description", Value: p.Description},
			{Key: "price_cents", Value: p.PriceCents},
			{Key: "stock", Value: p.Stock},
			{Key: "is_active", Value: p.IsActive},
			{Key: "image_url", Value: p.ImageURL},
			{Key: "updated_at", Value: p.UpdatedAt},
		}}}))
}

func (r *MongoShopRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return deletedOrNotFound(r.products.DeleteOne(ctx, bson.D{{Key: "_id", Value: idString(id)}}))
}

// Purchase decrements stock with a guarded FindOneAndUpdate, then inserts the order
// priced from the document it decremented. If the insert fails the stock is put back.
func (r *MongoShopRepository) Purchase(ctx context.Context, order *Order) error {
	productKey := idString(order.ProductID)
	filter := bson.D{
		{Key: "_id", Value: productKey},
		{Key: "is_active", Value: true},
		{Key: "stock", Value: bson.D{{Key: "$gte", Value: order.Quantity}}},
	}
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "stock", Value: -order.Quantity}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}
	var doc productDoc
	err := r.products.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		product, getErr := r.GetProduct(ctx, order.ProductID)
		if getErr != nil {
			return getErr
		}
		if !product.IsActive {
			return ErrNotFound
		}
		return ErrOutOfStock
	}
	if err != nil {
		return err
	}
	order.snapshot(parseID(doc.CreatorID), doc.Name, doc.PriceCents, doc.Currency)

	_, err = r.orders.InsertOne(ctx, orderDoc{
		ID:             idString(order.ID),
		ProductID:      productKey,
		BuyerID:        idString(order.BuyerID),
		SellerID:       idString(order.SellerID),
		ProductName:    order.ProductName,
		Quantity:       order.Quantity,
		UnitPriceCents: order.UnitPriceCents,
		TotalCents:     order.TotalCents,
		Currency:       order.Currency,
		CreatedAt:      order.CreatedAt,
	})
	if err != nil {
		_, _ = r.products.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: productKey}},
			bson.D{{Key: "$inc", Value: bson.D{{Key: "stock", Value: order.Quantity}}}})
		return err
	}
	return nil
}

func (r *MongoShopRepository) listOrders(ctx context.Context, field string, id uuid.UUID) ([]Order, error) {
	cur, err := r.orders.Find(ctx,
		bson.D{{Key: field, Value: idString(id)}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	orders := make([]Order, 0, len(docs))
	for _, d := range docs {
		orders = append(orders, d.toOrder())
	}
	return orders, nil
}

func (r *MongoShopRepository) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]Order, error) {
	return r.listOrders(ctx, "buyer_id", buyerID)
}

func (r *MongoShopRepository) ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]Order, error) {
	return r.listOrders(ctx, "seller_id", sellerID)
}
