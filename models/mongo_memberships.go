package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/patronhub/db"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type tierDoc struct {
	ID          string    `bson:"_id"`
	CreatorID   string    `bson:"creator_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	PriceCents  int64     `bson:"price_cents"`
	Currency    string    `bson:"currency"`
	Benefits    []string  `bson:"benefits"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d tierDoc) toTier() Tier {
	benefits := d.Benefits
	if benefits == nil {
		benefits = []string{}
	}
	return Tier{
		ID:          parseID(d.ID),
		CreatorID:   parseID(d.CreatorID),
		Name:        d.Name,
		Description: d.Description,
		PriceCents:  d.PriceCents,
		Currency:    d.Currency,
		Benefits:    benefits,
		CreatedAt:   d.CreatedAt,
	}
}

type membershipDoc struct {
	ID          string     `bson:"_id"`
	TierID      string     `bson:"tier_id"`
	CreatorID   string     `bson:"creator_id"`
	SupporterID string     `bson:"supporter_id"`
	TierName    string     `bson:"tier_name"`
	PriceCents  int64      `bson:"price_cents"`
	Currency    string     `bson:"currency"`
	Status      string     `bson:"status"`
	CreatedAt   time.Time  `bson:"created_at"`
	CancelledAt *time.Time `bson:"cancelled_at"`
}

func (d membershipDoc) toMembership() Membership {
	return Membership{
		ID:          parseID(d.ID),
		TierID:      parseID(d.TierID),
		CreatorID:   parseID(d.CreatorID),
		SupporterID: parseID(d.SupporterID),
		TierName:    d.TierName,
		PriceCents:  d.PriceCents,
		Currency:    d.Currency,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt,
		CancelledAt: d.CancelledAt,
	}
}

type MongoMembershipRepository struct {
	tiers       *mongo.Collection
	memberships *mongo.Collection
	insert      func(ctx context.Context, doc membershipDoc) error
}

func NewMongoMembershipRepository(database *mongo.Database) *MongoMembershipRepository {
	r := &MongoMembershipRepository{
		tiers:       database.Collection(db.TiersCollection),
		memberships: database.Collection(db.MembershipsCollection),
	}
	r.insert = func(ctx context.Context, doc membershipDoc) error {
		_, err := r.memberships.InsertOne(ctx, doc)
		return err
	}
	return r
}

func (r *MongoMembershipRepository) CreateTier(ctx context.Context, t *Tier) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()
	if t.Benefits == nil {
		t.Benefits = []string{}
	}
	_, err := r.tiers.InsertOne(ctx, tierDoc{
		ID:          idString(t.ID),
		CreatorID:   idString(t.CreatorID),
		Name:        t.Name,
		Description: t.Description,
		PriceCents:  t.PriceCents,
		Currency:    t.Currency,
		Benefits:    t.Benefits,
		CreatedAt:   t.CreatedAt,
	})
	return mapMongoError(err)
}

func (r *MongoMembershipRepository) GetTier(ctx context.Context, id uuid.UUID) (*Tier, error) {
	var doc tierDoc
	if err := r.tiers.FindOne(ctx, bson.D{{Key: "_id", Value: idString(id)}}).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	t := doc.toTier()
	return &t, nil
}

func (r *MongoMembershipRepository) ListTiersByCreator(ctx context.Context, creatorID uuid.UUID) ([]Tier, error) {
	cur, err := r.tiers.Find(ctx,
		bson.D{{Key: "creator_id", Value: idString(creatorID)}},
		options.Find().SetSort(bson.D{{Key: "price_cents", Value: 1}, {Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []tierDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	tiers := make([]Tier, 0, len(docs))
	for _, d := range docs {
		tiers = append(tiers, d.toTier())
	}
	return tiers, nil
}

// DeleteTier also removes the tier's memberships, matching the Postgres cascade.
func (r *MongoMembershipRepository) DeleteTier(ctx context.Context, id uuid.UUID) error {
	key := idString(id)
	if err := deletedOrNotFound(r.tiers.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})); err != nil {
		return err
	}
	_, err := r.memberships.DeleteMany(ctx, bson.D{{Key: "tier_id", Value: key}})
	return err
}

// Join runs without a transaction. The previous membership is cancelled first so the
// partial unique index accepts the new one, and reactivated if the insert fails. A
// concurrent join that won keeps the index occupied, so the reactivation fails then
// and the caller sees ErrAlreadyMember.
func (r *MongoMembershipRepository) Join(ctx context.Context, m *Membership) error {
	var current membershipDoc
	err := r.memberships.FindOne(ctx, bson.D{
		{Key: "supporter_id", Value: idString(m.SupporterID)},
		{Key: "creator_id", Value: idString(m.CreatorID)},
		{Key: "status", Value: MembershipActive},
	}).Decode(&current)
	replacing := false
	switch {
	case err == nil:
		if current.TierID == idString(m.TierID) {
			return ErrAlreadyMember
		}
		if err := r.setStatus(ctx, current.ID, MembershipActive, MembershipCancelled); err != nil {
			return mapMongoError(err)
		}
		replacing = true
	case errors.Is(err, mongo.ErrNoDocuments):
	default:
		return err
	}

	m.ID = uuid.New()
	m.Status = MembershipActive
	m.CreatedAt = time.Now().UTC()
	m.CancelledAt = nil
	err = r.insert(ctx, membershipDoc{
		ID:          idString(m.ID),
		TierID:      idString(m.TierID),
		CreatorID:   idString(m.CreatorID),
		SupporterID: idString(m.SupporterID),
		TierName:    m.TierName,
		PriceCents:  m.PriceCents,
		Currency:    m.Currency,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	})
	if err == nil {
		return nil
	}
	err = mapMongoError(err)
	if replacing {
		// Background context: the request context may be the reason the insert failed.
		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := r.setStatus(restoreCtx, current.ID, MembershipCancelled, MembershipActive); rerr != nil {
			if errors.Is(mapMongoError(rerr), ErrAlreadyMember) {
				return ErrAlreadyMember
			}
			return errors.Join(err, fmt.Errorf("reactivate membership %s: %w", current.ID, rerr))
		}
	}
	return err
}

// setStatus moves one membership between states. Reactivating clears cancelled_at.
func (r *MongoMembershipRepository) setStatus(ctx context.Context, id, from, to string) error {
	set := bson.D{{Key: "status", Value: to}}
	if to == MembershipCancelled {
		set = append(set, bson.E{Key: "cancelled_at", Value: time.Now().UTC()})
	} else {
		set = append(set, bson.E{Key: "cancelled_at", Value: nil})
	}
	return matchedOrNotFound(r.memberships.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "status", Value: from}},
		bson.D{{Key: "$set", Value: set}}))
}

func (r *MongoMembershipRepository) Cancel(ctx context.Context, supporterID, tierID uuid.UUID) error {
	return matchedOrNotFound(r.memberships.UpdateOne(ctx,
		bson.D{
			{Key: "supporter_id", Value: idString(supporterID)},
			{Key: "tier_id", Value: idString(tierID)},
			{Key: "status", Value: MembershipActive},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: MembershipCancelled},
			{Key: "cancelled_at", Value: time.Now().UTC()},
		}}}))
}

func (r *MongoMembershipRepository) list(ctx context.Context, field string, id uuid.UUID) ([]Membership, error) {
	cur, err := r.memberships.Find(ctx,
		bson.D{{Key: field, Value: idString(id)}, {Key: "status", Value: MembershipActive}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []membershipDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	memberships := make([]Membership, 0, len(docs))
	for _, d := range docs {
		memberships = append(memberships, d.toMembership())
	}
	return memberships, nil
}

func (r *MongoMembershipRepository) ListBySupporter(ctx context.Context, supporterID uuid.UUID) ([]Membership, error) {
	return r.list(ctx, "supporter_id", supporterID)
}

func (r *MongoMembershipRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Membership, error) {
	return r.list(ctx, "creator_id", creatorID)
}
