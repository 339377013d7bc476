package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/patronhub/db"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	FirstName    string    `bson:"first_name"`
	LastName     string    `bson:"last_name"`
	DisplayName  string    `bson:"display_name"`
	Bio          *string   `bson:"bio"`
	AvatarURL    *string   `bson:"avatar_url"`
	IsAdmin      bool      `bson:"is_admin"`
	IsDisabled   bool      `bson:"is_disabled"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func newUserDoc(u *User) userDoc {
	return userDoc{
		ID:           idString(u.ID),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		DisplayName:  u.DisplayName,
		Bio:          u.Bio,
		AvatarURL:    u.AvatarURL,
		IsAdmin:      u.IsAdmin,
		IsDisabled:   u.IsDisabled,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) toUser() User {
	return User{
		ID:           parseID(d.ID),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		DisplayName:  d.DisplayName,
		Bio:          d.Bio,
		AvatarURL:    d.AvatarURL,
		IsAdmin:      d.IsAdmin,
		IsDisabled:   d.IsDisabled,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type MongoUserRepository struct {
	database *mongo.Database
	users    *mongo.Collection
}

func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{database: database, users: database.Collection(db.UsersCollection)}
}

func (r *MongoUserRepository) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	user.ID = uuid.New()
	user.Username = strings.ToLower(user.Username)
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt, user.UpdatedAt = now, now
	_, err := r.users.InsertOne(ctx, newUserDoc(user))
	return mapMongoError(err)
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.D) (*User, error) {
	var doc userDoc
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	u := doc.toUser()
	return &u, nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: idString(id)}})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: strings.ToLower(email)}})
}

func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: strings.ToLower(username)}})
}

func (r *MongoUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	n, err := r.users.CountDocuments(ctx,
		bson.D{{Key: "username", Value: strings.ToLower(username)}},
		options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MongoUserRepository) UpdateProfile(ctx context.Context, user *User) error {
	user.Username = strings.ToLower(user.Username)
	user.UpdatedAt = time.Now().UTC()
	return matchedOrNotFound(r.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: idString(user.ID)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "username", Value: user.Username},
			{Key: "first_name", Value: user.FirstName},
			{Key: "last_name", Value: user.LastName},
			{Key: "display_name", Value: user.DisplayName},
			{Key: "bio", Value: user.Bio},
			{Key: "avatar_url", Value: user.AvatarURL},
			{Key: "updated_at", Value: user.UpdatedAt},
		}}}))
}

func (r *MongoUserRepository) set(ctx context.Context, id uuid.UUID, fields bson.D) error {
	fields = append(fields, bson.E{Key: "updated_at", Value: time.Now().UTC()})
	return matchedOrNotFound(r.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: idString(id)}},
		bson.D{{Key: "$set", Value: fields}}))
}

func (r *MongoUserRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	return r.set(ctx, id, bson.D{{Key: "email", Value: strings.ToLower(email)}})
}

func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.set(ctx, id, bson.D{{Key: "password_hash", Value: passwordHash}})
}

func (r *MongoUserRepository) UpdateFlags(ctx context.Context, id uuid.UUID, isAdmin, isDisabled bool) error {
	return r.set(ctx, id, bson.D{
		{Key: "is_admin", Value: isAdmin},
		{Key: "is_disabled", Value: isDisabled},
	})
}

func (r *MongoUserRepository) List(ctx context.Context, page, limit int) ([]User, int, error) {
	total, err := r.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.users.Find(ctx, bson.D{}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skipFor(page, limit)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	users := make([]User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toUser())
	}
	return users, int(total), nil
}

// Delete removes the account and the content it owns. Orders are kept as records
// of past sales.
func (r *MongoUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	key := idString(id)
	if err := deletedOrNotFound(r.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})); err != nil {
		return err
	}
	owned := map[string]bson.D{
		db.ProjectsCollection: {{Key: "creator_id", Value: key}},
		db.TiersCollection:    {{Key: "creator_id", Value: key}},
		db.ProductsCollection: {{Key: "creator_id", Value: key}},
		db.MembershipsCollection: {{Key: "$or", Value: bson.A{
			bson.D{{Key: "creator_id", Value: key}},
			bson.D{{Key: "supporter_id", Value: key}},
		}}},
	}
	for coll, filter := range owned {
		if _, err := r.database.Collection(coll).DeleteMany(ctx, filter); err != nil {
			return err
		}
	}
	return nil
}
