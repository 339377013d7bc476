package models

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/yourusername/patronhub/db"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// mapMongoError translates driver errors into the package's sentinel errors. Duplicate
// keys are told apart by the index name in the server message.
func mapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, db.UsernameIndex):
			return ErrDuplicateUsername
		case strings.Contains(msg, db.EmailIndex):
			return ErrDuplicateEmail
		case strings.Contains(msg, db.ActiveMembershipIndex):
			return ErrAlreadyMember
		}
	}
	return err
}

// Documents key on the canonical UUID string.
func idString(id uuid.UUID) string { return id.String() }

func parseID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func skipFor(page, limit int) int64 {
	if page < 1 {
		page = 1
	}
	return int64((page - 1) * limit)
}

// NewMongoRepositories wires every MongoDB repository over one database.
func NewMongoRepositories(database *mongo.Database) *Repositories {
	return &Repositories{
		Backend:     "mongo",
		Users:       NewMongoUserRepository(database),
		Projects:    NewMongoProjectRepository(database),
		Memberships: NewMongoMembershipRepository(database),
		Shop:        NewMongoShopRepository(database),
		Ping:        db.MongoHealthcheck(database),
		Dump:        db.MongoDumper(database),
	}
}

func matchedOrNotFound(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deletedOrNotFound(res *mongo.DeleteResult, err error) error {
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
