package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/patronhub/db"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type projectDoc struct {
	ID            string     `bson:"_id"`
	CreatorID     string     `bson:"creator_id"`
	Title         string     `bson:"title"`
	Summary       string     `bson:"summary"`
	Body          string     `bson:"body"`
	Status        string     `bson:"status"`
	CoverURL      *string    `bson:"cover_url"`
	CoverBlurhash *string    `bson:"cover_blurhash"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
	PublishedAt   *time.Time `bson:"published_at"`
}

func newProjectDoc(p *Project) projectDoc {
	return projectDoc{
		ID:            idString(p.ID),
		CreatorID:     idString(p.CreatorID),
		Title:         p.Title,
		Summary:       p.Summary,
		Body:          p.Body,
		Status:        p.Status,
		CoverURL:      p.CoverURL,
		CoverBlurhash: p.CoverBlurhash,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		PublishedAt:   p.PublishedAt,
	}
}

func (d projectDoc) toProject() Project {
	return Project{
		ID:            parseID(d.ID),
		CreatorID:     parseID(d.CreatorID),
		Title:         d.Title,
		Summary:       d.Summary,
		Body:          d.Body,
		Status:        d.Status,
		CoverURL:      d.CoverURL,
		CoverBlurhash: d.CoverBlurhash,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		PublishedAt:   d.PublishedAt,
	}
}

type MongoProjectRepository struct {
	projects *mongo.Collection
}

func NewMongoProjectRepository(database *mongo.Database) *MongoProjectRepository {
	return &MongoProjectRepository{projects: database.Collection(db.ProjectsCollection)}
}

func (r *MongoProjectRepository) Create(ctx context.Context, p *Project) error {
	now := time.Now().UTC()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.projects.InsertOne(ctx, newProjectDoc(p))
	return mapMongoError(err)
}

func (r *MongoProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	var doc projectDoc
	if err := r.projects.FindOne(ctx, bson.D{{Key: "_id", Value: idString(id)}}).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	p := doc.toProject()
	return &p, nil
}

func (r *MongoProjectRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptionsBuilder) ([]Project, error) {
	cur, err := r.projects.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []projectDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(docs))
	for _, d := range docs {
		projects = append(projects, d.toProject())
	}
	return projects, nil
}

func (r *MongoProjectRepository) ListPublishedByCreator(ctx context.Context, creatorID uuid.UUID, page, limit int) ([]Project, int, error) {
	filter := bson.D{
		{Key: "creator_id", Value: idString(creatorID)},
		{Key: "status", Value: ProjectPublished},
	}
	total, err := r.projects.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	projects, err := r.find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "published_at", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(skipFor(page, limit)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	return projects, int(total), nil
}

func (r *MongoProjectRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Project, error) {
	return r.find(ctx,
		bson.D{{Key: "creator_id", Value: idString(creatorID)}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *MongoProjectRepository) Update(ctx context.Context, p *Project) error {
	p.UpdatedAt = time.Now().UTC()
	return matchedOrNotFound(r.projects.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: idString(p.ID)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "title", Value: p.Title},
			{Key: "summary", Value: p.Summary},
			{Key: "body", Value: p.Body},
			{Key: "status", Value: p.Status},
			{Key: "cover_url", Value: p.CoverURL},
			{Key: "cover_blurhash", Value: p.CoverBlurhash},
			{Key: "published_at", Value: p.PublishedAt},
			{Key: "updated_at", Value: p.UpdatedAt},
		}}}))
}

func (r *MongoProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deletedOrNotFound(r.projects.DeleteOne(ctx, bson.D{{Key: "_id", Value: idString(id)}}))
}
