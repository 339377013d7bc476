package models

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ProjectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, p *Project) error {
	query := `
		INSERT INTO projects (creator_id, title, summary, body, status, cover_url, cover_blurhash, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return mapPQError(r.db.QueryRowxContext(ctx, query,
		p.CreatorID, p.Title, p.Summary, p.Body, p.Status, p.CoverURL, p.CoverBlurhash, p.PublishedAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt))
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	var p Project
	if err := r.db.GetContext(ctx, &p, `SELECT * FROM projects WHERE id = $1`, id); err != nil {
		return nil, mapPQError(err)
	}
	return &p, nil
}

func (r *ProjectRepository) ListPublishedByCreator(ctx context.Context, creatorID uuid.UUID, page, limit int) ([]Project, int, error) {
	offset := (page - 1) * limit

	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM projects WHERE creator_id = $1 AND status = $2`, creatorID, ProjectPublished)
	if err != nil {
		return nil, 0, err
	}

	projects := []Project{}
	query := `
		SELECT * FROM projects
		WHERE creator_id = $1 AND status = $2
		ORDER BY published_at DESC NULLS LAST, created_at DESC
		LIMIT $3 OFFSET $4`
	if err := r.db.SelectContext(ctx, &projects, query, creatorID, ProjectPublished, limit, offset); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (r *ProjectRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Project, error) {
	projects := []Project{}
	err := r.db.SelectContext(ctx, &projects,
		`SELECT * FROM projects WHERE creator_id = $1 ORDER BY created_at DESC`, creatorID)
	return projects, err
}

func (r *ProjectRepository) Update(ctx context.Context, p *Project) error {
	query := `
		UPDATE projects
		SET title = $2, summary = $3, body = $4, status = $5, cover_url = $6, cover_blurhash = $7,
			published_at = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return mapPQError(r.db.QueryRowxContext(ctx, query,
		p.ID, p.Title, p.Summary, p.Body, p.Status, p.CoverURL, p.CoverBlurhash, p.PublishedAt).
		Scan(&p.UpdatedAt))
}

func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return expectAffected(r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id))
}
