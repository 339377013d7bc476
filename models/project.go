package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProjectDraft     = "draft"
	ProjectPublished = "published"
)

type Project struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	CreatorID     uuid.UUID  `json:"creator_id" db:"creator_id"`
	Title         string     `json:"title" db:"title"`
	Summary       string     `json:"summary" db:"summary"`
	Body          string     `json:"body" db:"body"`
	Status        string     `json:"status" db:"status"`
	CoverURL      *string    `json:"cover_url" db:"cover_url"`
	CoverBlurhash *string    `json:"cover_blurhash" db:"cover_blurhash"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	PublishedAt   *time.Time `json:"published_at" db:"published_at"`
}

func (p *Project) IsPublished() bool { return p.Status == ProjectPublished }

type CreateProjectRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=140"`
	Summary string `json:"summary" validate:"max=280"`
	Body    string `json:"body" validate:"max=20000"`
	Status  string `json:"status" validate:"omitempty,oneof=draft published"`
}

type UpdateProjectRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=140"`
	Summary *string `json:"summary" validate:"omitempty,max=280"`
	Body    *string `json:"body" validate:"omitempty,max=20000"`
	Status  *string `json:"status" validate:"omitempty,oneof=draft published"`
}

// SetStatus updates Status, stamping PublishedAt the first time a project is published.
func (p *Project) SetStatus(status string, now time.Time) {
	p.Status = status
	if status == ProjectPublished && p.PublishedAt == nil {
		t := now
		p.PublishedAt = &t
	}
}
