package models

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type MembershipRepository struct {
	db *sqlx.DB
}

func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// tierRow carries the TEXT[] column that Tier itself does not map.
type tierRow struct {
	Tier
	Benefits pq.StringArray `db:"benefits"`
}

func (t tierRow) toTier() Tier {
	tier := t.Tier
	tier.Benefits = []string(t.Benefits)
	if tier.Benefits == nil {
		tier.Benefits = []string{}
	}
	return tier
}

func (r *MembershipRepository) CreateTier(ctx context.Context, t *Tier) error {
	query := `
		INSERT INTO tiers (creator_id, name, description, price_cents, currency, benefits)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return mapPQError(r.db.QueryRowxContext(ctx, query,
		t.CreatorID, t.Name, t.Description, t.PriceCents, t.Currency, pq.StringArray(t.Benefits)).
		Scan(&t.ID, &t.CreatedAt))
}

func (r *MembershipRepository) GetTier(ctx context.Context, id uuid.UUID) (*Tier, error) {
	var row tierRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM tiers WHERE id = $1`, id); err != nil {
		return nil, mapPQError(err)
	}
	tier := row.toTier()
	return &tier, nil
}

func (r *MembershipRepository) ListTiersByCreator(ctx context.Context, creatorID uuid.UUID) ([]Tier, error) {
	var rows []tierRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM tiers WHERE creator_id = $1 ORDER BY price_cents ASC, created_at ASC`, creatorID)
	if err != nil {
		return nil, err
	}
	tiers := make([]Tier, 0, len(rows))
	for _, row := range rows {
		tiers = append(tiers, row.toTier())
	}
	return tiers, nil
}

func (r *MembershipRepository) DeleteTier(ctx context.Context, id uuid.UUID) error {
	return expectAffected(r.db.ExecContext(ctx, `DELETE FROM tiers WHERE id = $1`, id))
}

func (r *MembershipRepository) Join(ctx context.Context, m *Membership) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current Membership
	err = tx.GetContext(ctx, &current, `
		SELECT * FROM memberships
		WHERE supporter_id = $1 AND creator_id = $2 AND status = $3
		FOR UPDATE`, m.SupporterID, m.CreatorID, MembershipActive)
	switch {
	case err == nil:
		if current.TierID == m.TierID {
			return ErrAlreadyMember
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE memberships SET status = $2, cancelled_at = NOW() WHERE id = $1`, current.ID, MembershipCancelled)
		if err != nil {
			return err
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return err
	}

	m.Status = MembershipActive
	query := `
		INSERT INTO memberships (tier_id, creator_id, supporter_id, tier_name, price_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err = tx.QueryRowxContext(ctx, query,
		m.TierID, m.CreatorID, m.SupporterID, m.TierName, m.PriceCents, m.Currency, m.Status).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return mapPQError(err)
	}
	return tx.Commit()
}

func (r *MembershipRepository) Cancel(ctx context.Context, supporterID, tierID uuid.UUID) error {
	return expectAffected(r.db.ExecContext(ctx, `
		UPDATE memberships SET status = $3, cancelled_at = NOW()
		WHERE supporter_id = $1 AND tier_id = $2 AND status = $4`,
		supporterID, tierID, MembershipCancelled, MembershipActive))
}

func (r *MembershipRepository) ListBySupporter(ctx context.Context, supporterID uuid.UUID) ([]Membership, error) {
	memberships := []Membership{}
	err := r.db.SelectContext(ctx, &memberships, `
		SELECT * FROM memberships WHERE supporter_id = $1 AND status = $2 ORDER BY created_at DESC`,
		supporterID, MembershipActive)
	return memberships, err
}

func (r *MembershipRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Membership, error) {
	memberships := []Membership{}
	err := r.db.SelectContext(ctx, &memberships, `
		SELECT * FROM memberships WHERE creator_id = $1 AND status = $2 ORDER BY created_at DESC`,
		creatorID, MembershipActive)
	return memberships, err
}
