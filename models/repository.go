package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/yourusername/patronhub/db"
)

// Postgres unique index names, mapped to sentinel errors on conflict.
const (
	pgUsernameKey         = "users_username_key"
	pgEmailKey            = "users_email_key"
	pgActiveMembershipKey = "memberships_active_key"
)

// mapPQError translates driver errors into the package's sentinel errors.
func mapPQError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case pgUsernameKey:
			return ErrDuplicateUsername
		case pgEmailKey:
			return ErrDuplicateEmail
		case pgActiveMembershipKey:
			return ErrAlreadyMember
		}
	}
	return err
}

func expectAffected(res sql.Result, err error) error {
	if err != nil {
		return mapPQError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *User) error {
	user.Username = strings.ToLower(user.Username)
	user.Email = strings.ToLower(user.Email)
	query := `
		INSERT INTO users (username, email, password_hash, first_name, last_name, display_name, bio, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.DisplayName, user.Bio, user.AvatarURL).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return mapPQError(err)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*User, error) {
	var user User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		return nil, mapPQError(err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE LOWER(username) = LOWER($1)`, username)
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`, username)
	return exists, err
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *User) error {
	user.Username = strings.ToLower(user.Username)
	query := `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, display_name = $5, bio = $6, avatar_url = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		user.ID, user.Username, user.FirstName, user.LastName, user.DisplayName, user.Bio, user.AvatarURL).
		Scan(&user.UpdatedAt)
	return mapPQError(err)
}

func (r *UserRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	return expectAffected(r.db.ExecContext(ctx,
		`UPDATE users SET email = $2, updated_at = NOW() WHERE id = $1`, id, strings.ToLower(email)))
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return expectAffected(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash))
}

func (r *UserRepository) UpdateFlags(ctx context.Context, id uuid.UUID, isAdmin, isDisabled bool) error {
	return expectAffected(r.db.ExecContext(ctx,
		`UPDATE users SET is_admin = $2, is_disabled = $3, updated_at = NOW() WHERE id = $1`, id, isAdmin, isDisabled))
}

func (r *UserRepository) List(ctx context.Context, page, limit int) ([]User, int, error) {
	offset := (page - 1) * limit

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, err
	}
	users := []User{}
	err := r.db.SelectContext(ctx, &users,
		`SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return expectAffected(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id))
}

// NewPostgresRepositories wires every Postgres repository over one pool.
func NewPostgresRepositories(conn *sqlx.DB) *Repositories {
	return &Repositories{
		Backend:     "postgres",
		Users:       NewUserRepository(conn),
		Projects:    NewProjectRepository(conn),
		Memberships: NewMembershipRepository(conn),
		Shop:        NewShopRepository(conn),
		Ping:        conn.PingContext,
		Dump:        db.PostgresDumper(conn),
	}
}
