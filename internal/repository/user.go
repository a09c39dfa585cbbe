package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"phonecase-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, public_id, email, name, password, auth_provider, provider_user_id,
		       is_active, last_login, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user and fills its generated ID and timestamps.
// A taken email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (public_id, email, name, password, auth_provider, provider_user_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.PublicID, user.Email, user.Name, user.PasswordHash,
		user.AuthProvider, user.ProviderUserID, user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user with email %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

// GetByPublicID retrieves a user by public ID
func (r *UserRepository) GetByPublicID(ctx context.Context, publicID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE public_id = $1`
	return r.getOne(ctx, query, publicID)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.PublicID, &u.Email, &u.Name, &u.PasswordHash, &u.AuthProvider,
		&u.ProviderUserID, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// UpdatePassword replaces the password hash of a user
func (r *UserRepository) UpdatePassword(ctx context.Context, publicID, passwordHash string) error {
	query := `UPDATE users SET password = $1, updated_at = NOW() WHERE public_id = $2`
	result, err := r.db.Exec(ctx, query, passwordHash, publicID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	return nil
}

// UpdateLastLogin stamps the last successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE users SET last_login = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// LinkProvider records the external identity of an existing user
func (r *UserRepository) LinkProvider(ctx context.Context, id int64, subject string) error {
	query := `
		UPDATE users
		SET provider_user_id = $1, updated_at = NOW()
		WHERE id = $2
	`
	if _, err := r.db.Exec(ctx, query, subject, id); err != nil {
		return fmt.Errorf("failed to link provider: %w", err)
	}
	return nil
}
