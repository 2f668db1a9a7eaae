package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/query"
	"github.com/utafrali/natours/pkg/database"
	apperrors "github.com/utafrali/natours/pkg/errors"
)

// UserSchema lists the public user fields. Credential columns are absent, so
// no query parameter can filter, sort or project them.
var UserSchema = query.NewSchema("id", "-createdAt",
	query.Field{Name: "id", Column: "id", Kind: query.String},
	query.Field{Name: "name", Column: "name", Kind: query.String},
	query.Field{Name: "email", Column: "email", Kind: query.String},
	query.Field{Name: "photo", Column: "photo", Kind: query.String},
	query.Field{Name: "role", Column: "role", Kind: query.String},
	query.Field{Name: "createdAt", Column: "created_at", Kind: query.Time},
	query.Field{Name: "version", Column: "version", Kind: query.Integer, Internal: true},
)

const userColumns = `id, name, email, photo, role, password_hash, password_changed_at,
	password_reset_token, password_reset_expires, active, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	pool database.DBTX
	opts Options
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool database.DBTX, opts Options) *UserRepository {
	return &UserRepository{pool: pool, opts: opts}
}

// List returns one page of active users.
func (r *UserRepository) List(ctx context.Context, params query.Params) (*query.Result, error) {
	base := dialect.From("users").Where(goqu.C("active").IsTrue())
	b := query.New(base, UserSchema, params, query.WithMaxLimit(r.opts.MaxLimit))
	return runQuery(ctx, r.pool, "ListUsers", b)
}

// GetByID retrieves an active user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND active`, id)
}

// GetByEmail retrieves an active user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND active`, email)
}

// GetByResetToken finds the active user whose reset token matches and has
// not expired at now.
func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users
		WHERE password_reset_token = $1 AND password_reset_expires > $2 AND active`

	u, err := scanUser(r.pool.QueryRow(ctx, q, tokenHash, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.InvalidInput("token is invalid or has expired")
		}
		return nil, fmt.Errorf("get user by reset token: %w", err)
	}
	return u, nil
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	q := `
		INSERT INTO users (id, name, email, photo, role, password_hash, password_changed_at, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, q,
		u.ID,
		u.Name,
		u.Email,
		u.Photo,
		u.Role,
		u.PasswordHash,
		u.PasswordChangedAt,
		u.Active,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of patch to an active user.
func (r *UserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	q := `
		UPDATE users
		SET name = COALESCE($2, name), email = COALESCE($3, email),
		    role = COALESCE($4, role), photo = COALESCE($5, photo),
		    updated_at = $6, version = version + 1
		WHERE id = $1 AND active
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, q, id, patch.Name, patch.Email, patch.Role, patch.Photo, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", id)
		}
		if isUniqueViolation(err) && patch.Email != nil {
			return nil, apperrors.AlreadyExists("user", "email", *patch.Email)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// UpdatePassword stores a new password hash and clears any reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	q := `
		UPDATE users
		SET password_hash = $2, password_changed_at = $3,
		    password_reset_token = NULL, password_reset_expires = NULL,
		    updated_at = $3, version = version + 1
		WHERE id = $1`

	ct, err := r.pool.Exec(ctx, q, id, hash, changedAt)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// SetResetToken stores a reset token hash and expiry. Nil values clear them.
func (r *UserRepository) SetResetToken(ctx context.Context, id string, tokenHash *string, expires *time.Time) error {
	q := `UPDATE users SET password_reset_token = $2, password_reset_expires = $3 WHERE id = $1`

	ct, err := r.pool.Exec(ctx, q, id, tokenHash, expires)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// Deactivate marks a user inactive. Inactive users can no longer log in.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// Delete removes a user from the database by its ID.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, q, key string) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, q, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", key)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Photo,
		&u.Role,
		&u.PasswordHash,
		&u.PasswordChangedAt,
		&u.PasswordResetToken,
		&u.PasswordResetExpires,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
