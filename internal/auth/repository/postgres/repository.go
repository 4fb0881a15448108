package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gueripep/brainflash-server/internal/auth/domain"
	autherror "github.com/gueripep/brainflash-server/internal/errors"
)

// uniqueViolation is the SQLSTATE Postgres raises when an insert or update
// hits a unique index. Duplicate-email races are resolved here, by the
// users_email_lower_idx index, not by check-then-insert in the service.
const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name,
		is_active, is_superuser, is_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsActive, &u.IsSuperuser, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name,
			is_active, is_superuser, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.IsActive, user.IsSuperuser, user.IsVerified, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return autherror.ErrEmailAlreadyInUse
		}
		return fmt.Errorf("%w: create user: %v", autherror.ErrStorageUnavailable, err)
	}

	return nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1)
		LIMIT 1;
	`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get user by email: %v", autherror.ErrStorageUnavailable, err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
		LIMIT 1;
	`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get user by id: %v", autherror.ErrStorageUnavailable, err)
	}

	return user, nil
}

// Update applies the non-nil fields of patch and returns the updated row.
// updated_at always advances.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Email != nil {
		addSet("email", *patch.Email)
	}
	if patch.PasswordHash != nil {
		addSet("password_hash", *patch.PasswordHash)
	}
	if patch.FirstName != nil {
		addSet("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		addSet("last_name", *patch.LastName)
	}
	if patch.IsActive != nil {
		addSet("is_active", *patch.IsActive)
	}
	if patch.IsSuperuser != nil {
		addSet("is_superuser", *patch.IsSuperuser)
	}
	if patch.IsVerified != nil {
		addSet("is_verified", *patch.IsVerified)
	}

	query := `
		UPDATE users SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, autherror.ErrUserNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, autherror.ErrEmailAlreadyInUse
		}
		return nil, fmt.Errorf("%w: update user: %v", autherror.ErrStorageUnavailable, err)
	}

	return user, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete user: %v", autherror.ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return autherror.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepository) StoreRefreshToken(ctx context.Context, rt *domain.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query,
		rt.ID, rt.UserID, rt.TokenHash, rt.ExpiresAt, rt.CreatedAt, rt.Revoked)
	if err != nil {
		return fmt.Errorf("%w: store refresh token: %v", autherror.ErrStorageUnavailable, err)
	}

	return nil
}

func (r *PostgresRepository) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked
		FROM refresh_tokens
		WHERE token_hash = $1
		LIMIT 1;
	`
	row := r.db.QueryRow(ctx, query, tokenHash)

	var rt domain.RefreshToken
	err := row.Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.CreatedAt, &rt.Revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get refresh token: %v", autherror.ErrStorageUnavailable, err)
	}

	return &rt, nil
}

func (r *PostgresRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: revoke refresh token: %v", autherror.ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return autherror.ErrRefreshTokenNotFound
	}

	return nil
}

func (r *PostgresRepository) GetActiveCountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM refresh_tokens
		WHERE user_id = $1 AND revoked = false AND expires_at > now()
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count refresh tokens: %v", autherror.ErrStorageUnavailable, err)
	}

	return count, nil
}

// DeleteOldestByUserID drops the user's oldest refresh token, revoked or not.
func (r *PostgresRepository) DeleteOldestByUserID(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE id = (
			SELECT id FROM refresh_tokens
			WHERE user_id = $1
			ORDER BY created_at ASC
			LIMIT 1
		)
	`, userID)
	if err != nil {
		return fmt.Errorf("%w: delete oldest refresh token: %v", autherror.ErrStorageUnavailable, err)
	}

	return nil
}
