package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"social-auth/internal/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const userColumns = `id, email, email_verified, name, picture, oauth_type, provider_user_id,
	coin, highest_coin, last_ip, country, ads_id, is_deleted, last_login_at, created_at, updated_at`

// PostgresRepository stores users in the users table.
type PostgresRepository struct {
	db  *db.DB
	now func() time.Time
}

func NewPostgresRepository(database *db.DB) *PostgresRepository {
	return &PostgresRepository{db: database, now: time.Now}
}

func (r *PostgresRepository) FindOne(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = $1 AND is_deleted = false
		LIMIT 1
	`
	return r.queryOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", id, err)
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND is_deleted = false
	`
	return r.queryOne(ctx, query, uid)
}

// FindByProvider returns the live account linked to (provider, subject).
func (r *PostgresRepository) FindByProvider(ctx context.Context, provider, subject string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = (
			SELECT user_id FROM identities
			WHERE provider = $1 AND provider_user_id = $2
		) AND is_deleted = false
	`
	return r.queryOne(ctx, query, provider, subject)
}

const linkIdentityQuery = `
	INSERT INTO identities (user_id, provider, provider_user_id)
	VALUES ($1, $2, $3)
	ON CONFLICT (provider, provider_user_id) DO NOTHING
`

// LinkIdentity links (provider, subject) to the account. It is a no-op when
// the pair is already linked.
func (r *PostgresRepository) LinkIdentity(ctx context.Context, userID uuid.UUID, provider, subject string) error {
	if provider == "" || subject == "" {
		return fmt.Errorf("link identity: empty provider or subject")
	}
	if _, err := r.db.ExecContext(ctx, linkIdentityQuery, userID, provider, subject); err != nil {
		return fmt.Errorf("failed to link identity: %w", err)
	}
	return nil
}

// Create inserts the account and, when it carries a provider subject, its
// first identity link in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, query,
		u.ID,
		u.Email,
		u.EmailVerified,
		u.Name,
		u.Picture,
		u.OAuthType,
		u.ProviderUserID,
		u.Coin,
		u.HighestCoin,
		u.LastIP,
		u.Country,
		u.AdsID,
		u.IsDeleted,
		nullTime(u.LastLoginAt),
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if u.OAuthType != "" && u.ProviderUserID != "" {
		if _, err := tx.ExecContext(ctx, linkIdentityQuery, u.ID, u.OAuthType, u.ProviderUserID); err != nil {
			return fmt.Errorf("failed to link identity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = r.now().UTC()

	query := `
		UPDATE users
		SET email_verified = $2, name = $3, picture = $4, oauth_type = $5,
			provider_user_id = $6, last_ip = $7, country = $8, ads_id = $9,
			last_login_at = $10, updated_at = $11
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query,
		u.ID,
		u.EmailVerified,
		u.Name,
		u.Picture,
		u.OAuthType,
		u.ProviderUserID,
		u.LastIP,
		u.Country,
		u.AdsID,
		nullTime(u.LastLoginAt),
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*User, error) {
	var (
		u         User
		lastLogin sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.EmailVerified,
		&u.Name,
		&u.Picture,
		&u.OAuthType,
		&u.ProviderUserID,
		&u.Coin,
		&u.HighestCoin,
		&u.LastIP,
		&u.Country,
		&u.AdsID,
		&u.IsDeleted,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if lastLogin.Valid {
		u.LastLoginAt = lastLogin.Time
	}
	return &u, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
