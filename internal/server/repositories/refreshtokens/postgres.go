// Package refreshtokens provides a PostgreSQL-backed repository for managing
// refresh tokens used in the server's authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/common"
	"github.com/dmitrijs2005/campusgate/internal/dbx"
	"github.com/dmitrijs2005/campusgate/internal/server/models"
)

const (
	upsertQuery = `INSERT INTO refresh_tokens (user_id, token, expires_at, user_agent, ip_address, device_class)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token,
			expires_at = EXCLUDED.expires_at,
			user_agent = EXCLUDED.user_agent,
			ip_address = EXCLUDED.ip_address,
			device_class = EXCLUDED.device_class,
			updated_at = NOW()`

	findByUserQuery = `SELECT id, user_id, token, expires_at, user_agent, ip_address, device_class, created_at, updated_at
		FROM refresh_tokens
		WHERE user_id = $1`

	rotateQuery = `UPDATE refresh_tokens
		SET token = $3, expires_at = $4, user_agent = $5, ip_address = $6, device_class = $7, updated_at = NOW()
		WHERE user_id = $1 AND token = $2`

	deleteByUserQuery = `DELETE FROM refresh_tokens WHERE user_id = $1`

	deleteExpiredQuery = `DELETE FROM refresh_tokens WHERE expires_at < $1`
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, t *models.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, upsertQuery,
		t.UserID, t.Token, t.Expires, nullable(t.UserAgent), nullable(t.IPAddress), nullable(t.DeviceClass))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByUser(ctx context.Context, userID int64) (*models.RefreshToken, error) {
	var (
		t                         models.RefreshToken
		userAgent, ip, deviceType sql.NullString
	)
	err := r.db.QueryRowContext(ctx, findByUserQuery, userID).Scan(
		&t.ID, &t.UserID, &t.Token, &t.Expires, &userAgent, &ip, &deviceType, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.UserAgent, t.IPAddress, t.DeviceClass = userAgent.String, ip.String, deviceType.String
	return &t, nil
}

func (r *PostgresRepository) Rotate(ctx context.Context, userID int64, oldToken string, next *models.RefreshToken) (bool, error) {
	res, err := r.db.ExecContext(ctx, rotateQuery,
		userID, oldToken, next.Token, next.Expires,
		nullable(next.UserAgent), nullable(next.IPAddress), nullable(next.DeviceClass))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	return r.exec(ctx, deleteByUserQuery, userID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, deleteExpiredQuery, now)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
