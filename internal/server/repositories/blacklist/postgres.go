package blacklist

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
	insertQuery = `INSERT INTO token_blacklist (token_id, expires_at, token_type, user_agent, ip_address, device_class)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token_id) DO NOTHING`

	existsQuery = `SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE token_id = $1)`

	findQuery = `SELECT id, token_id, expires_at, token_type, user_agent, ip_address, device_class, created_at
		FROM token_blacklist
		WHERE token_id = $1`

	deleteExpiredQuery = `DELETE FROM token_blacklist WHERE expires_at < $1`
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, e *models.BlacklistEntry) (bool, error) {
	tokenType := e.TokenType
	if tokenType == "" {
		tokenType = models.BlacklistTokenTypeAccess
	}
	res, err := r.db.ExecContext(ctx, insertQuery,
		e.TokenID, e.ExpiresAt, string(tokenType),
		nullable(e.UserAgent), nullable(e.IPAddress), nullable(e.DeviceClass))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, existsQuery, tokenID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Find(ctx context.Context, tokenID string) (*models.BlacklistEntry, error) {
	var (
		e                    models.BlacklistEntry
		tokenType            string
		userAgent, ip, class sql.NullString
	)
	err := r.db.QueryRowContext(ctx, findQuery, tokenID).Scan(
		&e.ID, &e.TokenID, &e.ExpiresAt, &tokenType, &userAgent, &ip, &class, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	e.TokenType = models.BlacklistTokenType(tokenType)
	e.UserAgent, e.IPAddress, e.DeviceClass = userAgent.String, ip.String, class.String
	return &e, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredQuery, now)
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
