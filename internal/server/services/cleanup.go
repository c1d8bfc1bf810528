package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/logging"
	"github.com/dmitrijs2005/campusgate/internal/server/repositories/repomanager"
)

// Sweeper deletes expired blacklist entries and refresh tokens.
type Sweeper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
	logger      logging.Logger
}

func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, now func() time.Time, logger logging.Logger) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{db: db, repomanager: m, now: now, logger: logger.With("module", "sweeper")}
}

// Run performs both sweeps. A failure in one does not skip the other; the
// errors are joined.
func (s *Sweeper) Run(ctx context.Context) error {
	now := s.now()

	var errs []error

	n, err := s.repomanager.Blacklist(s.db).DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error(ctx, "blacklist sweep failed", "error", err)
		errs = append(errs, fmt.Errorf("blacklist sweep: %w", err))
	} else {
		s.logger.Info(ctx, "blacklist sweep finished", "deleted", n)
	}

	n, err = s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error(ctx, "refresh token sweep failed", "error", err)
		errs = append(errs, fmt.Errorf("refresh token sweep: %w", err))
	} else {
		s.logger.Info(ctx, "refresh token sweep finished", "deleted", n)
	}

	return errors.Join(errs...)
}
