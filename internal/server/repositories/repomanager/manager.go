package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/campusgate/internal/dbx"
	"github.com/dmitrijs2005/campusgate/internal/server/repositories/blacklist"
	"github.com/dmitrijs2005/campusgate/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/campusgate/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, so services can run multi-repository work atomically.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Blacklist(db dbx.DBTX) blacklist.Repository
}
