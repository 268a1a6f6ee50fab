package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/fittrack/internal/dbx"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/customers"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/events"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/media"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB handle or a transaction,
// so services can run several repositories inside one dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Media(db dbx.DBTX) media.Repository
	Customers(db dbx.DBTX) customers.Repository
	Events(db dbx.DBTX) events.Repository
}
