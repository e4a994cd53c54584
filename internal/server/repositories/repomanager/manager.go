// Package repomanager builds repositories over a shared DB handle and runs
// schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/ingestor/internal/dbx"
	"github.com/dmitrijs2005/ingestor/internal/server/repositories/filerecords"
	"github.com/dmitrijs2005/ingestor/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a DBTX, so services can
// use the same repository code inside and outside transactions.
type RepositoryManager interface {
	FileRecords(db dbx.DBTX) filerecords.Repository
	Users(db dbx.DBTX) users.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
