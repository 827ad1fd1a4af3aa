package repomanager

import (
	"context"
	"database/sql"

	"github.com/nova-sdk/novakeeper/internal/dbx"
	"github.com/nova-sdk/novakeeper/internal/server/repositories/accounts"
	"github.com/nova-sdk/novakeeper/internal/server/repositories/escrows"
	"github.com/nova-sdk/novakeeper/internal/server/repositories/fundings"
)

// RepositoryManager vends repositories bound to a connection or a
// transaction, so services can run several of them in one dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Escrows(db dbx.DBTX) escrows.Repository
	Fundings(db dbx.DBTX) fundings.Repository
}
