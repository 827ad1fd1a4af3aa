// Package server wires the reference collaborator server: configuration,
// logging, Postgres and migrations, the ledger, blob store and on-ramp
// backends, the services and the HTTP API.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nova-sdk/novakeeper/internal/logging"
	"github.com/nova-sdk/novakeeper/internal/server/blobstore"
	"github.com/nova-sdk/novakeeper/internal/server/config"
	"github.com/nova-sdk/novakeeper/internal/server/httpapi"
	"github.com/nova-sdk/novakeeper/internal/server/ledger"
	"github.com/nova-sdk/novakeeper/internal/server/metrics"
	"github.com/nova-sdk/novakeeper/internal/server/onramp"
	"github.com/nova-sdk/novakeeper/internal/server/repositories/repomanager"
	"github.com/nova-sdk/novakeeper/internal/server/services"
)

// Balances of the in-memory ledger's operator account, in NEAR.
const (
	memoryOperatorBalance = "100"
	memoryAccountDeposit  = "0.1"

	providerTimeout = 15 * time.Second
)

// Seams for tests.
var (
	openDB         = repomanager.OpenPostgres
	newRepoManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app, err := newApp(ctx, c, logger, db, rm)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*App, error) {
	l, err := newLedger(c)
	if err != nil {
		return nil, err
	}
	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		return nil, err
	}

	accounts, err := services.NewAccountService(db, rm, l, c, logger)
	if err != nil {
		return nil, err
	}
	funding, err := services.NewFundingService(db, rm, newProvider(c), l, c, logger)
	if err != nil {
		return nil, err
	}

	srv := httpapi.NewServer(c.ListenAddr, httpapi.Services{
		Accounts: accounts,
		Custody:  services.NewCustodyService(db, rm, blobs, c, logger),
		Funding:  funding,
		Profile:  services.NewProfileService(c),
	}, metrics.New(), logger)

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

func newLedger(c *config.Config) (ledger.Ledger, error) {
	switch c.LedgerBackend {
	case config.BackendRPC:
		return ledger.NewRPC(c.LedgerRPCURL, c.RelayerURL, c.ParentDomain, c.LedgerTimeout), nil
	case config.BackendMemory:
		balance, err := ledger.ParseNEAR(memoryOperatorBalance)
		if err != nil {
			return nil, err
		}
		deposit, err := ledger.ParseNEAR(memoryAccountDeposit)
		if err != nil {
			return nil, err
		}
		return ledger.NewMemory(c.ParentDomain, balance, deposit), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", c.LedgerBackend)
	}
}

func newBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.BlobBackend {
	case config.BackendS3:
		return blobstore.NewS3(ctx, blobstore.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	case config.BackendMemory:
		return blobstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
}

func newProvider(c *config.Config) onramp.Provider {
	if c.OnrampURL == "" {
		return onramp.Fake{}
	}
	return onramp.NewHTTP(c.OnrampURL, c.OnrampAPIKey, providerTimeout)
}

// Run serves until ctx is cancelled and then releases the database.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...", "network", app.config.Network, "ledger", app.config.LedgerBackend)
	err := app.server.Run(ctx)
	if cerr := app.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

func (app *App) Close() error {
	if app.db == nil {
		return nil
	}
	return app.db.Close()
}
