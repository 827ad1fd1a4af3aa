// Package escrows stores the escrow index in Postgres.
package escrows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/dbx"
	"github.com/nova-sdk/novakeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert stores k, replacing any previous escrow for the same account.
func (r *PostgresRepository) Upsert(ctx context.Context, k *models.EscrowedKey) error {
	query :=
		`INSERT INTO escrowed_keys (account_id, identifier, network, storage_key, nonce, checksum)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (account_id) DO UPDATE
		 SET identifier = EXCLUDED.identifier,
		     network = EXCLUDED.network,
		     storage_key = EXCLUDED.storage_key,
		     nonce = EXCLUDED.nonce,
		     checksum = EXCLUDED.checksum,
		     updated_at = now()`

	_, err := r.db.ExecContext(ctx, query,
		k.AccountID, k.Identifier, string(k.Network), k.StorageKey, k.Nonce, k.Checksum)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByAccountID(ctx context.Context, accountID string) (*models.EscrowedKey, error) {
	query :=
		`SELECT account_id, identifier, network, storage_key, nonce, checksum, created_at, updated_at
		 FROM escrowed_keys
		 WHERE account_id = $1`
	return r.scanOne(ctx, query, accountID)
}

// GetByIdentifier returns the most recently written escrow for identifier.
func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.EscrowedKey, error) {
	query :=
		`SELECT account_id, identifier, network, storage_key, nonce, checksum, created_at, updated_at
		 FROM escrowed_keys
		 WHERE identifier = $1
		 ORDER BY updated_at DESC
		 LIMIT 1`
	return r.scanOne(ctx, query, identifier)
}

func (r *PostgresRepository) scanOne(ctx context.Context, query, arg string) (*models.EscrowedKey, error) {
	k := &models.EscrowedKey{}
	var network string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&k.AccountID, &k.Identifier, &network, &k.StorageKey, &k.Nonce, &k.Checksum, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrKeyNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	k.Network = models.Network(network)
	return k, nil
}
