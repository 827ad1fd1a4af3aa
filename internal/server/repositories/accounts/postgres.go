// Package accounts stores managed accounts in Postgres.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/dbx"
	"github.com/nova-sdk/novakeeper/internal/server/models"
)

const identifierConstraint = "accounts_identifier_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a. A clash on the account id means another request won
// the name (common.ErrNameTaken); a clash on the identifier means it is
// already linked (common.ErrAlreadyLinked).
func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO accounts (id, account_id, identifier, public_key, network, tx_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.AccountID, a.Identifier, a.PublicKey, string(a.Network), a.TxHash).Scan(&a.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			if dbx.ConstraintName(err) == identifierConstraint {
				return nil, common.ErrAlreadyLinked
			}
			return nil, common.ErrNameTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	query :=
		`SELECT id, account_id, identifier, public_key, network, tx_hash, created_at
		 FROM accounts
		 WHERE identifier = $1`
	return r.scanOne(ctx, query, identifier)
}

func (r *PostgresRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Account, error) {
	query :=
		`SELECT id, account_id, identifier, public_key, network, tx_hash, created_at
		 FROM accounts
		 WHERE account_id = $1`
	return r.scanOne(ctx, query, accountID)
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, arg string) (*models.Account, error) {
	a := &models.Account{}
	var network string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.AccountID, &a.Identifier, &a.PublicKey, &network, &a.TxHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	a.Network = models.Network(network)
	return a, nil
}
