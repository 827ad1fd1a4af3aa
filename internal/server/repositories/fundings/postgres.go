// Package fundings records hosted on-ramp sessions in Postgres.
package fundings

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nova-sdk/novakeeper/internal/dbx"
	"github.com/nova-sdk/novakeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.FundingSession) (*models.FundingSession, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO funding_sessions (id, account_id, identifier, amount_usd, provider_ref)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.AccountID, s.Identifier, s.AmountUSD, s.ProviderRef).Scan(&s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// ListByAccount returns the sessions opened for accountID, newest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.FundingSession, error) {
	query :=
		`SELECT id, account_id, identifier, amount_usd, provider_ref, created_at
		 FROM funding_sessions
		 WHERE account_id = $1
		 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.FundingSession
	for rows.Next() {
		s := &models.FundingSession{}
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Identifier, &s.AmountUSD, &s.ProviderRef, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
