package fundings

import (
	"context"

	"github.com/nova-sdk/novakeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.FundingSession) (*models.FundingSession, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.FundingSession, error)
}
