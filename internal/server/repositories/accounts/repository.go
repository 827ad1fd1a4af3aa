package accounts

import (
	"context"

	"github.com/nova-sdk/novakeeper/internal/server/models"
)

// Repository persists the identifier to account mapping. It is the source
// of truth for "does this identifier have an account".
type Repository interface {
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.Account, error)
}
