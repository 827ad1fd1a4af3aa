package escrows

import (
	"context"

	"github.com/nova-sdk/novakeeper/internal/server/models"
)

// Repository indexes sealed keys. The key material itself lives in the
// blob store under StorageKey.
type Repository interface {
	Upsert(ctx context.Context, k *models.EscrowedKey) error
	GetByAccountID(ctx context.Context, accountID string) (*models.EscrowedKey, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.EscrowedKey, error)
}
