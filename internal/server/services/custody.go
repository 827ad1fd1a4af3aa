package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/cryptox"
	"github.com/nova-sdk/novakeeper/internal/logging"
	"github.com/nova-sdk/novakeeper/internal/server/blobstore"
	"github.com/nova-sdk/novakeeper/internal/server/config"
	"github.com/nova-sdk/novakeeper/internal/server/models"
	"github.com/nova-sdk/novakeeper/internal/server/repositories/repomanager"
)

// StoreRequest escrows PrivateKey for AccountID on behalf of Identifier.
type StoreRequest struct {
	AccountID  string
	PrivateKey string
	Identifier string
	Network    string
}

// RetrieveRequest looks an escrow up by account id, or by identifier when
// the account id is empty.
type RetrieveRequest struct {
	Identifier string
	AccountID  string
}

type RetrieveResult struct {
	PrivateKey string
	AccountID  string
}

type CustodyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	masterKey   []byte
	network     models.Network
	log         logging.Logger
}

func NewCustodyService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, cfg *config.Config, log logging.Logger) *CustodyService {
	return &CustodyService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		masterKey:   cryptox.DeriveMasterKey([]byte(cfg.CustodyPassphrase), []byte(cfg.CustodySalt)),
		network:     cfg.Network,
		log:         logging.OrNop(log).With("module", "custody"),
	}
}

// GetRandomStorageKey returns a fresh blob key for network.
func GetRandomStorageKey(network models.Network) string {
	return fmt.Sprintf("escrow/%s/%s", network, uuid.New())
}

func escrowAAD(accountID string, network models.Network) []byte {
	return []byte(accountID + "|" + string(network))
}

// Store seals the key and records where it went. The account must be
// recorded and owned by the caller, and an account already escrowed for
// another identifier is never re-associated. A replaced blob is deleted.
func (s *CustodyService) Store(ctx context.Context, caller models.Caller, req StoreRequest) (string, error) {
	if !caller.Owns(req.Identifier) {
		return "", fmt.Errorf("%w: identifier does not match caller", common.ErrForbidden)
	}
	if req.AccountID == "" {
		return "", fmt.Errorf("%w: account id is required", common.ErrInvalid)
	}
	if req.Network != "" && models.Network(req.Network) != s.network {
		return "", fmt.Errorf("%w: server runs on %s, not %s", common.ErrInvalid, s.network, req.Network)
	}
	if _, err := cryptox.ParsePrivateKey(req.PrivateKey); err != nil {
		return "", fmt.Errorf("%w: private key: %v", common.ErrInvalid, err)
	}

	acct, err := s.repomanager.Accounts(s.db).GetByAccountID(ctx, req.AccountID)
	if err != nil {
		return "", err
	}
	if acct.Identifier != caller.Identifier {
		return "", fmt.Errorf("%w: account belongs to another identifier", common.ErrForbidden)
	}

	escrows := s.repomanager.Escrows(s.db)
	prev, err := escrows.GetByAccountID(ctx, req.AccountID)
	switch {
	case err == nil && prev.Identifier != caller.Identifier:
		return "", common.ErrAlreadyLinked
	case errors.Is(err, common.ErrKeyNotFound):
		prev = nil
	case err != nil:
		return "", err
	}

	recordKey, err := cryptox.RecordKey(s.masterKey, req.AccountID, string(s.network))
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(recordKey)

	sealed, nonce, err := cryptox.Seal(recordKey, []byte(req.PrivateKey), escrowAAD(req.AccountID, s.network))
	if err != nil {
		return "", err
	}

	storageKey := GetRandomStorageKey(s.network)
	if err := s.blobs.Put(ctx, storageKey, sealed); err != nil {
		return "", err
	}

	checksum := cryptox.Checksum(req.PrivateKey)
	err = escrows.Upsert(ctx, &models.EscrowedKey{
		AccountID:  req.AccountID,
		Identifier: caller.Identifier,
		Network:    s.network,
		StorageKey: storageKey,
		Nonce:      nonce,
		Checksum:   checksum,
	})
	if err != nil {
		s.dropBlob(ctx, req.AccountID, storageKey)
		return "", err
	}
	if prev != nil && prev.StorageKey != "" && prev.StorageKey != storageKey {
		s.dropBlob(ctx, req.AccountID, prev.StorageKey)
	}

	s.log.Info(ctx, "key escrowed", "account_id", req.AccountID, "checksum", checksum)
	return checksum, nil
}

// dropBlob deletes a blob no index row points at. Failure only leaves an
// orphan behind, so it is logged.
func (s *CustodyService) dropBlob(ctx context.Context, accountID, storageKey string) {
	if err := s.blobs.Delete(ctx, storageKey); err != nil {
		s.log.Warn(ctx, "orphaned escrow blob", "account_id", accountID, "storage_key", storageKey, "error", err)
	}
}

// Retrieve opens the escrowed key. A missing escrow is reported before an
// ownership mismatch.
func (s *CustodyService) Retrieve(ctx context.Context, caller models.Caller, req RetrieveRequest) (RetrieveResult, error) {
	escrows := s.repomanager.Escrows(s.db)

	var (
		k   *models.EscrowedKey
		err error
	)
	switch {
	case req.AccountID != "":
		k, err = escrows.GetByAccountID(ctx, strings.TrimSpace(req.AccountID))
	case req.Identifier != "":
		k, err = escrows.GetByIdentifier(ctx, models.NormalizeIdentifier(req.Identifier))
	default:
		return RetrieveResult{}, fmt.Errorf("%w: identifier or account id is required", common.ErrInvalid)
	}
	if err != nil {
		return RetrieveResult{}, err
	}
	if !caller.Owns(k.Identifier) {
		return RetrieveResult{}, fmt.Errorf("%w: escrow belongs to another identifier", common.ErrForbidden)
	}

	sealed, err := s.blobs.Get(ctx, k.StorageKey)
	if err != nil {
		return RetrieveResult{}, err
	}

	recordKey, err := cryptox.RecordKey(s.masterKey, k.AccountID, string(k.Network))
	if err != nil {
		return RetrieveResult{}, err
	}
	defer common.WipeByteArray(recordKey)

	plain, err := cryptox.Open(recordKey, sealed, k.Nonce, escrowAAD(k.AccountID, k.Network))
	if err != nil {
		s.log.Error(ctx, "escrow does not open", "account_id", k.AccountID, "error", err)
		return RetrieveResult{}, fmt.Errorf("%w: escrow for %s is unreadable", common.ErrInternal, k.AccountID)
	}

	s.log.Info(ctx, "key retrieved", "account_id", k.AccountID, "checksum", k.Checksum)
	return RetrieveResult{PrivateKey: string(plain), AccountID: k.AccountID}, nil
}
