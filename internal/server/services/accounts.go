// Package services implements the server side of the account registry, key
// custody and funding boundaries on top of the repositories, the ledger, the
// blob store and the on-ramp provider.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/cryptox"
	"github.com/nova-sdk/novakeeper/internal/dbx"
	"github.com/nova-sdk/novakeeper/internal/logging"
	"github.com/nova-sdk/novakeeper/internal/server/config"
	"github.com/nova-sdk/novakeeper/internal/server/ledger"
	"github.com/nova-sdk/novakeeper/internal/server/models"
	"github.com/nova-sdk/novakeeper/internal/server/repositories/repomanager"
)

// ExistsResult answers an existence check. Balance is decimal NEAR and empty
// when the ledger could not be asked.
type ExistsResult struct {
	Exists    bool
	AccountID string
	Balance   string
}

// CreateRequest asks for <Name>.<parent domain> owned by PublicKey.
type CreateRequest struct {
	Name       string
	Identifier string
	PublicKey  string
	Network    string
}

type AccountService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	ledger       ledger.Ledger
	parentDomain string
	network      models.Network
	minBalance   *big.Int
	identifiers  *keyedMutex
	names        *keyedMutex
	log          logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, l ledger.Ledger, cfg *config.Config, log logging.Logger) (*AccountService, error) {
	minBalance, err := ledger.ParseNEAR(cfg.MinOperatorBalance)
	if err != nil {
		return nil, fmt.Errorf("min operator balance: %w", err)
	}
	return &AccountService{
		db:           db,
		repomanager:  m,
		ledger:       l,
		parentDomain: cfg.ParentDomain,
		network:      cfg.Network,
		minBalance:   minBalance,
		identifiers:  newKeyedMutex(),
		names:        newKeyedMutex(),
		log:          logging.OrNop(log).With("module", "accounts"),
	}, nil
}

// Exists reports whether identifier has a recorded account. The recorded
// mapping decides existence; the ledger only contributes the balance.
func (s *AccountService) Exists(ctx context.Context, caller models.Caller, identifier string) (ExistsResult, error) {
	if !caller.Owns(identifier) {
		return ExistsResult{}, fmt.Errorf("%w: identifier does not match caller", common.ErrForbidden)
	}

	acct, err := s.repomanager.Accounts(s.db).GetByIdentifier(ctx, caller.Identifier)
	if errors.Is(err, common.ErrAccountNotFound) {
		return ExistsResult{}, nil
	}
	if err != nil {
		return ExistsResult{}, err
	}

	res := ExistsResult{Exists: true, AccountID: acct.AccountID}
	view, err := s.ledger.ViewAccount(ctx, acct.AccountID)
	switch {
	case err != nil:
		s.log.Warn(ctx, "balance lookup failed", "account_id", acct.AccountID, "error", err)
	case view.Exists:
		res.Balance = ledger.FormatNEAR(view.Balance)
	}
	return res, nil
}

// Create registers a new sub-account for the caller. Creates for the same
// identifier, and then for the same name, are serialized so at most one
// ledger transaction is submitted per identifier. The unique constraints
// settle races with other server instances.
func (s *AccountService) Create(ctx context.Context, caller models.Caller, req CreateRequest) (*models.Account, error) {
	if !models.ValidAccountName(req.Name) {
		return nil, common.ErrInvalidName
	}
	if !caller.Owns(req.Identifier) {
		return nil, fmt.Errorf("%w: identifier does not match caller", common.ErrForbidden)
	}
	if req.Network != "" && models.Network(req.Network) != s.network {
		return nil, fmt.Errorf("%w: server runs on %s, not %s", common.ErrInvalid, s.network, req.Network)
	}
	if err := cryptox.ValidatePublicKey(req.PublicKey); err != nil {
		return nil, fmt.Errorf("%w: public key: %v", common.ErrInvalid, err)
	}

	// identifier before name, always
	unlockIdentifier := s.identifiers.Lock(caller.Identifier)
	defer unlockIdentifier()
	unlockName := s.names.Lock(req.Name)
	defer unlockName()

	repo := s.repomanager.Accounts(s.db)
	if existing, err := repo.GetByIdentifier(ctx, caller.Identifier); err == nil {
		s.log.Info(ctx, "identifier already linked", "account_id", existing.AccountID)
		return nil, common.ErrAlreadyLinked
	} else if !errors.Is(err, common.ErrAccountNotFound) {
		return nil, err
	}

	accountID := req.Name + "." + s.parentDomain
	view, err := s.ledger.ViewAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if view.Exists {
		return nil, common.ErrNameTaken
	}

	balance, err := s.ledger.OperatorBalance(ctx)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(s.minBalance) < 0 {
		s.log.Error(ctx, "operator balance below minimum", "balance", ledger.FormatNEAR(balance))
		return nil, common.ErrInsufficientFunds
	}

	txHash, err := s.ledger.CreateAccount(ctx, accountID, req.PublicKey)
	if err != nil {
		return nil, err
	}

	acct := &models.Account{
		AccountID:  accountID,
		Identifier: caller.Identifier,
		PublicKey:  req.PublicKey,
		Network:    s.network,
		TxHash:     txHash,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Accounts(tx).Create(ctx, acct)
		if err != nil {
			return err
		}
		acct = created
		return nil
	})
	if err != nil {
		s.log.Error(ctx, "account created on ledger but not recorded", "account_id", accountID, "tx_hash", txHash, "error", err)
		return nil, err
	}

	s.log.Info(ctx, "account created", "account_id", accountID, "tx_hash", txHash)
	return acct, nil
}
