package services

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/logging"
	"github.com/nova-sdk/novakeeper/internal/server/config"
	"github.com/nova-sdk/novakeeper/internal/server/ledger"
	"github.com/nova-sdk/novakeeper/internal/server/models"
	"github.com/nova-sdk/novakeeper/internal/server/onramp"
	"github.com/nova-sdk/novakeeper/internal/server/repositories/repomanager"
)

// SessionRequest asks for a hosted purchase of AmountUSD into AccountID.
type SessionRequest struct {
	AccountID  string
	Identifier string
	AmountUSD  float64
}

// SessionResult carries the provider secret alongside the recorded session.
type SessionResult struct {
	Session      *models.FundingSession
	ClientSecret string
}

type FundingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	provider    onramp.Provider
	ledger      ledger.Ledger
	network     models.Network
	amount      *big.Int
	blacklist   map[string]struct{}

	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	log logging.Logger
}

func NewFundingService(db *sql.DB, m repomanager.RepositoryManager, p onramp.Provider, l ledger.Ledger, cfg *config.Config, log logging.Logger) (*FundingService, error) {
	amount, err := ledger.ParseNEAR(cfg.FaucetAmount)
	if err != nil {
		return nil, fmt.Errorf("faucet amount: %w", err)
	}
	blacklist := make(map[string]struct{}, len(cfg.Blacklist))
	for _, b := range cfg.Blacklist {
		blacklist[models.NormalizeIdentifier(b)] = struct{}{}
	}
	return &FundingService{
		db:          db,
		repomanager: m,
		provider:    p,
		ledger:      l,
		network:     cfg.Network,
		amount:      amount,
		blacklist:   blacklist,
		limit:       rate.Every(cfg.FaucetInterval),
		burst:       cfg.FaucetBurst,
		now:         time.Now,
		limiters:    map[string]*rate.Limiter{},
		log:         logging.OrNop(log).With("module", "funding"),
	}, nil
}

// ownedAccount loads accountID and checks that the caller owns it.
func (s *FundingService) ownedAccount(ctx context.Context, caller models.Caller, accountID string) (*models.Account, error) {
	acct, err := s.repomanager.Accounts(s.db).GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(acct.Identifier) {
		return nil, fmt.Errorf("%w: account belongs to another identifier", common.ErrForbidden)
	}
	return acct, nil
}

// Session opens a hosted on-ramp session and records it.
func (s *FundingService) Session(ctx context.Context, caller models.Caller, req SessionRequest) (SessionResult, error) {
	if req.AmountUSD <= 0 {
		return SessionResult{}, fmt.Errorf("%w: amount must be positive", common.ErrInvalid)
	}
	if !caller.Owns(req.Identifier) {
		return SessionResult{}, fmt.Errorf("%w: identifier does not match caller", common.ErrForbidden)
	}
	acct, err := s.ownedAccount(ctx, caller, req.AccountID)
	if err != nil {
		return SessionResult{}, err
	}

	ps, err := s.provider.CreateSession(ctx, onramp.SessionRequest{
		AccountID: acct.AccountID,
		Network:   string(s.network),
		AmountUSD: req.AmountUSD,
	})
	if err != nil {
		return SessionResult{}, err
	}

	rec, err := s.repomanager.Fundings(s.db).Create(ctx, &models.FundingSession{
		AccountID:   acct.AccountID,
		Identifier:  caller.Identifier,
		AmountUSD:   req.AmountUSD,
		ProviderRef: ps.ID,
	})
	if err != nil {
		return SessionResult{}, err
	}

	s.log.Info(ctx, "funding session opened", "account_id", acct.AccountID, "session_id", ps.ID, "amount_usd", req.AmountUSD)
	return SessionResult{Session: rec, ClientSecret: ps.ClientSecret}, nil
}

// Sessions lists the sessions opened for an account the caller owns.
func (s *FundingService) Sessions(ctx context.Context, caller models.Caller, accountID string) ([]*models.FundingSession, error) {
	if _, err := s.ownedAccount(ctx, caller, accountID); err != nil {
		return nil, err
	}
	return s.repomanager.Fundings(s.db).ListByAccount(ctx, accountID)
}

// Faucet transfers the configured amount to accountID. Testnet only; each
// account draws from its own token bucket.
func (s *FundingService) Faucet(ctx context.Context, caller models.Caller, accountID string) (string, error) {
	if s.network != models.Testnet {
		return "", fmt.Errorf("%w: faucet is only available on testnet", common.ErrForbidden)
	}
	if s.blacklisted(accountID) || s.blacklisted(caller.Identifier) {
		s.log.Warn(ctx, "faucet refused", "account_id", accountID)
		return "", common.ErrBlacklisted
	}
	if _, err := s.ownedAccount(ctx, caller, accountID); err != nil {
		return "", err
	}
	if err := s.reserve(accountID); err != nil {
		return "", err
	}

	txHash, err := s.ledger.Transfer(ctx, accountID, s.amount)
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "faucet transfer", "account_id", accountID, "amount", ledger.FormatNEAR(s.amount), "tx_hash", txHash)
	return txHash, nil
}

func (s *FundingService) blacklisted(v string) bool {
	_, ok := s.blacklist[models.NormalizeIdentifier(v)]
	return ok
}

func (s *FundingService) reserve(accountID string) error {
	s.mu.Lock()
	l, ok := s.limiters[accountID]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[accountID] = l
	}
	s.mu.Unlock()

	now := s.now()
	r := l.ReserveN(now, 1)
	if !r.OK() {
		return &common.RateLimitedError{}
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return &common.RateLimitedError{RetryAfter: d.Round(time.Second)}
	}
	return nil
}
