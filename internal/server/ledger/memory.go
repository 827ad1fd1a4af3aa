package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/nova-sdk/novakeeper/internal/common"
)

// Memory is an in-process ledger for local runs and tests.
type Memory struct {
	operator string
	deposit  *big.Int

	mu       sync.Mutex
	accounts map[string]*big.Int
	keys     map[string]string
}

// NewMemory creates a ledger where operator holds operatorBalance and each
// new account receives deposit from it.
func NewMemory(operator string, operatorBalance, deposit *big.Int) *Memory {
	return &Memory{
		operator: operator,
		deposit:  new(big.Int).Set(deposit),
		accounts: map[string]*big.Int{operator: new(big.Int).Set(operatorBalance)},
		keys:     map[string]string{},
	}
}

func (m *Memory) ViewAccount(ctx context.Context, accountID string) (AccountView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.accounts[accountID]
	if !ok {
		return AccountView{}, nil
	}
	return AccountView{Exists: true, Balance: new(big.Int).Set(bal)}, nil
}

func (m *Memory) CreateAccount(ctx context.Context, accountID, publicKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; ok {
		return "", common.ErrNameTaken
	}
	op := m.accounts[m.operator]
	if op.Cmp(m.deposit) < 0 {
		return "", common.ErrInsufficientFunds
	}
	op.Sub(op, m.deposit)
	m.accounts[accountID] = new(big.Int).Set(m.deposit)
	m.keys[accountID] = publicKey
	return newTxHash(), nil
}

func (m *Memory) Transfer(ctx context.Context, receiverID string, amount *big.Int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst, ok := m.accounts[receiverID]
	if !ok {
		return "", fmt.Errorf("transfer to %s: %w", receiverID, common.ErrAccountNotFound)
	}
	op := m.accounts[m.operator]
	if op.Cmp(amount) < 0 {
		return "", common.ErrInsufficientFunds
	}
	op.Sub(op, amount)
	dst.Add(dst, amount)
	return newTxHash(), nil
}

func (m *Memory) OperatorBalance(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.accounts[m.operator]), nil
}

// PublicKey returns the key registered for accountID, if any.
func (m *Memory) PublicKey(accountID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[accountID]
	return k, ok
}
