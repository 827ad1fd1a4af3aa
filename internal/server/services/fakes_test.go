package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/dbx"
	"github.com/nova-sdk/novakeeper/internal/server/config"
	"github.com/nova-sdk/novakeeper/internal/server/models"
	"github.com/nova-sdk/novakeeper/internal/server/repositories/accounts"
	"github.com/nova-sdk/novakeeper/internal/server/repositories/escrows"
	"github.com/nova-sdk/novakeeper/internal/server/repositories/fundings"
)

type fakeAccounts struct {
	mu        sync.Mutex
	rows      map[string]*models.Account
	createErr error
}

func (f *fakeAccounts) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, r := range f.rows {
		if r.Identifier == a.Identifier {
			return nil, common.ErrAlreadyLinked
		}
	}
	if _, ok := f.rows[a.AccountID]; ok {
		return nil, common.ErrNameTaken
	}
	c := *a
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	f.rows[a.AccountID] = &c
	return &c, nil
}

func (f *fakeAccounts) GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Identifier == identifier {
			return r, nil
		}
	}
	return nil, common.ErrAccountNotFound
}

func (f *fakeAccounts) GetByAccountID(ctx context.Context, accountID string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[accountID]; ok {
		return r, nil
	}
	return nil, common.ErrAccountNotFound
}

type fakeEscrows struct {
	rows map[string]*models.EscrowedKey
}

func (f *fakeEscrows) Upsert(ctx context.Context, k *models.EscrowedKey) error {
	c := *k
	f.rows[k.AccountID] = &c
	return nil
}

func (f *fakeEscrows) GetByAccountID(ctx context.Context, accountID string) (*models.EscrowedKey, error) {
	if r, ok := f.rows[accountID]; ok {
		return r, nil
	}
	return nil, common.ErrKeyNotFound
}

func (f *fakeEscrows) GetByIdentifier(ctx context.Context, identifier string) (*models.EscrowedKey, error) {
	for _, r := range f.rows {
		if r.Identifier == identifier {
			return r, nil
		}
	}
	return nil, common.ErrKeyNotFound
}

type fakeFundings struct {
	rows []*models.FundingSession
}

func (f *fakeFundings) Create(ctx context.Context, s *models.FundingSession) (*models.FundingSession, error) {
	c := *s
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().Add(time.Duration(len(f.rows)) * time.Second)
	f.rows = append(f.rows, &c)
	return &c, nil
}

func (f *fakeFundings) ListByAccount(ctx context.Context, accountID string) ([]*models.FundingSession, error) {
	var out []*models.FundingSession
	for _, r := range f.rows {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeRepoMgr struct {
	a *fakeAccounts
	e *fakeEscrows
	f *fakeFundings
}

func newFakeRepoMgr() *fakeRepoMgr {
	return &fakeRepoMgr{
		a: &fakeAccounts{rows: map[string]*models.Account{}},
		e: &fakeEscrows{rows: map[string]*models.EscrowedKey{}},
		f: &fakeFundings{},
	}
}

func (m *fakeRepoMgr) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoMgr) Accounts(db dbx.DBTX) accounts.Repository     { return m.a }
func (m *fakeRepoMgr) Escrows(db dbx.DBTX) escrows.Repository       { return m.e }
func (m *fakeRepoMgr) Fundings(db dbx.DBTX) fundings.Repository     { return m.f }

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New err: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func federated(email string) models.Caller {
	return models.Caller{Kind: models.CallerFederated, Identifier: email, Subject: email}
}
