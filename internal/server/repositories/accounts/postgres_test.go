package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/server/models"
)

const (
	insertQ  = `(?s)^INSERT\s+INTO\s+accounts\s*\(id,\s*account_id,\s*identifier,\s*public_key,\s*network,\s*tx_hash\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+created_at$`
	byIdentQ = `(?s)^SELECT\s+id,\s*account_id,.*FROM\s+accounts\s+WHERE\s+identifier\s*=\s*\$1$`
	byAcctQ  = `(?s)^SELECT\s+id,\s*account_id,.*FROM\s+accounts\s+WHERE\s+account_id\s*=\s*\$1$`
)

var cols = []string{"id", "account_id", "identifier", "public_key", "network", "tx_hash", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func sampleAccount() *models.Account {
	return &models.Account{
		ID:         "4b7c9a55-0000-4000-8000-000000000001",
		AccountID:  "alice.nova-sdk.near",
		Identifier: "alice@example.com",
		PublicKey:  "ed25519:abc",
		Network:    models.Testnet,
		TxHash:     "tx1",
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(insertQ).
		WithArgs("4b7c9a55-0000-4000-8000-000000000001", "alice.nova-sdk.near", "alice@example.com", "ed25519:abc", "testnet", "tx1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	got, err := repo.Create(context.Background(), sampleAccount())
	require.NoError(t, err)
	require.Equal(t, now, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_AssignsID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).
		WithArgs(sqlmock.AnyArg(), "alice.nova-sdk.near", "alice@example.com", "ed25519:abc", "testnet", "tx1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	a := sampleAccount()
	a.ID = ""
	got, err := repo.Create(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, got.ID, 36)
}

func TestCreate_UniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"account id", "accounts_account_id_key", common.ErrNameTaken},
		{"identifier", "accounts_identifier_key", common.ErrAlreadyLinked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectQuery(insertQ).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			_, err := repo.Create(context.Background(), sampleAccount())
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), sampleAccount())
	require.Error(t, err)
	require.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetByIdentifier(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(byIdentQ).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("id-1", "alice.nova-sdk.near", "alice@example.com", "ed25519:abc", "testnet", "tx1", now))

	got, err := repo.GetByIdentifier(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "alice.nova-sdk.near", got.AccountID)
	require.Equal(t, models.Testnet, got.Network)
}

func TestGetByAccountID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(byAcctQ).
		WithArgs("ghost.nova-sdk.near").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByAccountID(context.Background(), "ghost.nova-sdk.near")
	require.ErrorIs(t, err, common.ErrAccountNotFound)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByAccountID_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(byAcctQ).WillReturnError(errors.New("db err"))

	_, err := repo.GetByAccountID(context.Background(), "x")
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrNotFound)
}
