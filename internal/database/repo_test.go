package database

import (
	"context"
	"database/sql"
	"io"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupRepo(t *testing.T, driver, dsn string) *Repo {
	t.Helper()
	db, err := Connect(context.Background(), driver, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := New(db, quietLogger())
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

func sqliteRepo(t *testing.T) *Repo {
	return setupRepo(t, "sqlite", ":memory:")
}

func TestDocuments_MissingKey(t *testing.T) {
	r := sqliteRepo(t)
	body, ok, err := r.GetDocument(context.Background(), "users", "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, body)
}

func TestDocuments_SetOverwritesWholesale(t *testing.T) {
	r := sqliteRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetDocument(ctx, "users", "u1", []byte(`{"portfolio":{"bitcoin":{"qty":1,"cost":5}},"transactions":[]}`)))
	require.NoError(t, r.SetDocument(ctx, "users", "u1", []byte(`{"portfolio":{},"transactions":[]}`)))
	require.NoError(t, r.SetDocument(ctx, "users", "u2", []byte(`{"other":true}`)))

	body, ok, err := r.GetDocument(ctx, "users", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"portfolio":{},"transactions":[]}`, string(body))

	body, ok, err = r.GetDocument(ctx, "users", "u2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"other":true}`, string(body))
}

func TestMigrate_Idempotent(t *testing.T) {
	r := sqliteRepo(t)
	assert.NoError(t, r.Migrate(context.Background()))
}

func TestAccounts_CreateAndLookup(t *testing.T) {
	r := sqliteRepo(t)
	ctx := context.Background()

	a := Account{ID: uuid.NewString(), Email: "ken@example.com", PasswordHash: "hash"}
	require.NoError(t, r.CreateAccount(ctx, a))

	got, err := r.GetAccountByEmail(ctx, "ken@example.com")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	dup := Account{ID: uuid.NewString(), Email: "ken@example.com", PasswordHash: "other"}
	assert.ErrorIs(t, r.CreateAccount(ctx, dup), ErrDuplicate)

	_, err = r.GetAccountByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPostgres_DocumentsRoundTrip(t *testing.T) {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL is not set; skipping integration tests")
	}
	r := setupRepo(t, "postgres", url)
	ctx := context.Background()
	key := "pg-test-" + uuid.NewString()

	require.NoError(t, r.SetDocument(ctx, "users", key, []byte(`{"a":1}`)))
	require.NoError(t, r.SetDocument(ctx, "users", key, []byte(`{"a":2}`)))
	body, ok, err := r.GetDocument(ctx, "users", key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":2}`, string(body))

	email := key + "@example.com"
	require.NoError(t, r.CreateAccount(ctx, Account{ID: uuid.NewString(), Email: email, PasswordHash: "x"}))
	assert.ErrorIs(t, r.CreateAccount(ctx, Account{ID: uuid.NewString(), Email: email, PasswordHash: "y"}), ErrDuplicate)
}
