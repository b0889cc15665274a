package store

import (
	"context"
	"database/sql"
	"testing"

	"seclab/crypto"
	"seclab/db"
	"seclab/query"

	"github.com/stretchr/testify/require"
)

func openSeeded(t *testing.T, hasher crypto.PasswordHasher) *sql.DB {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Seed(context.Background(), conn, hasher))
	return conn
}

func goodUsers(t *testing.T) *Users {
	t.Helper()
	hasher := crypto.Argon2Hasher{}
	return NewUsers(openSeeded(t, hasher), query.BuilderFunc(query.Bind), hasher)
}

func badUsers(t *testing.T) *Users {
	t.Helper()
	hasher := crypto.PlaintextHasher{}
	return NewUsers(openSeeded(t, hasher), query.BuilderFunc(query.Splice), hasher)
}
