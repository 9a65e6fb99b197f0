package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestMigrate_CreatesTablesIdempotently(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, db.Migrate(context.Background()))

	for _, table := range []string{"users", "properties", "events"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db := openMemory(t)
	now := time.Now().UTC()

	insert := `INSERT INTO users (id, first_name, last_name, username, email, role, image, password_hash, created_at, updated_at)
		VALUES (?, 'A', 'B', ?, ?, 'renter', '', 'x', ?, ?)`

	_, err := db.Exec(insert, "u1", "alice", "alice@example.com", now, now)
	require.NoError(t, err)

	_, err = db.Exec(insert, "u2", "alice2", "alice@example.com", now, now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users WHERE email = ?", "alice@example.com").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("UNIQUE constraint failed")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestRoleCheckConstraint(t *testing.T) {
	db := openMemory(t)
	now := time.Now().UTC()

	_, err := db.Exec(`INSERT INTO users (id, first_name, last_name, username, email, role, image, password_hash, created_at, updated_at)
		VALUES ('u1', 'A', 'B', 'bob', 'bob@example.com', 'tenant', '', 'x', ?, ?)`, now, now)
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	lite := &DB{Dialect: DialectSQLite}
	q := "UPDATE users SET email = ?, username = ? WHERE id = ?"

	assert.Equal(t, "UPDATE users SET email = $1, username = $2 WHERE id = $3", pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:renter.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:renter.db"))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:x.db?mode=rwc"))
}
