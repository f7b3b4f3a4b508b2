package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"shard-federator/internal/shard"
	"shard-federator/internal/storage/sqlshard"
)

// UserSchema creates the users table used by the fixtures
const UserSchema = `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, region TEXT NOT NULL)`

// UserStatements is a catalog matching UserSchema
var UserStatements = map[string]string{
	"user.insert":   "INSERT INTO users (id, name, region) VALUES (:id, :name, :region)",
	"user.byId":     "SELECT id, name, region FROM users WHERE id = :id",
	"user.byRegion": "SELECT id, name, region FROM users WHERE region = :region ORDER BY id",
	"user.all":      "SELECT id, name, region FROM users ORDER BY id",
	"user.count":    "SELECT COUNT(*) AS n FROM users",
	"user.rename":   "UPDATE users SET name = :name WHERE id = :id",
	"user.delete":   "DELETE FROM users WHERE id = :id",
	"user.purge":    "DELETE FROM users",
}

// User is a row of the fixture schema
type User struct {
	ID     int64  `db:"id"`
	Name   string `db:"name"`
	Region string `db:"region"`
}

// SQLiteShards opens one SQLite database per identity in a temp directory,
// applies UserSchema and returns the providers keyed by identity.
func SQLiteShards(t *testing.T, identities ...string) map[string]*sqlshard.Provider {
	t.Helper()

	catalog, err := sqlshard.NewCatalog(UserStatements)
	require.NoError(t, err)

	dir := t.TempDir()
	out := make(map[string]*sqlshard.Provider, len(identities))
	for _, id := range identities {
		dsn := filepath.Join(dir, fmt.Sprintf("%s.db", id))
		p, err := sqlshard.Open(context.Background(), id, "sqlite3", dsn, catalog)
		require.NoError(t, err)
		t.Cleanup(func() { p.Close() })

		_, err = p.DB().Exec(UserSchema)
		require.NoError(t, err)
		out[id] = p
	}
	return out
}

// SeedUsers inserts users directly into the shard behind p
func SeedUsers(t *testing.T, p *sqlshard.Provider, users ...User) {
	t.Helper()
	for _, u := range users {
		_, err := p.DB().Exec(`INSERT INTO users (id, name, region) VALUES (?, ?, ?)`, u.ID, u.Name, u.Region)
		require.NoError(t, err)
	}
}

// ShardRegistry registers every provider under its identity
func ShardRegistry(t *testing.T, providers map[string]*sqlshard.Provider) *shard.Registry {
	t.Helper()
	reg, err := shard.NewRegistry()
	require.NoError(t, err)
	for id, p := range providers {
		require.NoError(t, reg.Register(shard.NewDescriptor(id, p)))
	}
	return reg
}
