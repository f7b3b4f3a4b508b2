package sqlshard

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shard-federator/internal/common/errors"
)

var testStatements = map[string]string{
	"user.insert":   "INSERT INTO users (id, name, region) VALUES (:id, :name, :region)",
	"user.byId":     "SELECT id, name, region FROM users WHERE id = :id",
	"user.byRegion": "SELECT id, name, region FROM users WHERE region = :region ORDER BY id",
	"user.all":      "SELECT id, name, region FROM users ORDER BY id",
	"user.rename":   "UPDATE users SET name = :name WHERE id = :id",
	"user.delete":   "DELETE FROM users WHERE id = :id",
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()

	catalog, err := NewCatalog(testStatements)
	require.NoError(t, err)

	dsn := filepath.Join(t.TempDir(), "shard.db")
	p, err := Open(context.Background(), "s1", "sqlite3", dsn, catalog)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	_, err = p.DB().Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, region TEXT NOT NULL)`)
	require.NoError(t, err)
	return p
}

func openSession(t *testing.T, p *Provider) *Session {
	t.Helper()
	h, err := p.Open(context.Background())
	require.NoError(t, err)
	s := h.(*Session)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSession_ReadWrite(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	s := openSession(t, p)
	assert.Equal(t, "s1", s.Identity())

	for _, u := range []map[string]interface{}{
		{"id": 1, "name": "ada", "region": "eu"},
		{"id": 2, "name": "bob", "region": "us"},
		{"id": 3, "name": "cyd", "region": "eu"},
	} {
		n, err := s.Exec(ctx, "user.insert", u)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}

	row, err := s.SelectOne(ctx, "user.byId", 2)
	require.NoError(t, err)
	assert.Equal(t, "bob", row["name"])
	assert.Equal(t, int64(2), row["id"])

	missing, err := s.SelectOne(ctx, "user.byId", 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := s.SelectList(ctx, "user.byRegion", map[string]interface{}{"region": "eu"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ada", list[0]["name"])
	assert.Equal(t, "cyd", list[1]["name"])

	byName, err := s.SelectMap(ctx, "user.all", nil, "name")
	require.NoError(t, err)
	assert.Len(t, byName, 3)
	assert.Equal(t, int64(3), byName["cyd"]["id"])

	var seen []string
	err = s.Select(ctx, "user.all", nil, func(r Row) error {
		seen = append(seen, r["name"].(string))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada", "bob", "cyd"}, seen)

	n, err := s.Exec(ctx, "user.rename", map[string]interface{}{"id": 1, "name": "ava"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Exec(ctx, "user.delete", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	text, err := s.SQL("user.delete")
	require.NoError(t, err)
	assert.Contains(t, text, "DELETE FROM users")
}

func TestSession_Errors(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	s := openSession(t, p)

	_, err := s.SelectList(ctx, "user.unknown", nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	_, err = s.SelectList(ctx, "user.byRegion", map[string]interface{}{})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	_, err = s.SelectMap(ctx, "user.all", nil, "missing")
	assert.NoError(t, err, "no rows means the key column is never consulted")

	_, err = s.Exec(ctx, "user.insert", map[string]interface{}{"id": 1, "name": "a", "region": "eu"})
	require.NoError(t, err)
	_, err = s.Exec(ctx, "user.insert", map[string]interface{}{"id": 1, "name": "a", "region": "eu"})
	assert.Error(t, err)

	_, err = s.Exec(ctx, "user.insert", map[string]interface{}{"id": 2, "name": "b", "region": "eu"})
	require.NoError(t, err)
	_, err = s.SelectOne(ctx, "user.all", nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeExecution))

	_, err = s.SelectMap(ctx, "user.all", nil, "missing")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	p := newTestProvider(t)
	h, err := p.Open(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, err = h.(*Session).SelectList(context.Background(), "user.all", nil)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestProvider_Config(t *testing.T) {
	catalog, err := NewCatalog(nil)
	require.NoError(t, err)

	_, err = NewProvider("s1", nil, "sqlite3", catalog)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = Open(context.Background(), "s1", "mysql", "x", catalog)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	p := newTestProvider(t)
	assert.NoError(t, p.Health(context.Background()))
	assert.Equal(t, "s1", p.Identity())
	assert.NotNil(t, p.Catalog())
}

func TestCatalog(t *testing.T) {
	c, err := NewCatalog(map[string]string{"a.get": "SELECT 1"})
	require.NoError(t, err)

	assert.True(t, errors.IsType(c.Add("a.get", "SELECT 2"), errors.ErrTypeConfig))
	assert.True(t, errors.IsType(c.Add("", "SELECT 2"), errors.ErrTypeConfig))
	assert.True(t, errors.IsType(c.Add("b.get", ""), errors.ErrTypeConfig))
	assert.True(t, errors.IsType(c.Add("b.get", "SELECT 'x"), errors.ErrTypeConfig))

	require.NoError(t, c.Add("b.get", "SELECT 2"))
	assert.Equal(t, []string{"a.get", "b.get"}, c.Names())

	_, err = c.Lookup("c.get")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestSession_Bounds(t *testing.T) {
	ctx := context.Background()
	s := openSession(t, newTestProvider(t))

	for i, name := range []string{"ada", "bob", "cyd", "dee", "eve"} {
		_, err := s.Exec(ctx, "user.insert", map[string]interface{}{"id": i + 1, "name": name, "region": "eu"})
		require.NoError(t, err)
	}

	names := func(rows []Row) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r["name"].(string)
		}
		return out
	}

	tests := []struct {
		name   string
		bounds Bounds
		want   []string
	}{
		{"no bounds", NoBounds, []string{"ada", "bob", "cyd", "dee", "eve"}},
		{"limit only", Bounds{Limit: 2}, []string{"ada", "bob"}},
		{"offset only", Bounds{Offset: 3}, []string{"dee", "eve"}},
		{"offset and limit", Bounds{Offset: 1, Limit: 2}, []string{"bob", "cyd"}},
		{"limit past end", Bounds{Offset: 4, Limit: 10}, []string{"eve"}},
		{"offset past end", Bounds{Offset: 9}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.SelectListWithBounds(ctx, "user.all", nil, tt.bounds)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(rows))
		})
	}

	byID, err := s.SelectMapWithBounds(ctx, "user.all", nil, "id", Bounds{Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Contains(t, byID, "3")
	assert.Contains(t, byID, "4")

	calls := 0
	err = s.SelectWithBounds(ctx, "user.all", nil, Bounds{Limit: 1}, func(Row) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = s.SelectListWithBounds(ctx, "user.all", nil, Bounds{Offset: -1})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	_, err = s.SelectListWithBounds(ctx, "user.all", nil, Bounds{Limit: -5})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}
