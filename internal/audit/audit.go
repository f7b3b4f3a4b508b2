// Package audit records the statements the federator executes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shard-federator/internal/common/errors"
	"shard-federator/internal/common/logging"
	"shard-federator/internal/redis"
)

// DefaultKey is the Redis list audit entries are pushed to
const DefaultKey = "federator:audit"

// DefaultMaxEntries caps the Redis audit list
const DefaultMaxEntries = 10000

// Entry is one audited statement
type Entry struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Statement string    `json:"statement"`
	SQL       string    `json:"sql,omitempty"`
	Argument  string    `json:"argument,omitempty"`
}

// NewEntry stamps a new entry
func NewEntry(statement, sqlText string, argument interface{}) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		Time:      time.Now().UTC(),
		Statement: statement,
		SQL:       sqlText,
	}
	if argument != nil {
		e.Argument = fmt.Sprintf("%v", argument)
	}
	return e
}

// LogAuditor writes entries to a logger
type LogAuditor struct {
	logger logging.Logger
}

// NewLogAuditor creates an auditor logging at info level. A nil logger uses the global one.
func NewLogAuditor(logger logging.Logger) *LogAuditor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LogAuditor{logger: logger.WithFields(logging.Field{Key: "component", Value: "audit"})}
}

// Audit implements federation.Auditor
func (a *LogAuditor) Audit(ctx context.Context, statement, sqlText string, argument interface{}) error {
	e := NewEntry(statement, sqlText, argument)
	a.logger.WithContext(ctx).Info("Statement audited",
		logging.Field{Key: "audit_id", Value: e.ID},
		logging.String("statement", e.Statement),
		logging.Field{Key: "sql", Value: e.SQL},
		logging.Field{Key: "argument", Value: e.Argument},
	)
	return nil
}

// RedisAuditor pushes entries onto a capped Redis list
type RedisAuditor struct {
	client     *redis.Client
	key        string
	maxEntries int64
}

// NewRedisAuditor creates an auditor over client. Empty key and
// non-positive maxEntries take the package defaults.
func NewRedisAuditor(client *redis.Client, key string, maxEntries int64) (*RedisAuditor, error) {
	if client == nil {
		return nil, errors.ConfigError("redis auditor needs a client")
	}
	if key == "" {
		key = DefaultKey
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &RedisAuditor{client: client, key: key, maxEntries: maxEntries}, nil
}

// Audit implements federation.Auditor
func (a *RedisAuditor) Audit(ctx context.Context, statement, sqlText string, argument interface{}) error {
	return a.client.PushCapped(ctx, a.key, NewEntry(statement, sqlText, argument), a.maxEntries)
}

// Recent returns up to n of the newest entries
func (a *RedisAuditor) Recent(ctx context.Context, n int64) ([]Entry, error) {
	raw, err := a.client.Recent(ctx, a.key, n)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, errors.InternalError("corrupt audit entry", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Len returns how many entries the list currently holds
func (a *RedisAuditor) Len(ctx context.Context) (int64, error) {
	return a.client.Len(ctx, a.key)
}
