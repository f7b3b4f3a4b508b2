package sqlshard

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"shard-federator/internal/common/errors"
)

// Row is one result row keyed by column name.
type Row map[string]interface{}

// Session is an open connection on one shard. It is not safe for concurrent use.
type Session struct {
	identity string
	conn     *sql.Conn
	catalog  *Catalog
	dialect  Dialect

	closeOnce sync.Once
	closeErr  error
}

// Identity returns the shard this session is connected to
func (s *Session) Identity() string {
	return s.identity
}

// Close returns the connection to the pool. Further calls are no-ops.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// SQL returns the catalog text of statement
func (s *Session) SQL(statement string) (string, error) {
	return s.catalog.Lookup(statement)
}

func (s *Session) prepare(statement string, arg interface{}) (string, []interface{}, error) {
	text, err := s.catalog.Lookup(statement)
	if err != nil {
		return "", nil, err
	}
	query, args, err := bind(text, s.dialect, arg)
	if err != nil {
		return "", nil, errors.ValidationError(fmt.Sprintf("statement %s: %v", statement, err))
	}
	return query, args, nil
}

// Select streams every row of statement to handler. A handler error stops the scan.
func (s *Session) Select(ctx context.Context, statement string, arg interface{}, handler func(Row) error) error {
	return s.SelectWithBounds(ctx, statement, arg, NoBounds, handler)
}

// SelectWithBounds streams the rows of statement inside bounds to handler.
// The scan stops once the limit is reached.
func (s *Session) SelectWithBounds(ctx context.Context, statement string, arg interface{}, bounds Bounds, handler func(Row) error) error {
	if err := bounds.Validate(); err != nil {
		return err
	}
	query, args, err := s.prepare(statement, arg)
	if err != nil {
		return err
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %s on shard %s: %w", statement, s.identity, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns of %s: %w", statement, err)
	}

	w := bounds.window()
	for !w.full() && rows.Next() {
		if !w.take() {
			continue
		}
		row, err := scanRow(rows, columns)
		if err != nil {
			return fmt.Errorf("scan %s on shard %s: %w", statement, s.identity, err)
		}
		if err := handler(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SelectList returns every row of statement
func (s *Session) SelectList(ctx context.Context, statement string, arg interface{}) ([]Row, error) {
	return s.SelectListWithBounds(ctx, statement, arg, NoBounds)
}

// SelectListWithBounds returns the rows of statement inside bounds
func (s *Session) SelectListWithBounds(ctx context.Context, statement string, arg interface{}, bounds Bounds) ([]Row, error) {
	out := make([]Row, 0)
	err := s.SelectWithBounds(ctx, statement, arg, bounds, func(r Row) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SelectOne returns the single row of statement, or nil when there is none.
// More than one row is an error.
func (s *Session) SelectOne(ctx context.Context, statement string, arg interface{}) (Row, error) {
	rows, err := s.SelectList(ctx, statement, arg)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	default:
		return nil, errors.ExecutionError(
			fmt.Sprintf("statement %s returned %d rows, expected at most one", statement, len(rows)), nil).WithShard(s.identity)
	}
}

// SelectMap returns the rows of statement keyed by the formatted value of keyColumn
func (s *Session) SelectMap(ctx context.Context, statement string, arg interface{}, keyColumn string) (map[string]Row, error) {
	return s.SelectMapWithBounds(ctx, statement, arg, keyColumn, NoBounds)
}

// SelectMapWithBounds keys the rows of statement inside bounds by keyColumn
func (s *Session) SelectMapWithBounds(ctx context.Context, statement string, arg interface{}, keyColumn string, bounds Bounds) (map[string]Row, error) {
	out := make(map[string]Row)
	err := s.SelectWithBounds(ctx, statement, arg, bounds, func(r Row) error {
		v, ok := r[keyColumn]
		if !ok {
			return errors.ValidationError(fmt.Sprintf("statement %s has no column %s", statement, keyColumn))
		}
		out[fmt.Sprint(v)] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Exec runs an insert, update or delete and returns the affected row count
func (s *Session) Exec(ctx context.Context, statement string, arg interface{}) (int64, error) {
	query, args, err := s.prepare(statement, arg)
	if err != nil {
		return 0, err
	}

	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec %s on shard %s: %w", statement, s.identity, err)
	}
	return res.RowsAffected()
}

func scanRow(rows *sql.Rows, columns []string) (Row, error) {
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(Row, len(columns))
	for i, c := range columns {
		if b, ok := values[i].([]byte); ok {
			row[c] = string(b)
			continue
		}
		row[c] = values[i]
	}
	return row, nil
}
