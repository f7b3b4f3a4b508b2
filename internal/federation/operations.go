package federation

import (
	"context"

	"shard-federator/internal/common/logging"
	"shard-federator/internal/merge"
)

// SelectOne returns the row of statement, or nil when no target has it.
func (t *Template) SelectOne(ctx context.Context, statement string, arg interface{}) (Row, error) {
	results, err := t.Execute(ctx, statement, arg, sessionAction(func(ctx context.Context, s Session) (interface{}, error) {
		return s.SelectOne(ctx, statement, arg)
	}))
	if err != nil {
		return nil, err
	}

	row, _ := merge.First(results).(Row)
	return row, nil
}

// SelectList returns the rows of every target concatenated in target order.
func (t *Template) SelectList(ctx context.Context, statement string, arg interface{}) ([]Row, error) {
	results, err := t.Execute(ctx, statement, arg, sessionAction(func(ctx context.Context, s Session) (interface{}, error) {
		return s.SelectList(ctx, statement, arg)
	}))
	if err != nil {
		return nil, err
	}
	return merge.Concat[Row](results)
}

// SelectMap returns the rows of every target keyed by keyColumn; later targets win on collisions.
func (t *Template) SelectMap(ctx context.Context, statement string, arg interface{}, keyColumn string) (map[string]Row, error) {
	results, err := t.Execute(ctx, statement, arg, sessionAction(func(ctx context.Context, s Session) (interface{}, error) {
		return s.SelectMap(ctx, statement, arg, keyColumn)
	}))
	if err != nil {
		return nil, err
	}
	return merge.Union[string, Row](results)
}

// Select streams the rows of every target to handler.
func (t *Template) Select(ctx context.Context, statement string, arg interface{}, handler func(Row) error) error {
	_, err := t.Execute(ctx, statement, arg, sessionAction(func(ctx context.Context, s Session) (interface{}, error) {
		return nil, s.Select(ctx, statement, arg, handler)
	}))
	return err
}

// SelectListWithBounds applies bounds on every target before concatenating,
// so up to Limit rows come from each target.
func (t *Template) SelectListWithBounds(ctx context.Context, statement string, arg interface{}, bounds Bounds) ([]Row, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	results, err := t.Execute(ctx, statement, arg, sessionAction(func(ctx context.Context, s Session) (interface{}, error) {
		return s.SelectListWithBounds(ctx, statement, arg, bounds)
	}))
	if err != nil {
		return nil, err
	}
	return merge.Concat[Row](results)
}

// SelectMapWithBounds applies bounds on every target before the union.
func (t *Template) SelectMapWithBounds(ctx context.Context, statement string, arg interface{}, keyColumn string, bounds Bounds) (map[string]Row, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	results, err := t.Execute(ctx, statement, arg, sessionAction(func(ctx context.Context, s Session) (interface{}, error) {
		return s.SelectMapWithBounds(ctx, statement, arg, keyColumn, bounds)
	}))
	if err != nil {
		return nil, err
	}
	return merge.Union[string, Row](results)
}

// SelectWithBounds streams the rows inside bounds of every target to handler.
func (t *Template) SelectWithBounds(ctx context.Context, statement string, arg interface{}, bounds Bounds, handler func(Row) error) error {
	if err := bounds.Validate(); err != nil {
		return err
	}
	_, err := t.Execute(ctx, statement, arg, sessionAction(func(ctx context.Context, s Session) (interface{}, error) {
		return nil, s.SelectWithBounds(ctx, statement, arg, bounds, handler)
	}))
	return err
}

// Insert runs statement on every target and returns the total affected rows.
func (t *Template) Insert(ctx context.Context, statement string, arg interface{}) (int64, error) {
	return t.exec(ctx, statement, arg)
}

// Update runs statement on every target and returns the total affected rows.
func (t *Template) Update(ctx context.Context, statement string, arg interface{}) (int64, error) {
	return t.exec(ctx, statement, arg)
}

// Delete runs statement on every target and returns the total affected rows.
func (t *Template) Delete(ctx context.Context, statement string, arg interface{}) (int64, error) {
	return t.exec(ctx, statement, arg)
}

func (t *Template) exec(ctx context.Context, statement string, arg interface{}) (int64, error) {
	results, err := t.Execute(ctx, statement, arg, sessionAction(func(ctx context.Context, s Session) (interface{}, error) {
		return s.Exec(ctx, statement, arg)
	}))
	if err != nil {
		return 0, err
	}

	n, err := merge.Sum(results)
	if err != nil {
		return 0, err
	}
	t.logger.WithContext(ctx).Debug("Write applied", logging.Int64("affected", n), logging.Int("targets", len(results)))
	return n, nil
}
