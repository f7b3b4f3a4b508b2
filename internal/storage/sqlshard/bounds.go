package sqlshard

import (
	"fmt"

	"shard-federator/internal/common/errors"
)

// Bounds limits the rows a select delivers from one shard. Offset rows are
// skipped first, then at most Limit rows are delivered. A zero Limit means
// no limit.
type Bounds struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// NoBounds delivers every row.
var NoBounds = Bounds{}

// Validate rejects negative offsets and limits
func (b Bounds) Validate() error {
	if b.Offset < 0 {
		return errors.ValidationError(fmt.Sprintf("row offset %d is negative", b.Offset))
	}
	if b.Limit < 0 {
		return errors.ValidationError(fmt.Sprintf("row limit %d is negative", b.Limit))
	}
	return nil
}

// window tracks one scan against the bounds.
type window struct {
	skip      int
	remaining int
	limited   bool
}

func (b Bounds) window() *window {
	return &window{skip: b.Offset, remaining: b.Limit, limited: b.Limit > 0}
}

// take reports whether the next row should be delivered.
func (w *window) take() bool {
	if w.skip > 0 {
		w.skip--
		return false
	}
	if w.limited {
		w.remaining--
	}
	return true
}

// full reports whether the limit has been reached
func (w *window) full() bool {
	return w.limited && w.remaining <= 0
}
