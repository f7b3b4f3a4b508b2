// Package sqlshard opens database/sql sessions on a shard and runs named
// statements from a catalog against them.
//
// Statements are written once with :name placeholders and bound from a map,
// a struct or a single scalar argument. The dialect registered for the
// driver decides how placeholders are rendered:
//
//	sqlite3            ?
//	pgx, postgres      $1, $2, ...
package sqlshard

import (
	"fmt"

	// Drivers are registered with database/sql for Open.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"shard-federator/internal/common/registry"
)

// Dialect renders positional placeholders for one database/sql driver.
type Dialect interface {
	// GetType returns the database/sql driver name
	GetType() string
	// Placeholder renders the n-th (1-based) bind parameter
	Placeholder(n int) string
}

type questionDialect struct{ driver string }

func (d questionDialect) GetType() string        { return d.driver }
func (d questionDialect) Placeholder(int) string { return "?" }

type dollarDialect struct{ driver string }

func (d dollarDialect) GetType() string          { return d.driver }
func (d dollarDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

var dialects = registry.New[Dialect]()

func init() {
	dialects.MustRegister(questionDialect{driver: "sqlite3"})
	dialects.MustRegister(dollarDialect{driver: "pgx"})
	dialects.MustRegister(dollarDialect{driver: "postgres"})
}

// DialectFor returns the dialect of a driver
func DialectFor(driver string) (Dialect, error) {
	return dialects.Get(driver)
}

// Drivers lists the supported driver names
func Drivers() []string {
	return dialects.Types()
}
