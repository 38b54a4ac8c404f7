// Package sqlgen captures the per-backend SQL generation rules: identifier
// quoting, parameter placeholders and date arithmetic. The compiler depends
// only on the Dialect interface, never on a backend name.
package sqlgen

import (
	"errors"
	"fmt"
)

// Query is a compiled SQL statement with its bound arguments. It is immutable
// and safe to execute repeatedly.
type Query struct {
	SQL  string
	Args []interface{}
}

// ErrUnknownDialect is returned for backends outside the supported set.
var ErrUnknownDialect = errors.New("sqlgen: unknown dialect")

// Dialect is the capability surface a backend must provide. Expression
// helpers return SQL fragments; an empty fragment means the capability is
// not available on that backend.
type Dialect interface {
	// Name is the canonical dialect name.
	Name() string
	// Driver is the database/sql driver name used to open connections.
	Driver() string
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string
	// Placeholder renders the 1-based n-th bind parameter.
	Placeholder(n int) string
	// YearDiff is an expression for the difference in years between a date
	// column and a year-of-birth column. Empty when unsupported.
	YearDiff(date, birthYear string) string
	// CurrentDate is the backend's current-date expression.
	CurrentDate() string
	// DateSubMonths is an expression for the current date minus the number
	// of months held by the given bind placeholder.
	DateSubMonths(placeholder string) string
	// VersionQuery is a statement returning the server version string, or
	// empty when the backend has none.
	VersionQuery() string
}

// New returns the dialect adapter for the given backend name.
func New(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "sqlserver", "mssql":
		return SQLServer{}, nil
	case "trino":
		return Trino{}, nil
	case "mysql":
		return MySQL{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// Names lists the supported dialect names.
func Names() []string {
	return []string{"postgres", "sqlserver", "trino", "mysql", "sqlite"}
}
