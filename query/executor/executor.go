// Package executor runs compiled queries against a pooled database
// connection and maps result sets into raw (group, count) pairs. All access
// is read-only.
package executor

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/hutchstack/bunny-go/query/sqlgen"
)

// PoolConfig bounds the connection pool owned by the executor.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig mirrors the sizing used for worker deployments: a small
// steady pool, recycled hourly.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour}
}

// Executor owns the pool for one configured backend. It is safe for reuse
// across sequential task cycles.
type Executor struct {
	db      *sql.DB
	dialect sqlgen.Dialect
	timeout time.Duration
}

// Open connects the dialect's driver to dsn and configures the pool. The
// connection is not validated here; use Ping.
func Open(dialect sqlgen.Dialect, dsn string, pool PoolConfig, timeout time.Duration) (*Executor, error) {
	db, err := sql.Open(dialect.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailure, err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	return New(db, dialect, timeout), nil
}

// New wraps an existing pool handle.
func New(db *sql.DB, dialect sqlgen.Dialect, timeout time.Duration) *Executor {
	return &Executor{db: db, dialect: dialect, timeout: timeout}
}

// Dialect returns the adapter the executor was opened with.
func (e *Executor) Dialect() sqlgen.Dialect { return e.dialect }

// DB exposes the underlying pool handle.
func (e *Executor) DB() *sql.DB { return e.db }

// Close releases the pool.
func (e *Executor) Close() error { return e.db.Close() }

// Ping validates connectivity.
func (e *Executor) Ping(ctx context.Context) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := e.db.PingContext(ctx); err != nil {
		return e.classify(ctx, err)
	}
	return nil
}

// Execute runs a compiled query under the configured deadline and maps the
// rows. Result sets of one column are a bare count, two columns are
// (key, count), three are (key, label, count).
func (e *Executor) Execute(ctx context.Context, q *sqlgen.Query) (*RawResult, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, e.classify(ctx, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, e.classify(ctx, err)
	}

	result := &RawResult{}
	for rows.Next() {
		var g Group
		var label sql.NullString
		switch len(cols) {
		case 1:
			err = rows.Scan(&g.Count)
		case 2:
			err = rows.Scan(&g.Key, &g.Count)
		case 3:
			err = rows.Scan(&g.Key, &label, &g.Count)
			g.Label = label.String
		default:
			return nil, fmt.Errorf("%w: unexpected result shape (%d columns)", ErrStatementFailure, len(cols))
		}
		if err != nil {
			return nil, e.classify(ctx, err)
		}
		result.Groups = append(result.Groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, e.classify(ctx, err)
	}
	return result, nil
}

// Count runs a single-count query and returns the value, zero when the
// statement yields no row.
func (e *Executor) Count(ctx context.Context, q *sqlgen.Query) (int64, error) {
	res, err := e.Execute(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(res.Groups) == 0 {
		return 0, nil
	}
	return res.Groups[0].Count, nil
}

// Minimum advisable server versions per dialect. Older servers usually work
// but are outside what deployments are tested against.
var minimumVersions = map[string]string{
	"postgres":  "13.0",
	"sqlserver": "14.0",
	"mysql":     "8.0",
	"sqlite":    "3.35.0",
}

// VersionAdvisory reports the backend's server version and whether it meets
// the advised minimum. Dialects without a version query report supported.
func (e *Executor) VersionAdvisory(ctx context.Context) (string, bool, error) {
	stmt := e.dialect.VersionQuery()
	if stmt == "" {
		return "", true, nil
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var raw string
	if err := e.db.QueryRowContext(ctx, stmt).Scan(&raw); err != nil {
		return "", false, e.classify(ctx, err)
	}

	minimum, ok := minimumVersions[e.dialect.Name()]
	if !ok {
		return raw, true, nil
	}
	current, err := goversion.NewVersion(raw)
	if err != nil {
		// Vendors append suffixes the version grammar rejects; treat an
		// unparseable version as supported rather than blocking startup.
		return raw, true, nil
	}
	min := goversion.Must(goversion.NewVersion(minimum))
	return raw, current.GreaterThanOrEqual(min), nil
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// classify maps a driver error to the executor's failure taxonomy.
func (e *Executor) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrQueryTimeout, err)
	case errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || isNetError(err):
		return fmt.Errorf("%w: %v", ErrConnectionFailure, err)
	default:
		return fmt.Errorf("%w: %v", ErrStatementFailure, err)
	}
}

func isNetError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
