package sqlgen

import "fmt"

// Postgres generates PostgreSQL-flavoured SQL.
type Postgres struct{}

func (Postgres) Name() string   { return "postgres" }
func (Postgres) Driver() string { return "postgres" }

func (Postgres) QuoteIdentifier(name string) string { return `"` + name + `"` }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) YearDiff(date, birthYear string) string {
	return fmt.Sprintf("(DATE_PART('year', %s) - %s)", date, birthYear)
}

func (Postgres) CurrentDate() string { return "CURRENT_DATE" }

func (Postgres) DateSubMonths(placeholder string) string {
	return fmt.Sprintf("(CURRENT_DATE - MAKE_INTERVAL(months => %s))", placeholder)
}

func (Postgres) VersionQuery() string { return "SHOW server_version" }
