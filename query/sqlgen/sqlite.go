package sqlgen

// SQLite generates SQL for file-backed and in-memory SQLite databases, the
// local development and test backend.
type SQLite struct{}

func (SQLite) Name() string   { return "sqlite" }
func (SQLite) Driver() string { return "sqlite3" }

func (SQLite) QuoteIdentifier(name string) string { return `"` + name + `"` }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) YearDiff(date, birthYear string) string {
	return "(CAST(STRFTIME('%Y', " + date + ") AS INTEGER) - " + birthYear + ")"
}

func (SQLite) CurrentDate() string { return "DATE('now')" }

func (SQLite) DateSubMonths(placeholder string) string {
	return "DATE('now', '-' || " + placeholder + " || ' months')"
}

func (SQLite) VersionQuery() string { return "SELECT sqlite_version()" }
