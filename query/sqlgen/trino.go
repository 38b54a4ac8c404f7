package sqlgen

import "fmt"

// Trino generates SQL for the Trino distributed query engine. Trino has a
// different optimizer and reduced transactional guarantees, but the read-only
// query shapes emitted by the compiler translate directly; age arithmetic
// over connector-mapped date columns is the one capability withheld.
type Trino struct{}

func (Trino) Name() string   { return "trino" }
func (Trino) Driver() string { return "trino" }

func (Trino) QuoteIdentifier(name string) string { return `"` + name + `"` }

func (Trino) Placeholder(int) string { return "?" }

// YearDiff is unsupported: year-of-birth arithmetic is not portable across
// Trino connectors.
func (Trino) YearDiff(date, birthYear string) string { return "" }

func (Trino) CurrentDate() string { return "current_date" }

func (Trino) DateSubMonths(placeholder string) string {
	return fmt.Sprintf("date_add('month', -%s, current_date)", placeholder)
}

func (Trino) VersionQuery() string { return "" }
