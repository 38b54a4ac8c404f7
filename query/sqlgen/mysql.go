package sqlgen

import "fmt"

// MySQL generates MySQL-flavoured SQL.
type MySQL struct{}

func (MySQL) Name() string   { return "mysql" }
func (MySQL) Driver() string { return "mysql" }

func (MySQL) QuoteIdentifier(name string) string { return "`" + name + "`" }

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) YearDiff(date, birthYear string) string {
	return fmt.Sprintf("(YEAR(%s) - %s)", date, birthYear)
}

func (MySQL) CurrentDate() string { return "CURDATE()" }

func (MySQL) DateSubMonths(placeholder string) string {
	return fmt.Sprintf("DATE_SUB(CURDATE(), INTERVAL %s MONTH)", placeholder)
}

func (MySQL) VersionQuery() string { return "SELECT VERSION()" }
