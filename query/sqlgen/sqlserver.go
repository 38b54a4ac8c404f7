package sqlgen

import "fmt"

// SQLServer generates T-SQL for SQL-Server-compatible backends.
type SQLServer struct{}

func (SQLServer) Name() string   { return "sqlserver" }
func (SQLServer) Driver() string { return "sqlserver" }

func (SQLServer) QuoteIdentifier(name string) string { return "[" + name + "]" }

func (SQLServer) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (SQLServer) YearDiff(date, birthYear string) string {
	return fmt.Sprintf("(DATEPART(year, %s) - %s)", date, birthYear)
}

func (SQLServer) CurrentDate() string { return "CAST(GETDATE() AS date)" }

func (SQLServer) DateSubMonths(placeholder string) string {
	return fmt.Sprintf("DATEADD(month, -%s, CAST(GETDATE() AS date))", placeholder)
}

func (SQLServer) VersionQuery() string {
	return "SELECT CAST(SERVERPROPERTY('productversion') AS varchar(128))"
}
