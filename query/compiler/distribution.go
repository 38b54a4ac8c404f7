package compiler

import (
	"fmt"

	"github.com/hutchstack/bunny-go/cohort"
	"github.com/hutchstack/bunny-go/query/sqlgen"
)

// Dimension is one entry of the fixed catalogue of secondary grouping
// dimensions a distribution query may use.
type Dimension struct {
	// Category labels result rows, e.g. "Condition" or "Gender".
	Category string

	table      string
	conceptCol string
	onPerson   bool
}

// ConceptDimensions returns the catalogue of concept-valued dimensions, in
// the order distribution results report them.
func ConceptDimensions() []Dimension {
	dims := []Dimension{
		{Category: "Gender", table: personTable, conceptCol: "gender_concept_id", onPerson: true},
		{Category: "Race", table: personTable, conceptCol: "race_concept_id", onPerson: true},
		{Category: "Ethnicity", table: personTable, conceptCol: "ethnicity_concept_id", onPerson: true},
	}
	for _, entry := range occurrenceTables {
		dims = append(dims, Dimension{
			Category:   string(entry.domain),
			table:      entry.table,
			conceptCol: entry.conceptCol,
		})
	}
	return dims
}

// SexDimension is the demographics breakdown dimension.
func SexDimension() Dimension {
	return Dimension{Category: "Gender", table: personTable, conceptCol: "gender_concept_id", onPerson: true}
}

// CompileGroupedCount builds a statement counting distinct subjects per
// concept of the dimension, labelled with the concept name. No privacy
// filtering happens here; the obfuscator sees true counts.
func (c *Compiler) CompileGroupedCount(dim Dimension) (*sqlgen.Query, error) {
	if dim.table == "" || dim.conceptCol == "" {
		return nil, fmt.Errorf("%w: empty dimension", cohort.ErrMalformedDefinition)
	}

	q := c.dialect.QuoteIdentifier
	key := q("t") + "." + q(dim.conceptCol)
	name := q("c") + "." + q(conceptNameCol)
	count := "COUNT(DISTINCT " + q("t") + "." + q(personIDCol) + ")"

	sql := fmt.Sprintf(
		"SELECT %s, %s, %s FROM %s %s JOIN %s %s ON %s = %s GROUP BY %s, %s ORDER BY %s",
		key, name, count,
		q(dim.table), q("t"),
		q(conceptTable), q("c"),
		key, q("c")+"."+q(conceptIDCol),
		key, name,
		key,
	)
	return &sqlgen.Query{SQL: sql, Args: []interface{}{}}, nil
}

// CompileBirthYearDistribution counts subjects per year of birth, the
// calendar-year demographic breakdown.
func (c *Compiler) CompileBirthYearDistribution() *sqlgen.Query {
	q := c.dialect.QuoteIdentifier
	year := q("p") + "." + q(birthYearCol)
	sql := fmt.Sprintf(
		"SELECT %s, COUNT(DISTINCT %s) FROM %s %s GROUP BY %s ORDER BY %s",
		year,
		q("p")+"."+q(personIDCol),
		q(personTable), q("p"),
		year, year,
	)
	return &sqlgen.Query{SQL: sql, Args: []interface{}{}}
}
