// Package compiler lowers cohort definitions into dialect-parameterized SQL.
// Compilation is a pure function of the definition and the dialect: the same
// inputs always yield byte-identical SQL and the same argument list.
package compiler

import (
	"fmt"
	"strings"

	"github.com/hutchstack/bunny-go/cohort"
	"github.com/hutchstack/bunny-go/query/sqlgen"
)

// Compiler compiles cohort definitions for one dialect.
type Compiler struct {
	dialect sqlgen.Dialect
}

// New creates a compiler bound to a dialect adapter.
func New(d sqlgen.Dialect) *Compiler {
	return &Compiler{dialect: d}
}

// Dialect returns the adapter this compiler emits SQL for.
func (c *Compiler) Dialect() sqlgen.Dialect { return c.dialect }

// CompileAvailability lowers a definition into a single statement counting
// distinct subjects that satisfy the boolean tree.
func (c *Compiler) CompileAvailability(def *cohort.Definition) (*sqlgen.Query, error) {
	if err := cohort.Validate(def.Root, 0); err != nil {
		return nil, err
	}

	b := &builder{dialect: c.dialect, personAlias: "p"}
	pred, err := b.groupPredicate(def.Root)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s %s WHERE %s",
		b.personCol(personIDCol),
		b.quote(personTable), b.quote(b.personAlias),
		pred,
	)
	return &sqlgen.Query{SQL: sql, Args: b.args}, nil
}

// builder threads the argument list and alias counter through one
// compilation.
type builder struct {
	dialect     sqlgen.Dialect
	personAlias string
	args        []interface{}
	aliasN      int
}

func (b *builder) quote(name string) string { return b.dialect.QuoteIdentifier(name) }

func (b *builder) personCol(col string) string {
	return b.quote(b.personAlias) + "." + b.quote(col)
}

// bind appends an argument and returns its placeholder.
func (b *builder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *builder) nextAlias() string {
	b.aliasN++
	return fmt.Sprintf("t%d", b.aliasN)
}

// groupPredicate combines child predicates left-to-right under the group's
// combinator, always parenthesized, NOT wrapping the whole group.
func (b *builder) groupPredicate(g *cohort.Group) (string, error) {
	parts := make([]string, 0, len(g.Children))
	for _, child := range g.Children {
		var (
			pred string
			err  error
		)
		switch node := child.(type) {
		case *cohort.Group:
			pred, err = b.groupPredicate(node)
		case *cohort.Rule:
			pred, err = b.rulePredicate(node)
		default:
			err = fmt.Errorf("%w: unknown node kind", cohort.ErrMalformedDefinition)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, pred)
	}

	joiner := " AND "
	if g.Combinator == cohort.CombinatorOr {
		joiner = " OR "
	}
	pred := "(" + strings.Join(parts, joiner) + ")"
	if g.Negated {
		pred = "NOT " + pred
	}
	return pred, nil
}

func (b *builder) rulePredicate(r *cohort.Rule) (string, error) {
	if r.Domain == cohort.DomainPerson {
		return b.personPredicate(r)
	}
	return b.occurrencePredicate(r)
}

// personPredicate constrains demographics directly on the person table.
func (b *builder) personPredicate(r *cohort.Rule) (string, error) {
	var pred string
	if r.IsAge {
		age := b.dialect.YearDiff(b.dialect.CurrentDate(), b.personCol(birthYearCol))
		if age == "" {
			return "", fmt.Errorf("%w: age rules on dialect %q", ErrUnsupportedDialectFeature, b.dialect.Name())
		}
		bounds, err := b.rangeBounds(age, r.AgeRange)
		if err != nil {
			return "", err
		}
		pred = "(" + strings.Join(bounds, " AND ") + ")"
	} else {
		// The wire format does not say which demographic column a concept
		// belongs to; identifiers are disjoint across vocabularies, so match
		// any of them.
		alternatives := make([]string, 0, len(personConceptCols))
		for _, col := range personConceptCols {
			alternatives = append(alternatives, b.personCol(col)+" = "+b.bind(r.ConceptID))
		}
		pred = "(" + strings.Join(alternatives, " OR ") + ")"
	}

	if r.Operator == cohort.OpExclude {
		pred = "NOT " + pred
	}
	return pred, nil
}

// occurrencePredicate builds a correlated existence check against the rule's
// domain occurrence table.
func (b *builder) occurrencePredicate(r *cohort.Rule) (string, error) {
	table, ok := occurrenceTable(r.Domain)
	if !ok {
		return "", fmt.Errorf("%w: unknown domain %q", cohort.ErrMalformedDefinition, r.Domain)
	}

	alias := b.nextAlias()
	col := func(name string) string { return b.quote(alias) + "." + b.quote(name) }

	conds := []string{
		col(personIDCol) + " = " + b.personCol(personIDCol),
		col(table.conceptCol) + " = " + b.bind(r.ConceptID),
	}

	if r.ValueRange.Bounded() {
		if table.valueCol == "" {
			return "", fmt.Errorf("%w: numeric bounds on a %s rule", cohort.ErrMalformedDefinition, r.Domain)
		}
		bounds, err := b.rangeBounds(col(table.valueCol), r.ValueRange)
		if err != nil {
			return "", err
		}
		conds = append(conds, bounds...)
	}

	if r.AgeRange.Bounded() {
		age := b.dialect.YearDiff(col(table.dateCol), b.personCol(birthYearCol))
		if age == "" {
			return "", fmt.Errorf("%w: age rules on dialect %q", ErrUnsupportedDialectFeature, b.dialect.Name())
		}
		bounds, err := b.rangeBounds(age, r.AgeRange)
		if err != nil {
			return "", err
		}
		conds = append(conds, bounds...)
	}

	if r.TimeWindow != nil {
		cutoff := b.dialect.DateSubMonths(b.bind(r.TimeWindow.Months))
		cmp := " <= "
		if r.TimeWindow.Direction == cohort.TimeAfter {
			cmp = " >= "
		}
		conds = append(conds, col(table.dateCol)+cmp+cutoff)
	}

	if len(r.SecondaryModifiers) > 0 && table.typeCol != "" {
		alternatives := make([]string, 0, len(r.SecondaryModifiers))
		for _, id := range r.SecondaryModifiers {
			alternatives = append(alternatives, col(table.typeCol)+" = "+b.bind(id))
		}
		conds = append(conds, "("+strings.Join(alternatives, " OR ")+")")
	}

	sub := fmt.Sprintf("SELECT 1 FROM %s %s WHERE %s",
		b.quote(table.table), b.quote(alias), strings.Join(conds, " AND "))

	if r.Operator == cohort.OpExclude {
		return "NOT EXISTS (" + sub + ")", nil
	}
	return "EXISTS (" + sub + ")", nil
}

// rangeBounds renders inclusive bounds for expr, one condition per set bound.
func (b *builder) rangeBounds(expr string, r *cohort.Range) ([]string, error) {
	if !r.Bounded() {
		return nil, fmt.Errorf("%w: range without bounds", cohort.ErrMalformedDefinition)
	}
	var conds []string
	if r.Lo != nil {
		conds = append(conds, expr+" >= "+b.bind(*r.Lo))
	}
	if r.Hi != nil {
		conds = append(conds, expr+" <= "+b.bind(*r.Hi))
	}
	return conds, nil
}
