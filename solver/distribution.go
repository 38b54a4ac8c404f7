package solver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hutchstack/bunny-go/query/compiler"
	"github.com/hutchstack/bunny-go/query/executor"
	"github.com/hutchstack/bunny-go/rquest"
)

// errUnsupportedAnalysis covers distribution codes the worker does not solve.
var errUnsupportedAnalysis = fmt.Errorf("solver: unsupported distribution analysis")

// The fixed column layout of a distribution result table.
var distributionColumns = []string{
	"BIOBANK", "CODE", "COUNT", "DESCRIPTION", "MIN", "Q1", "MEDIAN", "MEAN",
	"Q3", "MAX", "ALTERNATIVES", "DATASET", "OMOP", "OMOP_DESCR", "CATEGORY",
}

// distributionRow holds the populated subset of the table columns.
type distributionRow struct {
	code         string
	count        int64
	description  string
	alternatives string
	dataset      string
	omop         string
	omopDescr    string
	category     string
}

func (s *Solver) solveDistribution(ctx context.Context, q *rquest.DistributionQuery) (rquest.Result, error) {
	var (
		rows []distributionRow
		err  error
	)
	switch q.Code {
	case rquest.DistributionGeneric:
		rows, err = s.codeDistribution(ctx)
	case rquest.DistributionDemographics:
		rows, err = s.demographicsDistribution(ctx)
	default:
		err = fmt.Errorf("%w: %q", errUnsupportedAnalysis, q.Code)
	}
	if err != nil {
		return rquest.Result{}, err
	}

	table := renderTable(q.Collection, rows)
	file := rquest.NewFile(
		q.Code.FileName(),
		fmt.Sprintf("Result of %s analysis", q.Code.FileName()),
		[]byte(table),
	)
	s.log.Info("solved distribution query",
		zap.String("uuid", q.UUID), zap.String("code", string(q.Code)), zap.Int("rows", len(rows)))
	return rquest.NewResult(q.UUID, q.Collection, int64(len(rows)), []rquest.File{file}), nil
}

// codeDistribution counts subjects per concept across every dimension of the
// catalogue. Counts are obfuscated after execution, on the true values.
func (s *Solver) codeDistribution(ctx context.Context) ([]distributionRow, error) {
	var rows []distributionRow
	for _, dim := range compiler.ConceptDimensions() {
		q, err := s.comp.CompileGroupedCount(dim)
		if err != nil {
			return nil, err
		}
		res, err := s.exec.Execute(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("code distribution (%s): %w", dim.Category, err)
		}
		for _, g := range res.Groups {
			rows = append(rows, distributionRow{
				code:      fmt.Sprintf("OMOP:%d", g.Key),
				count:     s.obfusc.Apply(g.Count),
				omop:      strconv.FormatInt(g.Key, 10),
				omopDescr: g.Label,
				category:  dim.Category,
			})
		}
	}
	return rows, nil
}

// demographicsDistribution reports the sex breakdown plus a year-of-birth
// breakdown, each as a single row with per-group alternatives.
func (s *Solver) demographicsDistribution(ctx context.Context) ([]distributionRow, error) {
	sexQuery, err := s.comp.CompileGroupedCount(compiler.SexDimension())
	if err != nil {
		return nil, err
	}
	sex, err := s.exec.Execute(ctx, sexQuery)
	if err != nil {
		return nil, fmt.Errorf("demographics distribution: %w", err)
	}

	years, err := s.exec.Execute(ctx, s.comp.CompileBirthYearDistribution())
	if err != nil {
		return nil, fmt.Errorf("demographics distribution: %w", err)
	}

	return []distributionRow{
		{
			code:         "SEX",
			count:        s.obfusc.Apply(sex.Total()),
			description:  "Sex",
			alternatives: s.alternatives(sex, func(g executor.Group) string { return g.Label }),
			dataset:      "person",
			category:     "DEMOGRAPHICS",
		},
		{
			code:         "YEAR_OF_BIRTH",
			count:        s.obfusc.Apply(years.Total()),
			description:  "Year of birth",
			alternatives: s.alternatives(years, func(g executor.Group) string { return strconv.FormatInt(g.Key, 10) }),
			dataset:      "person",
			category:     "DEMOGRAPHICS",
		},
	}, nil
}

// alternatives renders the ^name|count^ breakdown string, counts obfuscated
// per group.
func (s *Solver) alternatives(res *executor.RawResult, label func(executor.Group) string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, g := range res.Groups {
		b.WriteString(label(g))
		b.WriteString("|")
		b.WriteString(strconv.FormatInt(s.obfusc.Apply(g.Count), 10))
		b.WriteString("^")
	}
	return b.String()
}

// renderTable flattens rows into the tab-separated wire table.
func renderTable(collection string, rows []distributionRow) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(distributionColumns, "\t"))
	for _, r := range rows {
		fields := []string{
			collection,         // BIOBANK
			r.code,             // CODE
			strconv.FormatInt(r.count, 10), // COUNT
			r.description,      // DESCRIPTION
			"", "", "", "", "", "", // MIN..MAX
			r.alternatives, // ALTERNATIVES
			r.dataset,      // DATASET
			r.omop,         // OMOP
			r.omopDescr,    // OMOP_DESCR
			r.category,     // CATEGORY
		}
		lines = append(lines, strings.Join(fields, "\t"))
	}
	return strings.Join(lines, "\n")
}
