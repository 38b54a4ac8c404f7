package executor

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/hutchstack/bunny-go/cohort"
	"github.com/hutchstack/bunny-go/query/compiler"
	"github.com/hutchstack/bunny-go/query/sqlgen"
)

// The synthetic dataset used to verify boolean semantics against reference
// counts computed independently of SQL.
//
//	person 1: male,   born 1980, condition 28060 (2020), measurement 443614 = 15
//	person 2: male,   born 1990, condition 28060 (today), drug 111
//	person 3: female, born 1955, drug 111
//	person 4: female, born 2010, condition 22222
//	person 5: male,   born 1940, measurement 443614 = 25
//	person 6: female, born 2000
type ExecutorSuite struct {
	suite.Suite
	db   *sql.DB
	exec *Executor
	comp *compiler.Compiler
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorSuite))
}

func (s *ExecutorSuite) SetupSuite() {
	db, err := sql.Open("sqlite3", "file:bunny_executor_test?mode=memory&cache=shared")
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	s.db = db
	s.exec = New(db, sqlgen.SQLite{}, 5*time.Second)
	s.comp = compiler.New(sqlgen.SQLite{})

	schema := []string{
		`CREATE TABLE person (
			person_id INTEGER PRIMARY KEY,
			gender_concept_id INTEGER,
			race_concept_id INTEGER,
			ethnicity_concept_id INTEGER,
			year_of_birth INTEGER
		)`,
		`CREATE TABLE condition_occurrence (
			person_id INTEGER,
			condition_concept_id INTEGER,
			condition_start_date TEXT,
			condition_type_concept_id INTEGER
		)`,
		`CREATE TABLE drug_exposure (
			person_id INTEGER,
			drug_concept_id INTEGER,
			drug_exposure_start_date TEXT
		)`,
		`CREATE TABLE measurement (
			person_id INTEGER,
			measurement_concept_id INTEGER,
			measurement_date TEXT,
			value_as_number REAL
		)`,
		`CREATE TABLE observation (
			person_id INTEGER,
			observation_concept_id INTEGER,
			observation_date TEXT,
			value_as_number REAL
		)`,
		`CREATE TABLE procedure_occurrence (
			person_id INTEGER,
			procedure_concept_id INTEGER,
			procedure_date TEXT
		)`,
		`CREATE TABLE concept (concept_id INTEGER PRIMARY KEY, concept_name TEXT)`,
	}
	for _, stmt := range schema {
		_, err := db.Exec(stmt)
		s.Require().NoError(err)
	}

	today := time.Now().Format("2006-01-02")
	seed := []struct {
		stmt string
		args []interface{}
	}{
		{`INSERT INTO person VALUES (1, 8507, 8527, 38003564, 1980)`, nil},
		{`INSERT INTO person VALUES (2, 8507, 8527, 38003564, 1990)`, nil},
		{`INSERT INTO person VALUES (3, 8532, 8516, 38003564, 1955)`, nil},
		{`INSERT INTO person VALUES (4, 8532, 8527, 38003563, 2010)`, nil},
		{`INSERT INTO person VALUES (5, 8507, 8516, 38003563, 1940)`, nil},
		{`INSERT INTO person VALUES (6, 8532, 8527, 38003564, 2000)`, nil},
		{`INSERT INTO condition_occurrence VALUES (1, 28060, '2020-01-01', 32020)`, nil},
		{`INSERT INTO condition_occurrence VALUES (2, 28060, ?, 32817)`, []interface{}{today}},
		{`INSERT INTO condition_occurrence VALUES (4, 22222, '2021-06-15', 32020)`, nil},
		{`INSERT INTO drug_exposure VALUES (2, 111, '2022-03-10')`, nil},
		{`INSERT INTO drug_exposure VALUES (3, 111, '2019-11-20')`, nil},
		{`INSERT INTO measurement VALUES (1, 443614, '2023-05-01', 15)`, nil},
		{`INSERT INTO measurement VALUES (5, 443614, '2023-05-01', 25)`, nil},
		{`INSERT INTO concept VALUES (8507, 'MALE')`, nil},
		{`INSERT INTO concept VALUES (8532, 'FEMALE')`, nil},
		{`INSERT INTO concept VALUES (28060, 'Asthma')`, nil},
	}
	for _, row := range seed {
		_, err := db.Exec(row.stmt, row.args...)
		s.Require().NoError(err)
	}
}

func (s *ExecutorSuite) TearDownSuite() {
	s.Require().NoError(s.db.Close())
}

func (s *ExecutorSuite) count(def *cohort.Definition) int64 {
	q, err := s.comp.CompileAvailability(def)
	s.Require().NoError(err)
	count, err := s.exec.Count(context.Background(), q)
	s.Require().NoError(err)
	return count
}

func group(op cohort.Combinator, children ...cohort.Node) *cohort.Group {
	return &cohort.Group{Combinator: op, Children: children}
}

func defOf(g *cohort.Group) *cohort.Definition {
	return &cohort.Definition{Root: group(cohort.CombinatorAnd, g)}
}

func rule(domain cohort.Domain, concept int64) *cohort.Rule {
	return &cohort.Rule{Domain: domain, ConceptID: concept, Operator: cohort.OpInclude}
}

func (s *ExecutorSuite) TestSingleConceptCount() {
	s.EqualValues(2, s.count(defOf(group(cohort.CombinatorAnd, rule(cohort.DomainCondition, 28060)))))
}

func (s *ExecutorSuite) TestUnknownConceptYieldsZeroNotError() {
	s.EqualValues(0, s.count(defOf(group(cohort.CombinatorAnd, rule(cohort.DomainCondition, 99999)))))
}

func (s *ExecutorSuite) TestAndSemantics() {
	// condition 28060 ∧ drug 111 → person 2 only
	s.EqualValues(1, s.count(defOf(group(cohort.CombinatorAnd,
		rule(cohort.DomainCondition, 28060),
		rule(cohort.DomainDrug, 111),
	))))
}

func (s *ExecutorSuite) TestOrSemantics() {
	// condition 28060 ∨ drug 111 → persons 1, 2, 3
	s.EqualValues(3, s.count(defOf(group(cohort.CombinatorOr,
		rule(cohort.DomainCondition, 28060),
		rule(cohort.DomainDrug, 111),
	))))
}

func (s *ExecutorSuite) TestNotInvertsTruthValue() {
	inner := group(cohort.CombinatorAnd, rule(cohort.DomainCondition, 28060))
	inner.Negated = true
	// 6 persons minus the 2 with the condition
	s.EqualValues(4, s.count(defOf(inner)))
}

func (s *ExecutorSuite) TestExclusionRule() {
	excl := rule(cohort.DomainCondition, 28060)
	excl.Operator = cohort.OpExclude
	s.EqualValues(4, s.count(defOf(group(cohort.CombinatorAnd, excl))))
}

func (s *ExecutorSuite) TestNumericValueRange() {
	lo, hi := 10.0, 20.0
	r := rule(cohort.DomainMeasurement, 443614)
	r.ValueRange = &cohort.Range{Lo: &lo, Hi: &hi}
	s.EqualValues(1, s.count(defOf(group(cohort.CombinatorAnd, r))))
}

func (s *ExecutorSuite) TestPersonGenderRule() {
	s.EqualValues(3, s.count(defOf(group(cohort.CombinatorAnd, rule(cohort.DomainPerson, 8532)))))
}

func (s *ExecutorSuite) TestPersonAgeRule() {
	// Reference count computed from the seeded birth years and the current
	// year, independently of the generated SQL.
	year := time.Now().Year()
	expected := 0
	for _, yob := range []int{1980, 1990, 1955, 2010, 1940, 2000} {
		if age := year - yob; age >= 18 && age <= 65 {
			expected++
		}
	}

	lo, hi := 18.0, 65.0
	s.EqualValues(expected, s.count(defOf(group(cohort.CombinatorAnd, &cohort.Rule{
		Domain: cohort.DomainPerson, Operator: cohort.OpInclude, IsAge: true,
		AgeRange: &cohort.Range{Lo: &lo, Hi: &hi},
	}))))
}

func (s *ExecutorSuite) TestTimeWindowRecency() {
	recent := rule(cohort.DomainCondition, 28060)
	recent.TimeWindow = &cohort.TimeWindow{Months: 6, Direction: cohort.TimeAfter}
	// only person 2's condition is dated today
	s.EqualValues(1, s.count(defOf(group(cohort.CombinatorAnd, recent))))

	old := rule(cohort.DomainCondition, 28060)
	old.TimeWindow = &cohort.TimeWindow{Months: 6, Direction: cohort.TimeBefore}
	s.EqualValues(1, s.count(defOf(group(cohort.CombinatorAnd, old))))
}

func (s *ExecutorSuite) TestSecondaryModifierFilter() {
	r := rule(cohort.DomainCondition, 28060)
	r.SecondaryModifiers = []int64{32020}
	s.EqualValues(1, s.count(defOf(group(cohort.CombinatorAnd, r))))
}

func (s *ExecutorSuite) TestGroupedCountWithLabels() {
	q, err := s.comp.CompileGroupedCount(compiler.SexDimension())
	s.Require().NoError(err)

	res, err := s.exec.Execute(context.Background(), q)
	s.Require().NoError(err)
	s.Require().Len(res.Groups, 2)
	s.Equal(Group{Key: 8507, Label: "MALE", Count: 3}, res.Groups[0])
	s.Equal(Group{Key: 8532, Label: "FEMALE", Count: 3}, res.Groups[1])
	s.EqualValues(6, res.Total())
}

func (s *ExecutorSuite) TestBirthYearDistribution() {
	res, err := s.exec.Execute(context.Background(), s.comp.CompileBirthYearDistribution())
	s.Require().NoError(err)
	s.Len(res.Groups, 6)
	s.EqualValues(1940, res.Groups[0].Key)
}

func (s *ExecutorSuite) TestStatementFailureClassification() {
	_, err := s.exec.Execute(context.Background(), &sqlgen.Query{SQL: "SELECT FROM nowhere"})
	s.ErrorIs(err, ErrStatementFailure)
}

func (s *ExecutorSuite) TestTimeoutClassification() {
	tight := New(s.db, sqlgen.SQLite{}, time.Nanosecond)
	_, err := tight.Execute(context.Background(), &sqlgen.Query{SQL: "SELECT COUNT(*) FROM person"})
	s.ErrorIs(err, ErrQueryTimeout)
}

func TestVersionAdvisoryUnsupportedDialectQuery(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:bunny_version_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()

	e := New(db, sqlgen.SQLite{}, time.Second)
	raw, ok, err := e.VersionAdvisory(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.True(t, ok)

	// Trino has no version statement; the advisory passes through.
	raw, ok, err = New(db, sqlgen.Trino{}, time.Second).VersionAdvisory(context.Background())
	require.NoError(t, err)
	require.Empty(t, raw)
	require.True(t, ok)
}
