package compiler

import "github.com/hutchstack/bunny-go/cohort"

// The OMOP CDM fact tables the compiler writes against. Each occurrence
// domain maps to its table, concept column, event date column and, where the
// table records one, a numeric value column.
type domainTable struct {
	table      string
	conceptCol string
	dateCol    string
	valueCol   string
	typeCol    string
}

var occurrenceTables = []struct {
	domain cohort.Domain
	domainTable
}{
	{cohort.DomainCondition, domainTable{
		table:      "condition_occurrence",
		conceptCol: "condition_concept_id",
		dateCol:    "condition_start_date",
		typeCol:    "condition_type_concept_id",
	}},
	{cohort.DomainDrug, domainTable{
		table:      "drug_exposure",
		conceptCol: "drug_concept_id",
		dateCol:    "drug_exposure_start_date",
	}},
	{cohort.DomainMeasurement, domainTable{
		table:      "measurement",
		conceptCol: "measurement_concept_id",
		dateCol:    "measurement_date",
		valueCol:   "value_as_number",
	}},
	{cohort.DomainObservation, domainTable{
		table:      "observation",
		conceptCol: "observation_concept_id",
		dateCol:    "observation_date",
		valueCol:   "value_as_number",
	}},
	{cohort.DomainProcedure, domainTable{
		table:      "procedure_occurrence",
		conceptCol: "procedure_concept_id",
		dateCol:    "procedure_date",
	}},
}

func occurrenceTable(d cohort.Domain) (domainTable, bool) {
	for _, entry := range occurrenceTables {
		if entry.domain == d {
			return entry.domainTable, true
		}
	}
	return domainTable{}, false
}

// Person table demographic concept columns. A person-domain concept rule
// matches any of them; vocabularies keep the identifier spaces disjoint.
var personConceptCols = []string{
	"gender_concept_id",
	"race_concept_id",
	"ethnicity_concept_id",
}

const (
	personTable    = "person"
	personIDCol    = "person_id"
	birthYearCol   = "year_of_birth"
	conceptTable   = "concept"
	conceptIDCol   = "concept_id"
	conceptNameCol = "concept_name"
)
