// Package cohort defines the in-memory representation of a cohort
// definition: a boolean tree of clinical predicates parsed from the RQuest
// wire format. The tree is built bottom-up and never mutated afterwards.
package cohort

import "errors"

// ErrMalformedDefinition is wrapped by every parse failure in this package.
var ErrMalformedDefinition = errors.New("cohort: malformed definition")

// DefaultMaxDepth bounds group nesting to guard against adversarial payloads.
const DefaultMaxDepth = 32

// Domain names the clinical data model table family a rule targets.
type Domain string

const (
	DomainCondition   Domain = "Condition"
	DomainDrug        Domain = "Drug"
	DomainMeasurement Domain = "Measurement"
	DomainObservation Domain = "Observation"
	DomainProcedure   Domain = "Procedure"
	DomainPerson      Domain = "Person"
)

// KnownDomain reports whether d is part of the supported catalogue.
func KnownDomain(d Domain) bool {
	switch d {
	case DomainCondition, DomainDrug, DomainMeasurement, DomainObservation,
		DomainProcedure, DomainPerson:
		return true
	}
	return false
}

// Operator is the rule-level comparison: inclusion or exclusion of subjects
// matching the predicate.
type Operator string

const (
	OpInclude Operator = "="
	OpExclude Operator = "!="
)

// Combinator joins the children of a group.
type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// NodeKind discriminates the two tree variants.
type NodeKind int

const (
	KindRule NodeKind = iota
	KindGroup
)

// Node is either a *Rule or a *Group.
type Node interface {
	Kind() NodeKind
}

// Range is a numeric interval with inclusive bounds. A nil bound is open.
type Range struct {
	Lo *float64
	Hi *float64
}

// Bounded reports whether at least one bound is set.
func (r *Range) Bounded() bool {
	return r != nil && (r.Lo != nil || r.Hi != nil)
}

// TimeDirection orients a relative time window.
type TimeDirection int

const (
	// TimeBefore keeps events on or before now minus the window.
	TimeBefore TimeDirection = iota
	// TimeAfter keeps events on or after now minus the window.
	TimeAfter
)

// TimeWindow restricts events relative to the current date.
type TimeWindow struct {
	Months    int
	Direction TimeDirection
}

// Rule is a leaf predicate. For occurrence domains it asserts (non-)existence
// of a matching clinical event; for the Person domain it constrains
// demographics. IsAge marks the special person-age rule, which carries no
// concept identifier.
type Rule struct {
	Domain             Domain
	ConceptID          int64
	Operator           Operator
	IsAge              bool
	ValueRange         *Range      // value_as_number bounds
	AgeRange           *Range      // age in years, at event or current
	TimeWindow         *TimeWindow // event recency relative to now
	SecondaryModifiers []int64     // condition type concept filter
}

func (r *Rule) Kind() NodeKind { return KindRule }

// Group is an interior node combining children under a boolean combinator,
// optionally negated.
type Group struct {
	Combinator Combinator
	Negated    bool
	Children   []Node
}

func (g *Group) Kind() NodeKind { return KindGroup }

// QueryKind distinguishes the two cohort query families.
type QueryKind int

const (
	KindAvailability QueryKind = iota
	KindDistribution
)

// Definition is the root of a parsed cohort: the boolean tree plus the
// declared query kind.
type Definition struct {
	Root *Group
	Kind QueryKind
}

// Depth returns the nesting depth of the tree rooted at g. A group of rules
// has depth 1.
func (g *Group) Depth() int {
	depth := 0
	for _, child := range g.Children {
		d := 1
		if sub, ok := child.(*Group); ok {
			d = 1 + sub.Depth()
		}
		if d > depth {
			depth = d
		}
	}
	return depth
}
