package cohort

import (
	"fmt"
	"strings"

	"github.com/hutchstack/bunny-go/rquest"
)

// Parser turns wire cohorts into validated definitions. The zero value uses
// DefaultMaxDepth.
type Parser struct {
	MaxDepth int
}

// Parse builds a Definition from a wire cohort using default limits.
func Parse(c rquest.Cohort) (*Definition, error) {
	return Parser{}.Parse(c)
}

// Parse validates the wire cohort and builds the boolean tree bottom-up.
// All failures wrap ErrMalformedDefinition; nothing is executed here.
func (p Parser) Parse(c rquest.Cohort) (*Definition, error) {
	maxDepth := p.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	rootOp, err := parseCombinator(c.Operator)
	if err != nil {
		return nil, err
	}
	if len(c.Groups) == 0 {
		return nil, fmt.Errorf("%w: cohort has no groups", ErrMalformedDefinition)
	}

	root := &Group{Combinator: rootOp, Children: make([]Node, 0, len(c.Groups))}
	for i, g := range c.Groups {
		group, err := parseGroup(g)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		root.Children = append(root.Children, group)
	}

	def := &Definition{Root: root, Kind: KindAvailability}
	if err := Validate(def.Root, maxDepth); err != nil {
		return nil, err
	}
	return def, nil
}

// Validate re-checks structural invariants on a built tree: every group has
// at least one child and nesting stays within maxDepth.
func Validate(root *Group, maxDepth int) error {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if d := 1 + root.Depth(); d > maxDepth {
		return fmt.Errorf("%w: nesting depth %d exceeds limit %d", ErrMalformedDefinition, d, maxDepth)
	}
	return validateGroup(root)
}

func validateGroup(g *Group) error {
	if len(g.Children) == 0 {
		return fmt.Errorf("%w: group has no children", ErrMalformedDefinition)
	}
	if g.Combinator != CombinatorAnd && g.Combinator != CombinatorOr {
		return fmt.Errorf("%w: unknown combinator %q", ErrMalformedDefinition, g.Combinator)
	}
	for _, child := range g.Children {
		if sub, ok := child.(*Group); ok {
			if err := validateGroup(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseGroup(g rquest.Group) (*Group, error) {
	op, err := parseCombinator(g.Operator)
	if err != nil {
		return nil, err
	}
	if len(g.Rules) == 0 {
		return nil, fmt.Errorf("%w: group has no rules", ErrMalformedDefinition)
	}
	group := &Group{Combinator: op, Children: make([]Node, 0, len(g.Rules))}
	for i, r := range g.Rules {
		rule, err := parseRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		group.Children = append(group.Children, rule)
	}
	return group, nil
}

func parseCombinator(op string) (Combinator, error) {
	switch Combinator(op) {
	case CombinatorAnd, CombinatorOr:
		return Combinator(op), nil
	}
	return "", fmt.Errorf("%w: unknown combinator %q", ErrMalformedDefinition, op)
}

func parseOperator(op string) (Operator, error) {
	switch Operator(op) {
	case OpInclude, OpExclude:
		return Operator(op), nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrMalformedDefinition, op)
}

func parseRule(r rquest.Rule) (*Rule, error) {
	oper, err := parseOperator(r.Operator)
	if err != nil {
		return nil, err
	}

	// The person-age rule carries its bounds in the value field and no
	// concept identifier.
	if r.Varname == "AGE" {
		ageRange, err := ParseRange(r.Value.String())
		if err != nil {
			return nil, err
		}
		return &Rule{Domain: DomainPerson, Operator: oper, IsAge: true, AgeRange: ageRange}, nil
	}

	domain := Domain(r.Varcat)
	if !KnownDomain(domain) {
		return nil, fmt.Errorf("%w: unknown domain %q", ErrMalformedDefinition, r.Varcat)
	}

	rule := &Rule{Domain: domain, Operator: oper, SecondaryModifiers: r.SecondaryModifier}

	switch {
	case r.Type == "NUM":
		// Numeric rules encode the concept in the varname ("OMOP=443614")
		// and the value bounds in the value field.
		name, id, found := strings.Cut(r.Varname, "=")
		if !found || name != "OMOP" {
			return nil, fmt.Errorf("%w: numeric rule varname %q carries no concept", ErrMalformedDefinition, r.Varname)
		}
		concept := rquest.StringOrNumber(id)
		if rule.ConceptID, err = concept.Int(); err != nil {
			return nil, fmt.Errorf("%w: bad concept identifier %q", ErrMalformedDefinition, id)
		}
		if rule.ValueRange, err = ParseRange(r.Value.String()); err != nil {
			return nil, err
		}
	case r.Varname == "OMOP":
		if rule.ConceptID, err = r.Value.Int(); err != nil {
			return nil, fmt.Errorf("%w: bad concept identifier %q", ErrMalformedDefinition, r.Value.String())
		}
	default:
		return nil, fmt.Errorf("%w: unknown varname %q", ErrMalformedDefinition, r.Varname)
	}

	if r.Time != "" {
		constraint, err := parseTimeConstraint(r.Time)
		if err != nil {
			return nil, err
		}
		rule.TimeWindow = constraint.Window
		rule.AgeRange = constraint.Age
	}

	return rule, nil
}
