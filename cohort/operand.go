package cohort

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Operand micro-formats carried in rule values and time fields:
//
//	numeric range   "10..20", "null..70.5", "-1.5..null"
//	time constraint "1|:TIME:M", "|65:AGE:Y"
//
// A range bound of "null" leaves that side open. A time constraint carries
// exactly one side of the pipe for TIME; AGE may carry either or both.

var operandLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Null", Pattern: `\bnull\b`},
	{Name: "DotDot", Pattern: `\.\.`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Pipe", Pattern: `\|`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Ident", Pattern: `[A-Za-z]+`},
})

type rangeBound struct {
	Null  bool     `parser:"  @Null"`
	Value *float64 `parser:"| @Number"`
}

func (b *rangeBound) float() *float64 {
	if b == nil || b.Null {
		return nil
	}
	return b.Value
}

type rangeExpr struct {
	Lo *rangeBound `parser:"@@"`
	Hi *rangeBound `parser:"DotDot @@"`
}

type timeExpr struct {
	Left     *string `parser:"( @Number )?"`
	Right    *string `parser:"Pipe ( @Number )?"`
	Category string  `parser:"Colon @Ident"`
	Unit     string  `parser:"Colon @Ident"`
}

var (
	rangeParser = participle.MustBuild[rangeExpr](participle.Lexer(operandLexer))
	timeParser  = participle.MustBuild[timeExpr](participle.Lexer(operandLexer))
)

// ParseRange parses a "lo..hi" operand. At least one bound must be present
// and bounds must not be inverted.
func ParseRange(value string) (*Range, error) {
	expr, err := rangeParser.ParseString("", value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid range %q: %v", ErrMalformedDefinition, value, err)
	}
	r := &Range{Lo: expr.Lo.float(), Hi: expr.Hi.float()}
	if !r.Bounded() {
		return nil, fmt.Errorf("%w: range %q has no bounds", ErrMalformedDefinition, value)
	}
	if r.Lo != nil && r.Hi != nil && *r.Lo > *r.Hi {
		return nil, fmt.Errorf("%w: range %q has inverted bounds", ErrMalformedDefinition, value)
	}
	return r, nil
}

// timeConstraint is the decoded form of a rule's time field. Exactly one of
// Window and Age is set.
type timeConstraint struct {
	Window *TimeWindow
	Age    *Range
}

// parseTimeConstraint parses an "L|R:CAT:U" time operand.
func parseTimeConstraint(value string) (*timeConstraint, error) {
	expr, err := timeParser.ParseString("", value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid time constraint %q: %v", ErrMalformedDefinition, value, err)
	}

	switch expr.Category {
	case "TIME":
		if (expr.Left == nil) == (expr.Right == nil) {
			return nil, fmt.Errorf("%w: time constraint %q needs exactly one bound", ErrMalformedDefinition, value)
		}
		months, direction := 0, TimeBefore
		if expr.Left != nil {
			months, err = strconv.Atoi(*expr.Left)
		} else {
			direction = TimeAfter
			months, err = strconv.Atoi(*expr.Right)
		}
		if err != nil || months < 0 {
			return nil, fmt.Errorf("%w: time constraint %q has a bad month count", ErrMalformedDefinition, value)
		}
		return &timeConstraint{Window: &TimeWindow{Months: months, Direction: direction}}, nil

	case "AGE":
		age := &Range{}
		if expr.Left != nil {
			v, err := strconv.ParseFloat(*expr.Left, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: age constraint %q has a bad lower bound", ErrMalformedDefinition, value)
			}
			age.Lo = &v
		}
		if expr.Right != nil {
			v, err := strconv.ParseFloat(*expr.Right, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: age constraint %q has a bad upper bound", ErrMalformedDefinition, value)
			}
			age.Hi = &v
		}
		if !age.Bounded() {
			return nil, fmt.Errorf("%w: age constraint %q has no bounds", ErrMalformedDefinition, value)
		}
		return &timeConstraint{Age: age}, nil

	default:
		return nil, fmt.Errorf("%w: unknown time category %q", ErrMalformedDefinition, expr.Category)
	}
}
