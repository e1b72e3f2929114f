package dice

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// exprPattern matches "d6", "2d6", "2d6+3", "4d8-2" and "4d6kh3".
var exprPattern = regexp.MustCompile(`^(\d*)d(\d+)(?:kh(\d+))?([+-]\d+)?$`)

// Expression is a parsed dice expression ready to be rolled.
//
// Invariant: Count >= 1 and Sides >= 2 after a successful Parse.
type Expression struct {
	Raw         string
	Count       int
	Sides       int
	Modifier    int
	KeepHighest int // keep only the N highest dice when > 0
}

// Min returns the smallest total the expression can produce.
func (e Expression) Min() int {
	n := e.Count
	if e.KeepHighest > 0 {
		n = e.KeepHighest
	}
	return n + e.Modifier
}

// Max returns the largest total the expression can produce.
func (e Expression) Max() int {
	n := e.Count
	if e.KeepHighest > 0 {
		n = e.KeepHighest
	}
	return n*e.Sides + e.Modifier
}

// Parse parses a dice expression string.
//
// Postcondition: Returns a valid Expression or a descriptive error.
func Parse(expr string) (Expression, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}
	m := exprPattern.FindStringSubmatch(s)
	if m == nil {
		return Expression{}, fmt.Errorf("dice: malformed expression %q", expr)
	}

	e := Expression{Raw: expr, Count: 1}
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q", expr)
		}
		e.Count = n
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < 2 {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: must be >= 2", expr)
	}
	e.Sides = sides
	if m[3] != "" {
		kh, err := strconv.Atoi(m[3])
		if err != nil || kh <= 0 || kh >= e.Count {
			return Expression{}, fmt.Errorf("dice: kh value in %q must be > 0 and < count %d", expr, e.Count)
		}
		e.KeepHighest = kh
	}
	if m[4] != "" {
		mod, err := strconv.Atoi(m[4])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", expr, err)
		}
		e.Modifier = mod
	}
	return e, nil
}

// MustParse parses expr and panics on error. Intended for package-level values.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}

// RollResult holds the audit trail of one expression evaluation.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Total returns the sum of the kept dice plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String renders the roll as "2d6+3 → [4 5] +3 = 12".
func (r RollResult) String() string {
	return fmt.Sprintf("%s → %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}

// Roll evaluates expr with src.
//
// Precondition: expr came from Parse; src is non-nil.
func Roll(expr Expression, src Source) RollResult {
	rolled := make([]int, expr.Count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}
	if expr.KeepHighest > 0 {
		slices.Sort(rolled)
		slices.Reverse(rolled)
		rolled = rolled[:expr.KeepHighest]
	}
	return RollResult{Expression: expr.Raw, Dice: rolled, Modifier: expr.Modifier}
}

// RollExpr parses and rolls expr in one call.
func RollExpr(expr string, src Source) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return Roll(e, src), nil
}
