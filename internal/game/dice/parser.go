package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Expression represents a parsed dice expression ready to be rolled.
// Invariant: Count >= 1 and Sides >= 2 after a successful Parse.
type Expression struct {
	Raw         string // original input string
	Count       int    // number of dice
	Sides       int    // faces per die
	Modifier    int    // flat modifier (may be negative)
	KeepHighest int    // if > 0, keep only the N highest dice (e.g. 4d6kh3)
	KeepLowest  int    // if > 0, keep only the N lowest dice (e.g. 2d20kl1)
}

var exprPattern = regexp.MustCompile(`^(\d*)d(\d+)(?:k([hl])(\d+))?([+-]\d+)?$`)

// Parse parses a dice expression string into an Expression.
// Supported forms: "d20", "2d6", "2d6+3", "4d8-2", "4d6kh3", "2d20kl1+5".
//
// Precondition: expr must be non-empty.
// Postcondition: Returns a valid Expression or a descriptive error.
func Parse(expr string) (Expression, error) {
	if expr == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}
	s := strings.ToLower(strings.ReplaceAll(expr, " ", ""))
	m := exprPattern.FindStringSubmatch(s)
	if m == nil {
		return Expression{}, fmt.Errorf("dice: malformed expression %q", expr)
	}

	count := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q", expr)
		}
		count = n
	}

	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < 2 {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: must be >= 2", expr)
	}

	out := Expression{Raw: expr, Count: count, Sides: sides}

	if m[3] != "" {
		keep, err := strconv.Atoi(m[4])
		if err != nil || keep < 1 || keep >= count {
			return Expression{}, fmt.Errorf("dice: keep value in %q must be >= 1 and < count %d", expr, count)
		}
		if m[3] == "h" {
			out.KeepHighest = keep
		} else {
			out.KeepLowest = keep
		}
	}

	if m[5] != "" {
		mod, err := strconv.Atoi(m[5])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", expr, err)
		}
		out.Modifier = mod
	}

	return out, nil
}

// MustParse parses expr and panics on error. Useful for package-level constants.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}
