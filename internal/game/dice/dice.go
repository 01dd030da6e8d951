// Package dice provides the randomness abstraction and roll-result types for
// the skirmish engine. Every roll-driven action in the engine goes through
// this package; manual overrides make action outcomes reproducible in tests.
package dice

import "fmt"

// Mode selects how a d20 roll is taken.
type Mode int

const (
	// Normal rolls a single d20.
	Normal Mode = iota
	// Advantage rolls two d20 and keeps the higher.
	Advantage
	// Disadvantage rolls two d20 and keeps the lower.
	Disadvantage
)

// String returns the human-readable mode label.
func (m Mode) String() string {
	switch m {
	case Advantage:
		return "advantage"
	case Disadvantage:
		return "disadvantage"
	default:
		return "normal"
	}
}

// Combine reconciles advantage and disadvantage sources into a single Mode.
// Any one source of each is sufficient; simultaneous advantage and
// disadvantage cancel to a normal roll regardless of count.
//
// Postcondition: Returns Normal when adv == dis.
func Combine(adv, dis bool) Mode {
	switch {
	case adv && !dis:
		return Advantage
	case dis && !adv:
		return Disadvantage
	default:
		return Normal
	}
}

// RollResult holds the full audit trail for a single dice roll evaluation.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string // original expression string, e.g. "2d6+3"
	Dice       []int  // kept die results before modifier
	Dropped    []int  // die results dropped by keep-highest/lowest, if any
	Modifier   int    // flat modifier (may be negative)
	Overridden bool   // true when the result came from a manual override
}

// Total returns the sum of all kept die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String returns a human-readable audit string in the format:
//
//	"2d6+3 → [4 5] +3 = 12"
func (r RollResult) String() string {
	return fmt.Sprintf("%s → %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}

// D20Roll is the audit record of a single d20 check or attack roll.
type D20Roll struct {
	Rolls      []int // all dice rolled (two under advantage/disadvantage)
	Kept       int   // the die that counts, before modifiers
	Mode       Mode
	Overridden bool
}

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
