package dice

import "sort"

// Roll evaluates an Expression using the given Source and returns a RollResult.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: result.Total() == sum(result.Dice) + result.Modifier;
// dropped dice (keep-highest/lowest) are recorded in result.Dropped.
func Roll(expr Expression, src Source) RollResult {
	rolled := make([]int, expr.Count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}

	kept, dropped := rolled, []int(nil)
	switch {
	case expr.KeepHighest > 0:
		sorted := append([]int(nil), rolled...)
		sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
		kept, dropped = sorted[:expr.KeepHighest], sorted[expr.KeepHighest:]
	case expr.KeepLowest > 0:
		sorted := append([]int(nil), rolled...)
		sort.Ints(sorted)
		kept, dropped = sorted[:expr.KeepLowest], sorted[expr.KeepLowest:]
	}

	return RollResult{
		Expression: expr.Raw,
		Dice:       kept,
		Dropped:    dropped,
		Modifier:   expr.Modifier,
	}
}

// RollExpr parses expr and rolls it using src in a single call.
func RollExpr(expr string, src Source) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return Roll(e, src), nil
}

// RollD20 takes a d20 check roll under the given mode. Under Advantage or
// Disadvantage two dice are rolled and the higher or lower is kept.
//
// Precondition: src must be non-nil.
// Postcondition: result.Kept is one of result.Rolls; len(result.Rolls) is 1
// under Normal and 2 otherwise.
func RollD20(mode Mode, src Source) D20Roll {
	first := src.Intn(20) + 1
	if mode == Normal {
		return D20Roll{Rolls: []int{first}, Kept: first, Mode: mode}
	}
	second := src.Intn(20) + 1
	kept := first
	if mode == Advantage && second > first {
		kept = second
	}
	if mode == Disadvantage && second < first {
		kept = second
	}
	return D20Roll{Rolls: []int{first, second}, Kept: kept, Mode: mode}
}

// OverrideD20 returns a D20Roll representing a manually supplied face value.
// Used to make attack and save outcomes reproducible in tests and replays.
//
// Precondition: face must be in [1, 20].
func OverrideD20(face int, mode Mode) D20Roll {
	return D20Roll{Rolls: []int{face}, Kept: face, Mode: mode, Overridden: true}
}

// OverrideResult returns a RollResult representing a manually supplied total
// for the given expression, bypassing the Source entirely.
func OverrideResult(expr string, total int) RollResult {
	return RollResult{Expression: expr, Dice: []int{total}, Overridden: true}
}
