package condition

// BaseStats is the unmodified statistic block fed into the fold.
type BaseStats struct {
	MaxHP int
	Speed int
	AC    int
}

// EffectiveStats is the projection of BaseStats through a target's active
// conditions. It is always recomputed on demand and never stored, so it can
// never go stale.
type EffectiveStats struct {
	MaxHP int
	Speed int
	AC    int

	// Worst-case-wins flags: one source is sufficient regardless of count.
	AttackDisadvantage bool
	CheckDisadvantage  bool
	SaveDisadvantage   bool
	IncomingAdvantage  bool

	// AutoFailSaves are save categories the target fails without rolling.
	AutoFailSaves map[string]bool

	// ActionsPrevented / ReactionsPrevented block the action economy outright.
	ActionsPrevented   bool
	ReactionsPrevented bool

	// Dead is set when a condition is itself lethal (exhaustion at the
	// maximum level).
	Dead bool
}

// AutoFails reports whether the named save category is failed automatically.
// The lookup normalizes the label, so "dex", "dexterity", and "reflex" all
// address the same entry.
func (e EffectiveStats) AutoFails(save string) bool {
	return e.AutoFailSaves[NormalizeSave(save)]
}

// Compute folds base through every condition in active and returns the
// resulting effective stats.
//
// Order of application: multiplicative caps (halved max HP, halved speed)
// are applied before flat reductions (speed zero floors everything), and the
// boolean flags are worst-case-wins. maxExhaustion is the lethal level.
//
// Postcondition: MaxHP >= 1 unless Dead; Speed >= 0. The function is pure:
// identical inputs always produce identical outputs.
func Compute(base BaseStats, active []*ActiveCondition, maxExhaustion int) EffectiveStats {
	out := EffectiveStats{
		MaxHP:         base.MaxHP,
		Speed:         base.Speed,
		AC:            base.AC,
		AutoFailSaves: make(map[string]bool),
	}

	halveHP := false
	halveSpeed := false
	speedZero := false

	for _, ac := range active {
		def := ac.Def
		if def.SpeedZero {
			speedZero = true
		}
		if def.SpeedHalved {
			halveSpeed = true
		}
		if def.AttackDisadvantage {
			out.AttackDisadvantage = true
		}
		if def.CheckDisadvantage {
			out.CheckDisadvantage = true
		}
		if def.SaveDisadvantage {
			out.SaveDisadvantage = true
		}
		if def.IncomingAdvantage {
			out.IncomingAdvantage = true
		}
		if def.PreventsActions {
			out.ActionsPrevented = true
		}
		if def.PreventsReactions {
			out.ReactionsPrevented = true
		}
		for _, save := range def.AutoFailSaves {
			out.AutoFailSaves[NormalizeSave(save)] = true
		}

		if ac.Kind == Exhaustion {
			level := ac.Severity
			if level >= 1 {
				out.CheckDisadvantage = true
			}
			if level >= 2 {
				halveSpeed = true
			}
			if level >= 3 {
				out.AttackDisadvantage = true
				out.SaveDisadvantage = true
			}
			if level >= 4 {
				halveHP = true
			}
			if level >= 5 {
				speedZero = true
			}
			if level >= maxExhaustion {
				out.Dead = true
			}
		}
	}

	// Multiplicative caps before flat modifiers.
	if halveHP {
		out.MaxHP /= 2
		if out.MaxHP < 1 {
			out.MaxHP = 1
		}
	}
	if halveSpeed {
		out.Speed /= 2
	}
	if speedZero {
		out.Speed = 0
	}

	return out
}
