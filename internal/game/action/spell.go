package action

import (
	"fmt"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/dice"
	"github.com/gridforge/skirmish/internal/game/encounter"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

// executeSpell resolves a cast-spell request. The request reaches this code
// only through the explicit cast-spell token; no other field combination is
// ever reinterpreted as a spell (or a spell as movement).
//
// Single-target spells name a target and validate range from the caster.
// Area spells name a shape and an origin; membership is delegated to the
// geometry engine. Saves resolve per target, with cover granting its bonus
// to reflex-type saves only. The declared slot is validated before any
// mutation and expended only on success.
func (pl *Pipeline) executeSpell(enc *encounter.Encounter, actor *encounter.Participant, req Request, res *Result) error {
	sp := req.Spell
	if sp == nil {
		return errors.Validationf("cast-spell requires spell parameters")
	}
	if sp.Name == "" {
		return errors.Validationf("cast-spell requires a spell name")
	}
	if sp.SlotLevel > 0 && actor.SpellSlots[sp.SlotLevel] <= 0 {
		return errors.RuleViolationf("participant %q has no level-%d spell slot remaining", actor.ID, sp.SlotLevel)
	}

	var expr *dice.Expression
	if sp.DamageExpr != "" {
		parsed, err := dice.Parse(sp.DamageExpr)
		if err != nil {
			return errors.Validationf("bad damage expression %q: %v", sp.DamageExpr, err)
		}
		expr = &parsed
	}
	var healExpr *dice.Expression
	if sp.HealExpr != "" {
		parsed, err := dice.Parse(sp.HealExpr)
		if err != nil {
			return errors.Validationf("bad heal expression %q: %v", sp.HealExpr, err)
		}
		healExpr = &parsed
	}

	var condKind condition.Kind
	if sp.Condition != "" {
		condKind = condition.Kind(sp.Condition)
		if !condKind.Valid() {
			condKind = condition.Custom(sp.Condition)
		}
	}

	rules := enc.Rules()
	var targets []*encounter.Participant
	var cells []geometry.Point

	if sp.Shape == "" {
		// Single target.
		if req.Target == "" {
			return errors.Validationf("a single-target spell requires a target")
		}
		target, err := enc.Find(req.Target)
		if err != nil {
			return err
		}
		if target.IsDead() {
			return errors.RuleViolationf("target %q is already dead", target.ID)
		}
		if sp.RangeFeet > 0 {
			dist := geometry.Distance(actor.Position, target.Position, rules.DistanceMode, rules.CellSizeFeet)
			if dist > float64(sp.RangeFeet) {
				return errors.RuleViolationf("target %q is out of range", target.ID).
					WithMeta("distance_feet", dist).
					WithMeta("range_feet", sp.RangeFeet)
			}
		}
		targets = []*encounter.Participant{target}
	} else {
		shape, err := geometry.ParseShape(sp.Shape)
		if err != nil {
			return errors.Validationf("bad spell shape: %v", err)
		}
		if sp.Origin == nil {
			return errors.Validationf("an area spell requires an origin")
		}
		if sp.RangeFeet > 0 {
			dist := geometry.Distance(actor.Position, *sp.Origin, rules.DistanceMode, rules.CellSizeFeet)
			if dist > float64(sp.RangeFeet) {
				return errors.RuleViolationf("origin %s is out of range", sp.Origin).
					WithMeta("distance_feet", dist).
					WithMeta("range_feet", sp.RangeFeet)
			}
		}
		var direction geometry.Point
		if sp.Direction != nil {
			direction = *sp.Direction
		}
		cells, err = geometry.PointsInShape(*sp.Origin, shape, sp.SizeFeet, direction, enc.Terrain(), rules.CellSizeFeet)
		if err != nil {
			return errors.Validationf("bad area parameters: %v", err)
		}
		inArea := make(map[geometry.Point]bool, len(cells))
		for _, c := range cells {
			inArea[c] = true
		}
		for _, p := range enc.Participants() {
			if !p.IsDead() && inArea[p.Position] {
				targets = append(targets, p)
			}
		}
	}

	// Validation complete; expend the slot and resolve.
	if sp.SlotLevel > 0 {
		actor.SpellSlots[sp.SlotLevel]--
	}

	out := &SpellOutcome{
		Name:          sp.Name,
		SlotLevel:     sp.SlotLevel,
		SlotsLeft:     actor.SpellSlots[sp.SlotLevel],
		AffectedCells: cells,
	}
	res.event(EventNarrative, fmt.Sprintf("%s casts %s.", actor.Name, sp.Name))

	for _, target := range targets {
		st := SpellTarget{ID: target.ID}
		effTarget := enc.EffectiveStats(target)

		saved := false
		if sp.SaveType != "" {
			save := rollSave(enc, target, effTarget, sp, req.Overrides.SaveRolls)
			st.Save = save
			saved = save.Success
			outcome := "fails"
			if saved {
				outcome = "succeeds on"
			}
			res.event(EventSave, fmt.Sprintf("%s %s a %s save against %s (%d vs DC %d).",
				target.Name, outcome, sp.SaveType, sp.Name, save.Total, save.DC))
		}

		if expr != nil {
			applyDamage := !saved || sp.HalfOnSave
			if applyDamage {
				dmg := dice.Roll(*expr, enc.Roller().Source()).Total()
				if saved {
					dmg /= 2
				}
				hpLost, dropped := target.ApplyDamage(dmg, sp.DamageType, effTarget.MaxHP)
				st.Damage = hpLost
				enc.RecordDamage(actor.ID, hpLost)
				res.event(EventDamage, fmt.Sprintf("%s takes %d damage from %s (%d HP remaining).",
					target.Name, hpLost, sp.Name, target.HP))
				if dropped {
					st.Down = true
					if enc.HandleZeroHP(target, sp.Name) {
						st.Dead = true
						res.event(EventDeath, fmt.Sprintf("%s is slain by %s.", target.Name, sp.Name))
					} else {
						res.event(EventCondition, fmt.Sprintf("%s falls unconscious.", target.Name))
					}
				}
			}
		}

		if healExpr != nil {
			amount := dice.Roll(*healExpr, enc.Roller().Source()).Total()
			healed := enc.ApplyHealing(target, amount)
			st.Healed = healed
			if healed > 0 {
				enc.RecordHealing(actor.ID, healed)
				res.event(EventHealing, fmt.Sprintf("%s regains %d HP from %s (%d HP).",
					target.Name, healed, sp.Name, target.HP))
			}
		}

		if condKind != "" && !saved && !target.IsDead() {
			duration := condition.DurationUntilRemoved
			if sp.ConditionRounds > 0 {
				duration = sp.ConditionRounds
			}
			if err := enc.Conditions().Add(target.ID, condKind, 1, duration, sp.Name); err != nil {
				return err
			}
			enc.RecordConditionApplied(condKind)
			st.Condition = string(condKind)
			res.event(EventCondition, fmt.Sprintf("%s is %s by %s.", target.Name, condKind.Label(), sp.Name))
			if enc.SettleLethalConditions(target) {
				st.Dead = true
				res.event(EventDeath, fmt.Sprintf("%s dies of %s.", target.Name, condKind.Label()))
			}
		}

		st.HP = target.HP
		out.Targets = append(out.Targets, st)
	}

	res.Spell = out
	return nil
}

// rollSave resolves one saving throw, honoring auto-fail conditions,
// save disadvantage, pinned rolls, and the cover bonus for reflex-type
// saves.
func rollSave(enc *encounter.Encounter, target *encounter.Participant, eff condition.EffectiveStats, sp *SpellParams, pins map[string]int) *SaveOutcome {
	save := &SaveOutcome{Type: sp.SaveType, DC: sp.SaveDC}
	if eff.AutoFails(sp.SaveType) {
		save.AutoFailed = true
		return save
	}

	mode := dice.Combine(false, eff.SaveDisadvantage)
	var roll dice.D20Roll
	if pin, ok := pins[target.ID]; ok {
		roll = dice.OverrideD20(pin, mode)
	} else {
		roll = enc.Roller().D20(mode)
	}
	save.Roll = &roll

	// Cover helps a target duck an area effect, so it applies to
	// reflex-type saves only.
	if condition.ReflexSave(sp.SaveType) {
		save.CoverBonus = target.Cover.SaveBonus()
	}
	save.Total = roll.Kept + save.CoverBonus
	save.Success = save.Total >= sp.SaveDC
	return save
}
