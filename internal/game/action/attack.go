package action

import (
	"fmt"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/dice"
	"github.com/gridforge/skirmish/internal/game/encounter"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

// attackParams is a fully validated attack, ready to resolve.
type attackParams struct {
	target     *encounter.Participant
	bonus      int
	damageExpr dice.Expression
	damageType string
	cover      geometry.CoverLevel
	mode       dice.Mode
	rollPin    *int
	damagePin  *int
	weapon     string
}

// validateAttack checks an attack without mutating anything.
func (pl *Pipeline) validateAttack(enc *encounter.Encounter, actor *encounter.Participant, req Request) (*attackParams, error) {
	if req.Target == "" {
		return nil, errors.Validationf("attack requires a target")
	}
	target, err := enc.Find(req.Target)
	if err != nil {
		return nil, err
	}
	if target.IsDead() {
		return nil, errors.RuleViolationf("target %q is already dead", target.ID)
	}

	los := geometry.LineOfSight(actor.Position, target.Position, enc.Terrain(), nil)
	cover := los.Cover
	if target.Cover > cover {
		cover = target.Cover
	}
	if los.Blocked || cover == geometry.CoverFull {
		return nil, errors.RuleViolationf("no line of attack from %s to %s", actor.Position, target.Position).
			WithMeta("cover", cover.String())
	}

	exprStr := req.DamageExpr
	if exprStr == "" {
		exprStr = actor.DamageExpr
	}
	expr, err := dice.Parse(exprStr)
	if err != nil {
		return nil, errors.Validationf("bad damage expression %q: %v", exprStr, err)
	}
	damageType := req.DamageType
	if damageType == "" {
		damageType = actor.DamageType
	}

	bonus := actor.AttackBonus
	if req.AttackBonus != nil {
		bonus = *req.AttackBonus
	}

	effActor := enc.EffectiveStats(actor)
	effTarget := enc.EffectiveStats(target)
	adv := req.Advantage || effTarget.IncomingAdvantage
	dis := req.Disadvantage || effActor.AttackDisadvantage || target.Dodging

	weapon := req.WeaponName
	if weapon == "" {
		weapon = "weapon"
	}

	return &attackParams{
		target:     target,
		bonus:      bonus,
		damageExpr: expr,
		damageType: damageType,
		cover:      cover,
		mode:       dice.Combine(adv, dis),
		rollPin:    req.Overrides.AttackRoll,
		damagePin:  req.Overrides.DamageTotal,
		weapon:     weapon,
	}, nil
}

// resolveAttack rolls and applies one prepared attack. Shared by the attack
// action and reaction attacks.
//
// Postcondition: tallies and target HP are updated; on a drop to 0 HP the
// configured death policy has been applied.
func resolveAttack(enc *encounter.Encounter, attacker *encounter.Participant, p *attackParams, res *Result, kind EventKind) *AttackOutcome {
	target := p.target
	effTarget := enc.EffectiveStats(target)
	targetAC := effTarget.AC + p.cover.ACBonus()

	var roll dice.D20Roll
	if p.rollPin != nil {
		roll = dice.OverrideD20(*p.rollPin, p.mode)
	} else {
		roll = enc.Roller().D20(p.mode)
	}
	natural := roll.Kept

	out := &AttackOutcome{
		Attacker:    attacker.ID,
		Target:      target.ID,
		Roll:        roll,
		Natural:     natural,
		AttackTotal: natural + p.bonus,
		TargetAC:    targetAC,
		Cover:       p.cover,
	}

	switch {
	case natural == 20:
		out.Hit = true
		out.Critical = true
	case natural == 1:
		out.Hit = false
	default:
		out.Hit = out.AttackTotal >= targetAC
	}
	enc.RecordAttack(attacker.ID, out.Hit)

	if !out.Hit {
		res.event(kind, fmt.Sprintf("%s attacks %s with %s and misses (%d vs AC %d).",
			attacker.Name, target.Name, p.weapon, out.AttackTotal, targetAC))
		return out
	}

	var dmg dice.RollResult
	if p.damagePin != nil {
		dmg = dice.OverrideResult(p.damageExpr.Raw, *p.damagePin)
	} else {
		dmg = dice.Roll(p.damageExpr, enc.Roller().Source())
		if out.Critical {
			// A critical hit doubles the damage dice, not the modifier.
			bonusDice := p.damageExpr
			bonusDice.Modifier = 0
			dmg.Dice = append(dmg.Dice, dice.Roll(bonusDice, enc.Roller().Source()).Dice...)
		}
	}
	out.DamageRoll = &dmg

	hpLost, dropped := target.ApplyDamage(dmg.Total(), p.damageType, effTarget.MaxHP)
	out.Damage = hpLost
	out.TargetHP = target.HP
	enc.RecordDamage(attacker.ID, hpLost)

	verb := "hits"
	if out.Critical {
		verb = "critically hits"
	}
	res.event(kind, fmt.Sprintf("%s %s %s with %s (%d vs AC %d).",
		attacker.Name, verb, target.Name, p.weapon, out.AttackTotal, targetAC))
	res.event(EventDamage, fmt.Sprintf("%s takes %d damage (%d HP remaining).",
		target.Name, hpLost, target.HP))

	if dropped {
		out.TargetDown = true
		if enc.HandleZeroHP(target, attacker.Name) {
			out.TargetDead = true
			res.event(EventDeath, fmt.Sprintf("%s is slain.", target.Name))
		} else {
			res.event(EventCondition, fmt.Sprintf("%s falls %s and %s.",
				target.Name, condition.Unconscious, condition.Dying))
		}
	}
	return out
}

func (pl *Pipeline) executeAttack(enc *encounter.Encounter, actor *encounter.Participant, req Request, res *Result) error {
	params, err := pl.validateAttack(enc, actor, req)
	if err != nil {
		return err
	}
	res.Attack = resolveAttack(enc, actor, params, res, EventAttack)
	return nil
}
