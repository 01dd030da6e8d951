package action

import (
	"fmt"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/dice"
	"github.com/gridforge/skirmish/internal/game/encounter"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

// executeMove validates and applies a movement: the destination must be an
// open, unoccupied cell reachable within the remaining movement budget
// (terrain-aware, difficult terrain costs double). Leaving the reach of an
// adjacent hostile without having disengaged this turn provokes a reaction
// attack from that hostile, resolved as a free attack that consumes the
// hostile's reaction but none of the mover's economy.
func (pl *Pipeline) executeMove(enc *encounter.Encounter, actor *encounter.Participant, req Request, res *Result) error {
	if req.Destination == nil {
		return errors.Validationf("move requires a destination")
	}
	dest := *req.Destination
	terrain := enc.Terrain()

	if !terrain.InBounds(dest) {
		return errors.Validationf("destination %s is outside the battlefield", dest)
	}
	if !terrain.Passable(dest) {
		return errors.Validationf("destination %s is not passable", dest)
	}
	occupied := enc.Occupied(actor.ID)
	if occupied[dest] {
		return errors.Validationf("destination %s is occupied", dest)
	}

	eff := enc.EffectiveStats(actor)
	budget := actor.MovementBudget(eff.Speed) - actor.MovementUsed
	if budget <= 0 {
		return errors.RuleViolationf("participant %q has no movement remaining", actor.ID).
			WithMeta("speed", eff.Speed)
	}

	cost, ok := geometry.PathCost(actor.Position, dest, budget, terrain, occupied, enc.Rules().CellSizeFeet)
	if !ok {
		return errors.RuleViolationf("destination %s is not reachable within %d ft of movement", dest, budget).
			WithMeta("budget_feet", budget)
	}

	// Identify provoking hostiles before moving: adjacent now, out of reach
	// at the destination, able to react.
	var provokers []*encounter.Participant
	if !actor.Disengaged {
		for _, h := range enc.Participants() {
			if h.ID == actor.ID || !encounter.Hostile(actor.Faction, h.Faction) {
				continue
			}
			if h.IsDead() || h.IsDown() || h.ReactionUsed {
				continue
			}
			if enc.EffectiveStats(h).ReactionsPrevented {
				continue
			}
			if geometry.Adjacent(h.Position, actor.Position) && !geometry.Adjacent(h.Position, dest) {
				provokers = append(provokers, h)
			}
		}
	}

	from := actor.Position
	actor.Position = dest
	actor.MovementUsed += cost

	move := &MoveOutcome{
		From:          from,
		To:            dest,
		CostFeet:      cost,
		RemainingFeet: actor.MovementBudget(eff.Speed) - actor.MovementUsed,
	}
	res.event(EventMovement, fmt.Sprintf("%s moves from %s to %s (%d ft).",
		actor.Name, from, dest, cost))

	for _, h := range provokers {
		h.ReactionUsed = true
		res.event(EventOpportunity, fmt.Sprintf("%s provokes an opportunity attack from %s.",
			actor.Name, h.Name))
		expr, err := dice.Parse(h.DamageExpr)
		if err != nil {
			// A malformed profile downgrades the reaction to an unarmed swing.
			expr = dice.MustParse("1d4")
		}
		effH := enc.EffectiveStats(h)
		params := &attackParams{
			target:     actor,
			bonus:      h.AttackBonus,
			damageExpr: expr,
			damageType: h.DamageType,
			cover:      geometry.CoverNone,
			mode:       dice.Combine(false, effH.AttackDisadvantage || actor.Dodging),
			weapon:     "a reaction attack",
		}
		move.Provoked = append(move.Provoked, resolveAttack(enc, h, params, res, EventOpportunity))
		if actor.IsDown() {
			break
		}
	}

	res.Move = move
	return nil
}
