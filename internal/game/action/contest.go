package action

import (
	"fmt"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/dice"
	"github.com/gridforge/skirmish/internal/game/encounter"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

// executeContest resolves grapple and shove as a contested check: the
// actor's check total against the target's defensive check total, ties to
// the defender. Success applies the grappled condition, knocks the target
// prone, or pushes it one cell directly away, respecting terrain bounds and
// occupied cells.
func (pl *Pipeline) executeContest(enc *encounter.Encounter, actor *encounter.Participant, req Request, res *Result) error {
	if req.Target == "" {
		return errors.Validationf("%s requires a target", req.Type)
	}
	target, err := enc.Find(req.Target)
	if err != nil {
		return err
	}
	if target.ID == actor.ID {
		return errors.Validationf("%s cannot target the actor itself", req.Type)
	}
	if target.IsDead() || target.IsDown() {
		return errors.RuleViolationf("target %q is down", target.ID)
	}
	if !geometry.Adjacent(actor.Position, target.Position) {
		return errors.RuleViolationf("%s requires an adjacent target", req.Type).
			WithMeta("actor_position", actor.Position.String()).
			WithMeta("target_position", target.Position.String())
	}

	shove := req.Shove
	if req.Type == TypeShove && shove == "" {
		shove = ShoveProne
	}
	if req.Type == TypeShove && shove != ShoveProne && shove != ShovePush {
		return errors.Validationf("unknown shove mode %q", shove)
	}

	// Push destination is validated before any roll so a blocked push fails
	// the request, not the contest.
	var pushTo *geometry.Point
	if req.Type == TypeShove && shove == ShovePush {
		dest := pushDestination(actor.Position, target.Position)
		if !enc.Terrain().InBounds(dest) || !enc.Terrain().Passable(dest) || enc.Occupied(target.ID)[dest] {
			return errors.RuleViolationf("cannot push %q toward %s", target.ID, dest)
		}
		pushTo = &dest
	}

	effActor := enc.EffectiveStats(actor)
	effTarget := enc.EffectiveStats(target)

	actorRoll := contestRoll(enc, effActor.CheckDisadvantage, req.Overrides.CheckRoll)
	targetRoll := contestRoll(enc, effTarget.CheckDisadvantage, req.Overrides.TargetCheckRoll)

	out := &ContestOutcome{
		Target:      target.ID,
		ActorRoll:   actorRoll,
		TargetRoll:  targetRoll,
		ActorTotal:  actorRoll.Kept + actor.CheckBonus,
		TargetTotal: targetRoll.Kept + target.CheckBonus,
	}
	out.Success = out.ActorTotal > out.TargetTotal

	if !out.Success {
		res.event(EventNarrative, fmt.Sprintf("%s tries to %s %s and fails (%d vs %d).",
			actor.Name, req.Type, target.Name, out.ActorTotal, out.TargetTotal))
		res.Contest = out
		return nil
	}

	switch {
	case req.Type == TypeGrapple:
		if err := enc.Conditions().Add(target.ID, condition.Grappled, 1, condition.DurationUntilRemoved, actor.Name); err != nil {
			return err
		}
		enc.RecordConditionApplied(condition.Grappled)
		out.Applied = string(condition.Grappled)
		res.event(EventCondition, fmt.Sprintf("%s grapples %s (%d vs %d).",
			actor.Name, target.Name, out.ActorTotal, out.TargetTotal))
	case shove == ShoveProne:
		if err := enc.Conditions().Add(target.ID, condition.Prone, 1, condition.DurationUntilRemoved, actor.Name); err != nil {
			return err
		}
		enc.RecordConditionApplied(condition.Prone)
		out.Applied = string(condition.Prone)
		res.event(EventCondition, fmt.Sprintf("%s shoves %s prone (%d vs %d).",
			actor.Name, target.Name, out.ActorTotal, out.TargetTotal))
	default:
		target.Position = *pushTo
		out.PushedTo = pushTo
		res.event(EventMovement, fmt.Sprintf("%s shoves %s back to %s (%d vs %d).",
			actor.Name, target.Name, pushTo, out.ActorTotal, out.TargetTotal))
	}

	res.Contest = out
	return nil
}

func contestRoll(enc *encounter.Encounter, disadvantage bool, pin *int) dice.D20Roll {
	mode := dice.Combine(false, disadvantage)
	if pin != nil {
		return dice.OverrideD20(*pin, mode)
	}
	return enc.Roller().D20(mode)
}

// pushDestination is one cell directly away from the actor, per axis.
func pushDestination(actor, target geometry.Point) geometry.Point {
	return geometry.Point{
		X: target.X + sign(target.X-actor.X),
		Y: target.Y + sign(target.Y-actor.Y),
		Z: target.Z,
	}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}
