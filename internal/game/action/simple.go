package action

import (
	"fmt"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/encounter"
)

// executeStance handles dash, disengage, and dodge: each sets a transient
// flag that lasts until the actor's next turn starts.
func (pl *Pipeline) executeStance(enc *encounter.Encounter, actor *encounter.Participant, req Request, res *Result) error {
	switch req.Type {
	case TypeDash:
		actor.Dashing = true
		eff := enc.EffectiveStats(actor)
		res.event(EventStance, fmt.Sprintf("%s dashes, doubling movement to %d ft this turn.",
			actor.Name, actor.MovementBudget(eff.Speed)))
	case TypeDisengage:
		actor.Disengaged = true
		res.event(EventStance, fmt.Sprintf("%s disengages and provokes no opportunity attacks this turn.", actor.Name))
	case TypeDodge:
		actor.Dodging = true
		res.event(EventStance, fmt.Sprintf("%s dodges; attacks against them have disadvantage until their next turn.", actor.Name))
	}
	return nil
}

// executeSimple handles the remaining vocabulary: help, hide, ready,
// use-object, improvise, and custom. These consume the action and produce a
// narrative result; help and hide also leave a marker condition behind.
func (pl *Pipeline) executeSimple(enc *encounter.Encounter, actor *encounter.Participant, req Request, res *Result) error {
	switch req.Type {
	case TypeHelp:
		if req.Target == "" {
			return errors.Validationf("help requires a target")
		}
		target, err := enc.Find(req.Target)
		if err != nil {
			return err
		}
		if target.IsDead() {
			return errors.RuleViolationf("target %q is already dead", target.ID)
		}
		helped := condition.Custom("helped")
		if err := enc.Conditions().Add(target.ID, helped, 1, 1, actor.Name); err != nil {
			return err
		}
		enc.RecordConditionApplied(helped)
		res.event(EventCondition, fmt.Sprintf("%s helps %s.", actor.Name, target.Name))
	case TypeHide:
		hidden := condition.Custom("hidden")
		if err := enc.Conditions().Add(actor.ID, hidden, 1, condition.DurationUntilRemoved, actor.Name); err != nil {
			return err
		}
		enc.RecordConditionApplied(hidden)
		res.event(EventCondition, fmt.Sprintf("%s hides.", actor.Name))
	case TypeReady:
		if req.Description == "" {
			return errors.Validationf("ready requires a description of the readied action")
		}
		res.event(EventNarrative, fmt.Sprintf("%s readies an action: %s.", actor.Name, req.Description))
	case TypeUseObject:
		if req.Description == "" {
			return errors.Validationf("use-object requires a description of the object")
		}
		res.event(EventNarrative, fmt.Sprintf("%s uses %s.", actor.Name, req.Description))
	case TypeImprovise, TypeCustom:
		if req.Description == "" {
			return errors.Validationf("%s requires a description", req.Type)
		}
		res.event(EventNarrative, fmt.Sprintf("%s improvises: %s.", actor.Name, req.Description))
	}
	return nil
}
