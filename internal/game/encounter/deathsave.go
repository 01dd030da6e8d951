package encounter

import (
	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/dice"
)

// DeathSaveOutcome classifies the aftermath of one death save.
type DeathSaveOutcome string

const (
	// DeathSaveSuccess added a success; the participant is still dying.
	DeathSaveSuccess DeathSaveOutcome = "success"
	// DeathSaveFailure added one or two failures; still dying.
	DeathSaveFailure DeathSaveOutcome = "failure"
	// DeathSaveRevived is the natural 20: back up at 1 HP, unconscious and
	// dying cleared together.
	DeathSaveRevived DeathSaveOutcome = "revived"
	// DeathSaveStable is the third success: unconscious but no longer dying.
	DeathSaveStable DeathSaveOutcome = "stable"
	// DeathSaveDead is the third failure.
	DeathSaveDead DeathSaveOutcome = "dead"
)

// DeathSaveResult reports one resolved death save.
type DeathSaveResult struct {
	Participant string           `json:"participant"`
	Roll        dice.D20Roll     `json:"roll"`
	Successes   int              `json:"successes"`
	Failures    int              `json:"failures"`
	Outcome     DeathSaveOutcome `json:"outcome"`
}

// RollDeathSave resolves a death save for a dying participant. A manual
// override pins the d20 face for reproducible outcomes.
//
// Rules: natural 20 revives at 1 HP and clears unconscious and dying in the
// same step; natural 1 counts as two failures; 10 or higher is a success;
// three successes stabilize; three failures kill.
//
// Precondition: the encounter lock is not held by the caller.
// Postcondition: Fails with a rule violation if the participant is not
// dying; the failure mutates nothing.
func (e *Encounter) RollDeathSave(ref string, override *int) (*DeathSaveResult, error) {
	e.Lock()
	defer e.Unlock()

	if e.state == StateEnded {
		return nil, errors.Conflictf("encounter %q has ended", e.id)
	}
	p, err := e.Find(ref)
	if err != nil {
		return nil, err
	}
	if p.Dead {
		return nil, errors.RuleViolationf("participant %q is dead and cannot roll death saves", p.ID)
	}
	if !dueDeathSave(e, p) {
		return nil, errors.RuleViolationf("participant %q is not dying", p.ID).
			WithMeta("hp", p.HP)
	}

	var roll dice.D20Roll
	if override != nil {
		roll = dice.OverrideD20(*override, dice.Normal)
	} else {
		roll = e.roller.D20(dice.Normal)
	}

	res := &DeathSaveResult{Participant: p.ID, Roll: roll}
	switch {
	case roll.Kept == 20:
		p.HP = 1
		p.resetDeathSaves()
		e.conditions.Remove(p.ID, condition.Dying)
		e.conditions.Remove(p.ID, condition.Unconscious)
		res.Outcome = DeathSaveRevived
	case roll.Kept == 1:
		p.DeathSaveFailures += 2
		res.Outcome = DeathSaveFailure
	case roll.Kept >= 10:
		p.DeathSaveSuccesses++
		res.Outcome = DeathSaveSuccess
	default:
		p.DeathSaveFailures++
		res.Outcome = DeathSaveFailure
	}

	if res.Outcome == DeathSaveFailure && p.DeathSaveFailures >= 3 {
		p.Dead = true
		e.conditions.RemoveAll(p.ID)
		res.Outcome = DeathSaveDead
	}
	if res.Outcome == DeathSaveSuccess && p.DeathSaveSuccesses >= 3 {
		p.resetDeathSaves()
		e.conditions.Remove(p.ID, condition.Dying)
		_ = e.conditions.Add(p.ID, condition.Stable, 1, condition.DurationUntilRemoved, "death saves")
		res.Outcome = DeathSaveStable
		res.Successes = 3
	}

	if res.Outcome == DeathSaveSuccess || res.Outcome == DeathSaveFailure {
		res.Successes = p.DeathSaveSuccesses
		res.Failures = p.DeathSaveFailures
	}
	if res.Outcome == DeathSaveDead {
		res.Failures = p.DeathSaveFailures
	}
	return res, nil
}
