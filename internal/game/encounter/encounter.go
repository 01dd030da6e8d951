// Package encounter owns live encounter state: the initiative-ordered
// participant list, the turn/round cursor, terrain, and the condition store
// attached to each encounter. A Registry manages encounter lifecycles and is
// safe for concurrent use; each Encounter serializes its own mutations
// through a single mutex held for the duration of one action.
package encounter

import (
	"sort"
	"sync"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/dice"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

// Lighting describes the ambient light over the battlefield.
type Lighting string

const (
	LightingBright Lighting = "bright"
	LightingDim    Lighting = "dim"
	LightingDark   Lighting = "dark"
)

// ParseLighting validates a lighting label, defaulting empty to bright.
func ParseLighting(s string) (Lighting, error) {
	switch Lighting(s) {
	case "":
		return LightingBright, nil
	case LightingBright, LightingDim, LightingDark:
		return Lighting(s), nil
	default:
		return "", errors.Validationf("unknown lighting %q", s)
	}
}

// State is the encounter lifecycle state.
type State int

const (
	StateActive State = iota
	StateEnded
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "ended"
}

// DeathPolicy selects what happens to a non-player participant at 0 HP.
// Player characters always use death saves regardless of policy.
type DeathPolicy string

const (
	// DeathPolicyInstant kills non-players outright at 0 HP.
	DeathPolicyInstant DeathPolicy = "instant"
	// DeathPolicySaves gives every participant the death-save sequence.
	DeathPolicySaves DeathPolicy = "death_saves"
)

// Rules carries the configurable rule knobs the encounter and action layers
// consult at resolution time.
type Rules struct {
	DeathPolicy   DeathPolicy
	CellSizeFeet  int
	DistanceMode  geometry.DistanceMode
	MaxExhaustion int
}

// DefaultRules returns the baseline ruleset: instant NPC death, 5-foot
// cells, stairstep diagonals, exhaustion lethal at level 6.
func DefaultRules() Rules {
	return Rules{
		DeathPolicy:   DeathPolicyInstant,
		CellSizeFeet:  5,
		DistanceMode:  geometry.GridStairstep,
		MaxExhaustion: 6,
	}
}

// Encounter is the live state of one battle. All mutating access goes
// through the embedded mutex; the action pipeline locks once per action so
// validation and mutation are atomic.
type Encounter struct {
	mu sync.Mutex

	id           string
	participants []*Participant
	round        int
	turnIndex    int
	terrain      *geometry.Terrain
	lighting     Lighting
	state        State
	conditions   *condition.Store
	rules        Rules
	roller       *dice.Roller

	nextOrder int
	outcome   string
	summary   *Summary

	// Per-participant tallies feeding the end-of-encounter summary.
	damageDealt  map[string]int
	damageHealed map[string]int
	hits         map[string]int
	attempts     map[string]int
	condApplied  map[string]int
}

// Lock acquires the encounter mutex. The action pipeline holds it across an
// entire action so a failed validation leaves the encounter untouched.
func (e *Encounter) Lock() { e.mu.Lock() }

// Unlock releases the encounter mutex.
func (e *Encounter) Unlock() { e.mu.Unlock() }

// ID returns the immutable encounter id.
func (e *Encounter) ID() string { return e.id }

// Round returns the current round number. Rounds start at 1.
func (e *Encounter) Round() int { return e.round }

// TurnIndex returns the cursor into the initiative order.
func (e *Encounter) TurnIndex() int { return e.turnIndex }

// State returns the lifecycle state.
func (e *Encounter) State() State { return e.state }

// Lighting returns the ambient lighting.
func (e *Encounter) Lighting() Lighting { return e.lighting }

// Terrain returns the battlefield grid. Callers must hold the lock to
// mutate cells.
func (e *Encounter) Terrain() *geometry.Terrain { return e.terrain }

// Conditions returns the encounter's condition store. Access is serialized
// by the encounter lock, not by the store itself.
func (e *Encounter) Conditions() *condition.Store { return e.conditions }

// Rules returns the rule knobs this encounter was created with.
func (e *Encounter) Rules() Rules { return e.rules }

// Roller returns the dice roller bound to this encounter.
func (e *Encounter) Roller() *dice.Roller { return e.roller }

// Summary returns the post-mortem summary, or nil while the encounter is
// still active.
func (e *Encounter) Summary() *Summary { return e.summary }

// Participants returns the initiative-ordered participant slice. The slice
// header is a copy, the pointers are live; callers must hold the lock while
// reading participant fields mid-combat.
func (e *Encounter) Participants() []*Participant {
	out := make([]*Participant, len(e.participants))
	copy(out, e.participants)
	return out
}

// Current returns the participant whose turn it is.
//
// Precondition: the encounter has at least one participant.
func (e *Encounter) Current() *Participant {
	return e.participants[e.turnIndex]
}

// Find resolves a participant by id first, then by display name.
// Postcondition: returns errors.KindNotFound when nothing matches.
func (e *Encounter) Find(ref string) (*Participant, error) {
	for _, p := range e.participants {
		if p.ID == ref {
			return p, nil
		}
	}
	for _, p := range e.participants {
		if p.Name == ref {
			return p, nil
		}
	}
	return nil, errors.NotFoundf("participant %q not found in encounter %s", ref, e.id).
		WithMeta("encounter_id", e.id)
}

// Occupied returns the set of cells occupied by participants other than
// exceptID. Dead participants still occupy their cell until removed.
func (e *Encounter) Occupied(exceptID string) map[geometry.Point]bool {
	occ := make(map[geometry.Point]bool, len(e.participants))
	for _, p := range e.participants {
		if p.ID == exceptID {
			continue
		}
		occ[p.Position] = true
	}
	return occ
}

// EffectiveStats folds the participant's base stats through its active
// conditions under this encounter's rules.
func (e *Encounter) EffectiveStats(p *Participant) condition.EffectiveStats {
	return condition.Compute(p.BaseStats(), e.conditions.Query(p.ID), e.rules.MaxExhaustion)
}

// SettleLethalConditions marks p dead when its folded conditions are
// lethal, currently exhaustion at the configured maximum level. The
// participant's conditions are cleared the same way an instant kill
// clears them.
//
// Postcondition: Returns true when p died as a result of this call.
func (e *Encounter) SettleLethalConditions(p *Participant) bool {
	if p.Dead || !e.EffectiveStats(p).Dead {
		return false
	}
	p.Dead = true
	p.HP = 0
	p.TempHP = 0
	e.conditions.RemoveAll(p.ID)
	return true
}

// HandleZeroHP applies the configured 0-HP policy after a participant drops:
// non-players die outright under DeathPolicyInstant; everyone else becomes
// unconscious and dying with fresh death-save counters.
//
// Postcondition: Returns true when the participant died outright.
func (e *Encounter) HandleZeroHP(p *Participant, source string) bool {
	if e.rules.DeathPolicy == DeathPolicyInstant && !p.Player {
		p.Dead = true
		e.conditions.RemoveAll(p.ID)
		return true
	}
	p.resetDeathSaves()
	e.conditions.Remove(p.ID, condition.Stable)
	_ = e.conditions.Add(p.ID, condition.Unconscious, 1, condition.DurationUntilRemoved, source)
	_ = e.conditions.Add(p.ID, condition.Dying, 1, condition.DurationUntilRemoved, source)
	e.recordCondition(condition.Unconscious)
	e.recordCondition(condition.Dying)
	return false
}

// ApplyHealing restores HP to p, clamped to its effective maximum. Healing
// that brings a downed participant above 0 clears the dying state in the
// same step: unconscious, dying, and stable go together and the death-save
// counters reset.
//
// Postcondition: Returns the HP actually restored; always 0 for the dead.
func (e *Encounter) ApplyHealing(p *Participant, amount int) int {
	wasDown := p.IsDown()
	healed := p.Heal(amount, e.EffectiveStats(p).MaxHP)
	if healed > 0 && wasDown {
		p.resetDeathSaves()
		e.conditions.Remove(p.ID, condition.Dying)
		e.conditions.Remove(p.ID, condition.Unconscious)
		e.conditions.Remove(p.ID, condition.Stable)
	}
	return healed
}

// RecordDamage adds to the actor's damage-dealt tally.
func (e *Encounter) RecordDamage(actorID string, amount int) {
	e.damageDealt[actorID] += amount
}

// RecordHealing adds to the actor's healing tally.
func (e *Encounter) RecordHealing(actorID string, amount int) {
	e.damageHealed[actorID] += amount
}

// RecordAttack tallies one attack attempt and, when hit is true, one hit.
func (e *Encounter) RecordAttack(actorID string, hit bool) {
	e.attempts[actorID]++
	if hit {
		e.hits[actorID]++
	}
}

// RecordConditionApplied tallies a condition application for the summary.
func (e *Encounter) RecordConditionApplied(kind condition.Kind) {
	e.recordCondition(kind)
}

func (e *Encounter) recordCondition(kind condition.Kind) {
	e.condApplied[kind.Label()]++
}

// insert places p into the initiative order. Ties break on initiative
// modifier descending, then declared order ascending; the order is never
// re-randomized mid-encounter.
func (e *Encounter) insert(p *Participant) {
	cur := e.currentID()
	p.order = e.nextOrder
	e.nextOrder++
	e.participants = append(e.participants, p)
	sort.SliceStable(e.participants, func(i, j int) bool {
		a, b := e.participants[i], e.participants[j]
		if a.Initiative != b.Initiative {
			return a.Initiative > b.Initiative
		}
		if a.InitiativeMod != b.InitiativeMod {
			return a.InitiativeMod > b.InitiativeMod
		}
		return a.order < b.order
	})
	// Keep the cursor on the same participant it pointed at before the
	// insert shifted positions.
	if e.round > 0 && cur != "" {
		for i, q := range e.participants {
			if q.ID == cur {
				e.turnIndex = i
				return
			}
		}
	}
}

func (e *Encounter) currentID() string {
	if e.turnIndex < len(e.participants) {
		return e.participants[e.turnIndex].ID
	}
	return ""
}
