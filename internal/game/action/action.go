// Package action is the hub of the rules engine: it validates an incoming
// action request fully, then resolves it against the target encounter. The
// action vocabulary is a closed set of tokens with an explicit custom
// variant; requests are never reclassified from their parameters, so a
// spell cast can never be misrouted as movement.
package action

import (
	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/dice"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

// Type is one token from the closed action vocabulary.
type Type string

const (
	TypeAttack    Type = "attack"
	TypeCastSpell Type = "cast-spell"
	TypeDash      Type = "dash"
	TypeDisengage Type = "disengage"
	TypeDodge     Type = "dodge"
	TypeHelp      Type = "help"
	TypeHide      Type = "hide"
	TypeGrapple   Type = "grapple"
	TypeShove     Type = "shove"
	TypeMove      Type = "move"
	TypeReady     Type = "ready"
	TypeUseObject Type = "use-object"
	TypeImprovise Type = "improvise"
	TypeCustom    Type = "custom"
)

// ParseType matches a token against the closed vocabulary exactly. There is
// no inference from other request fields.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeAttack, TypeCastSpell, TypeDash, TypeDisengage, TypeDodge,
		TypeHelp, TypeHide, TypeGrapple, TypeShove, TypeMove, TypeReady,
		TypeUseObject, TypeImprovise, TypeCustom:
		return t, nil
	default:
		return "", errors.Validationf("unknown action type %q", s)
	}
}

// ConsumesAction reports whether the type spends the actor's action slot.
// Movement spends only the movement budget.
func (t Type) ConsumesAction() bool {
	return t != TypeMove
}

// Overrides pins otherwise-random rolls for reproducible outcomes. A nil
// field means roll normally.
type Overrides struct {
	// AttackRoll pins the d20 face of the attack roll.
	AttackRoll *int `json:"attack_roll,omitempty"`
	// DamageTotal pins the total damage dealt on a hit.
	DamageTotal *int `json:"damage_total,omitempty"`
	// CheckRoll and TargetCheckRoll pin the contested-check d20 faces.
	CheckRoll       *int `json:"check_roll,omitempty"`
	TargetCheckRoll *int `json:"target_check_roll,omitempty"`
	// SaveRolls pins save d20 faces per target id.
	SaveRolls map[string]int `json:"save_rolls,omitempty"`
}

// SpellParams carries everything a cast-spell request needs. A spell is
// either single-target (Target set on the request, Shape empty) or an area
// effect (Shape and Origin set).
type SpellParams struct {
	Name      string `json:"name"`
	SlotLevel int    `json:"slot_level"` // 0 casts without expending a slot
	RangeFeet int    `json:"range_feet"` // 0 skips range validation

	// Save resolution. Empty SaveType means the spell hits automatically.
	SaveType   string `json:"save_type,omitempty"`
	SaveDC     int    `json:"save_dc,omitempty"`
	HalfOnSave bool   `json:"half_on_save,omitempty"`

	// Area of effect. Empty Shape means single target.
	Shape     string          `json:"shape,omitempty"`
	SizeFeet  int             `json:"size_feet,omitempty"`
	Origin    *geometry.Point `json:"origin,omitempty"`
	Direction *geometry.Point `json:"direction,omitempty"`

	DamageExpr string `json:"damage_expr,omitempty"`
	DamageType string `json:"damage_type,omitempty"`

	// HealExpr restores HP to every target instead of (or alongside) damage.
	// Healing a downed target brings it back up and clears the dying state.
	HealExpr string `json:"heal_expr,omitempty"`

	// Condition is applied to targets that fail the save (or to all targets
	// when no save is required).
	Condition       string `json:"condition,omitempty"`
	ConditionRounds int    `json:"condition_rounds,omitempty"`
}

// ShoveMode selects the shove outcome on success.
type ShoveMode string

const (
	ShoveProne ShoveMode = "prone"
	ShovePush  ShoveMode = "push"
)

// Request is one action to execute against an encounter. The actor is
// resolved by id first, then by display name.
type Request struct {
	EncounterID string `json:"encounter_id"`
	Actor       string `json:"actor"`
	Type        Type   `json:"type"`

	Target string `json:"target,omitempty"`

	// Attack parameters; zero values fall back to the actor's weapon profile.
	WeaponName  string `json:"weapon_name,omitempty"`
	AttackBonus *int   `json:"attack_bonus,omitempty"`
	DamageExpr  string `json:"damage_expr,omitempty"`
	DamageType  string `json:"damage_type,omitempty"`

	Advantage    bool `json:"advantage,omitempty"`
	Disadvantage bool `json:"disadvantage,omitempty"`

	Destination *geometry.Point `json:"destination,omitempty"`

	Spell *SpellParams `json:"spell,omitempty"`

	Shove ShoveMode `json:"shove,omitempty"`

	// Description annotates ready/use-object/improvise/custom actions.
	Description string `json:"description,omitempty"`

	Overrides Overrides `json:"overrides,omitempty"`
}

// EventKind classifies one narrative event in a result.
type EventKind string

const (
	EventAttack      EventKind = "attack"
	EventDamage      EventKind = "damage"
	EventHealing     EventKind = "healing"
	EventMovement    EventKind = "movement"
	EventOpportunity EventKind = "opportunity-attack"
	EventCondition   EventKind = "condition"
	EventSave        EventKind = "save"
	EventStance      EventKind = "stance"
	EventDeath       EventKind = "death"
	EventNarrative   EventKind = "narrative"
)

// Event is one line of what happened while resolving an action. In-fiction
// negative outcomes (a miss, a failed save, a death) are events, never
// errors.
type Event struct {
	Kind      EventKind `json:"kind"`
	Narrative string    `json:"narrative"`
}

// AttackOutcome reports one resolved attack roll, including opportunity
// attacks.
type AttackOutcome struct {
	Attacker    string              `json:"attacker"`
	Target      string              `json:"target"`
	Roll        dice.D20Roll        `json:"roll"`
	Natural     int                 `json:"natural"`
	AttackTotal int                 `json:"attack_total"`
	TargetAC    int                 `json:"target_ac"`
	Cover       geometry.CoverLevel `json:"cover"`
	Hit         bool                `json:"hit"`
	Critical    bool                `json:"critical"`
	Damage      int                 `json:"damage"`
	DamageRoll  *dice.RollResult    `json:"damage_roll,omitempty"`
	TargetHP    int                 `json:"target_hp"`
	TargetDown  bool                `json:"target_down"`
	TargetDead  bool                `json:"target_dead"`
}

// MoveOutcome reports a resolved movement, including any reaction attacks
// it provoked.
type MoveOutcome struct {
	From          geometry.Point   `json:"from"`
	To            geometry.Point   `json:"to"`
	CostFeet      int              `json:"cost_feet"`
	RemainingFeet int              `json:"remaining_feet"`
	Provoked      []*AttackOutcome `json:"provoked,omitempty"`
}

// ContestOutcome reports a grapple or shove contested check.
type ContestOutcome struct {
	Target      string          `json:"target"`
	ActorRoll   dice.D20Roll    `json:"actor_roll"`
	TargetRoll  dice.D20Roll    `json:"target_roll"`
	ActorTotal  int             `json:"actor_total"`
	TargetTotal int             `json:"target_total"`
	Success     bool            `json:"success"`
	Applied     string          `json:"applied,omitempty"`
	PushedTo    *geometry.Point `json:"pushed_to,omitempty"`
}

// SaveOutcome reports one saving throw inside a spell resolution.
type SaveOutcome struct {
	Type       string        `json:"type"`
	Roll       *dice.D20Roll `json:"roll,omitempty"`
	AutoFailed bool          `json:"auto_failed"`
	CoverBonus int           `json:"cover_bonus"`
	Total      int           `json:"total"`
	DC         int           `json:"dc"`
	Success    bool          `json:"success"`
}

// SpellTarget reports the effect of a spell on one participant.
type SpellTarget struct {
	ID        string       `json:"id"`
	Save      *SaveOutcome `json:"save,omitempty"`
	Damage    int          `json:"damage"`
	Healed    int          `json:"healed,omitempty"`
	Condition string       `json:"condition,omitempty"`
	HP        int          `json:"hp"`
	Down      bool         `json:"down"`
	Dead      bool         `json:"dead"`
}

// SpellOutcome reports a resolved spell cast.
type SpellOutcome struct {
	Name          string           `json:"name"`
	SlotLevel     int              `json:"slot_level"`
	SlotsLeft     int              `json:"slots_left"`
	AffectedCells []geometry.Point `json:"affected_cells,omitempty"`
	Targets       []SpellTarget    `json:"targets"`
}

// Result is the structured outcome of one executed action.
type Result struct {
	EncounterID string          `json:"encounter_id"`
	Actor       string          `json:"actor"`
	Type        Type            `json:"type"`
	Round       int             `json:"round"`
	Events      []Event         `json:"events"`
	Attack      *AttackOutcome  `json:"attack,omitempty"`
	Move        *MoveOutcome    `json:"move,omitempty"`
	Contest     *ContestOutcome `json:"contest,omitempty"`
	Spell       *SpellOutcome   `json:"spell,omitempty"`
}

func (r *Result) event(kind EventKind, narrative string) {
	r.Events = append(r.Events, Event{Kind: kind, Narrative: narrative})
}
