package encounter

import (
	"github.com/gridforge/skirmish/internal/game/character"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

// Faction labels which side a participant fights for.
type Faction int

const (
	FactionAlly Faction = iota
	FactionEnemy
)

func (f Faction) String() string {
	if f == FactionAlly {
		return "ally"
	}
	return "enemy"
}

// Hostile reports whether two factions treat each other as enemies.
func Hostile(a, b Faction) bool {
	return a != b
}

// Participant is one combatant inside an encounter. The encounter owns the
// record exclusively; callers outside the package read it only through
// snapshots taken under the encounter lock.
type Participant struct {
	// ID is unique within the encounter and never reused.
	ID string
	// CharacterID links to an external persistent character, if any.
	CharacterID string
	Name        string

	MaxHP  int
	HP     int
	TempHP int

	AC            int
	Speed         int
	InitiativeMod int
	// Initiative is rolled once per encounter and immutable thereafter.
	Initiative int
	// order is the declared tiebreak key: the sequence in which the
	// participant joined the encounter.
	order int

	Position geometry.Point
	Faction  Faction
	// Cover is the declared cover level attackers must overcome in addition
	// to anything the terrain line-of-sight sampling finds.
	Cover geometry.CoverLevel

	Resistances     map[string]bool
	Immunities      map[string]bool
	Vulnerabilities map[string]bool

	// Default weapon profile, used for attacks that do not override it and
	// for opportunity attacks.
	AttackBonus int
	DamageExpr  string
	DamageType  string
	// CheckBonus feeds contested checks (grapple, shove).
	CheckBonus int

	// Player marks a player character; players always use death saves.
	Player             bool
	DeathSaveSuccesses int
	DeathSaveFailures  int
	// Dead is terminal: instantly slain, or three death-save failures.
	Dead bool

	// Per-turn action economy, cleared when the owner's turn closes.
	ActionUsed      bool
	BonusActionUsed bool
	ReactionUsed    bool
	MovementUsed    int

	// Transient stances, cleared at the start of the owner's next turn.
	Dashing    bool
	Dodging    bool
	Disengaged bool

	// SpellSlots maps slot level to remaining uses.
	SpellSlots map[int]int
}

// NewParticipantFromRecord seeds a participant from a persistent character
// record at full health.
func NewParticipantFromRecord(id string, rec *character.Record, pos geometry.Point, faction Faction) *Participant {
	return &Participant{
		ID:              id,
		CharacterID:     rec.ID,
		Name:            rec.Name,
		MaxHP:           rec.MaxHP,
		HP:              rec.MaxHP,
		AC:              rec.AC,
		Speed:           rec.Speed,
		InitiativeMod:   rec.InitiativeModifier(),
		Position:        pos,
		Faction:         faction,
		Player:          rec.Player,
		Resistances:     stringSet(rec.Resistances),
		Immunities:      stringSet(rec.Immunities),
		Vulnerabilities: stringSet(rec.Vulnerabilities),
	}
}

func stringSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

// IsDead reports whether the participant is terminally dead.
func (p *Participant) IsDead() bool { return p.Dead }

// IsDown reports whether the participant is at 0 HP (dying, stable, or dead).
func (p *Participant) IsDown() bool { return p.HP <= 0 }

// BaseStats returns the unmodified stat block fed into effective-stats folds.
func (p *Participant) BaseStats() condition.BaseStats {
	return condition.BaseStats{MaxHP: p.MaxHP, Speed: p.Speed, AC: p.AC}
}

// adjustDamage folds resistance, immunity, and vulnerability for damageType
// into amount. Resistance halves rounding down, vulnerability doubles,
// immunity zeroes. An empty damageType is untyped and always passes through.
func (p *Participant) adjustDamage(amount int, damageType string) int {
	if damageType == "" || amount <= 0 {
		return amount
	}
	if p.Immunities[damageType] {
		return 0
	}
	if p.Resistances[damageType] {
		amount /= 2
	}
	if p.Vulnerabilities[damageType] {
		amount *= 2
	}
	return amount
}

// ApplyDamage applies typed damage: temporary HP absorbs first, then HP is
// reduced and clamped to [0, effectiveMax].
//
// Precondition: amount >= 0; effectiveMax >= 1.
// Postcondition: Returns the HP actually lost (excluding temp HP absorption)
// and whether the participant dropped to 0 HP by this application.
func (p *Participant) ApplyDamage(amount int, damageType string, effectiveMax int) (hpLost int, dropped bool) {
	dmg := p.adjustDamage(amount, damageType)
	if dmg <= 0 {
		return 0, false
	}
	if p.TempHP > 0 {
		if dmg <= p.TempHP {
			p.TempHP -= dmg
			return 0, false
		}
		dmg -= p.TempHP
		p.TempHP = 0
	}
	wasUp := p.HP > 0
	before := p.HP
	p.HP -= dmg
	if p.HP < 0 {
		p.HP = 0
	}
	if p.HP > effectiveMax {
		p.HP = effectiveMax
	}
	return before - p.HP, wasUp && p.HP == 0
}

// Heal restores HP, clamped to the effective maximum. Healing a dead
// participant has no effect.
//
// Postcondition: Returns the HP actually restored.
func (p *Participant) Heal(amount, effectiveMax int) int {
	if p.Dead || amount <= 0 {
		return 0
	}
	before := p.HP
	p.HP += amount
	if p.HP > effectiveMax {
		p.HP = effectiveMax
	}
	return p.HP - before
}

// MovementBudget is the total feet of movement available this turn given the
// effective speed: doubled while dashing.
func (p *Participant) MovementBudget(effectiveSpeed int) int {
	if p.Dashing {
		return effectiveSpeed * 2
	}
	return effectiveSpeed
}

// closeTurn clears the per-turn action-economy flags when the owner's turn
// ends. Stances survive until the owner's next turn starts.
func (p *Participant) closeTurn() {
	p.ActionUsed = false
	p.BonusActionUsed = false
	p.ReactionUsed = false
}

// startTurn clears transient stances and the movement ledger when the
// owner's turn begins.
func (p *Participant) startTurn() {
	p.Dashing = false
	p.Dodging = false
	p.Disengaged = false
	p.MovementUsed = 0
}

// resetDeathSaves zeroes both counters, e.g. after revival or stabilization.
func (p *Participant) resetDeathSaves() {
	p.DeathSaveSuccesses = 0
	p.DeathSaveFailures = 0
}
