package encounter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/character"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/dice"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

// ParticipantSpec describes one participant to add to an encounter. When
// CharacterKey is set the record is resolved and seeds the stat fields;
// explicit non-zero fields override the resolved values.
type ParticipantSpec struct {
	ID           string
	Name         string
	CharacterKey string

	MaxHP         int
	AC            int
	Speed         int
	InitiativeMod int
	// ManualInitiative, when non-nil, skips the initiative roll.
	ManualInitiative *int

	Position geometry.Point
	Faction  Faction
	Player   bool

	Resistances     []string
	Immunities      []string
	Vulnerabilities []string
	SpellSlots      map[int]int

	// Weapon profile for attacks and opportunity attacks; DamageExpr
	// defaults to an unarmed 1d4.
	AttackBonus int
	DamageExpr  string
	DamageType  string
	CheckBonus  int
}

// TerrainSpec describes the battlefield grid at creation time. Cells not
// listed in Cells are open.
type TerrainSpec struct {
	Width  int
	Height int
	Cells  map[geometry.Point]geometry.CellKind
}

// Registry owns every encounter for the process lifetime. The registry
// mutex guards only the map; per-encounter mutation is serialized by each
// encounter's own lock. Encounter ids are never reused: ended encounters
// stay in the map, queryable for post-mortems.
type Registry struct {
	mu       lockedMap
	resolver character.Resolver
	roller   *dice.Roller
	defs     *condition.Registry
	hooks    condition.HookRunner
	rules    Rules
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
//
// Precondition: roller, defs, and logger are non-nil. resolver and hooks may
// be nil when character lookup or scripted hooks are unused.
func NewRegistry(resolver character.Resolver, roller *dice.Roller, defs *condition.Registry, hooks condition.HookRunner, rules Rules, logger *zap.Logger) *Registry {
	return &Registry{
		mu:       newLockedMap(),
		resolver: resolver,
		roller:   roller,
		defs:     defs,
		hooks:    hooks,
		rules:    rules,
		logger:   logger.Named("encounter"),
	}
}

// Create builds a new encounter: validates terrain and participants, rolls
// initiative for every spec without a manual value (1d20 + modifier), sorts
// descending, and starts at round 1 with the turn cursor on index 0.
//
// Postcondition: On success the encounter is registered and active. On any
// validation failure nothing is registered.
func (r *Registry) Create(ctx context.Context, specs []ParticipantSpec, terrain TerrainSpec, lighting string) (*Encounter, error) {
	light, err := ParseLighting(lighting)
	if err != nil {
		return nil, err
	}
	grid, err := geometry.NewTerrain(terrain.Width, terrain.Height)
	if err != nil {
		return nil, err
	}
	for p, kind := range terrain.Cells {
		if !grid.InBounds(p) {
			return nil, errors.Validationf("terrain cell %s outside %dx%d bounds", p, terrain.Width, terrain.Height)
		}
		grid.Set(p, kind)
	}
	if len(specs) == 0 {
		return nil, errors.Validationf("an encounter needs at least one participant")
	}

	enc := &Encounter{
		id:           uuid.NewString(),
		terrain:      grid,
		lighting:     light,
		state:        StateActive,
		conditions:   condition.NewStore(r.defs, r.hooks),
		rules:        r.rules,
		roller:       r.roller,
		damageDealt:  make(map[string]int),
		damageHealed: make(map[string]int),
		hits:         make(map[string]int),
		attempts:     make(map[string]int),
		condApplied:  make(map[string]int),
	}

	seen := make(map[string]bool, len(specs))
	occupied := make(map[geometry.Point]bool, len(specs))
	for _, spec := range specs {
		p, err := r.buildParticipant(ctx, spec)
		if err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, errors.Validationf("duplicate participant id %q", p.ID)
		}
		if !grid.InBounds(p.Position) || !grid.Passable(p.Position) {
			return nil, errors.Validationf("participant %q starting position %s is not an open cell", p.ID, p.Position)
		}
		if occupied[p.Position] {
			return nil, errors.Validationf("participant %q starting position %s is already occupied", p.ID, p.Position)
		}
		seen[p.ID] = true
		occupied[p.Position] = true
		enc.insert(p)
	}

	enc.round = 1
	enc.turnIndex = 0
	enc.Current().startTurn()

	r.mu.put(enc)
	r.logger.Info("encounter created",
		zap.String("encounter_id", enc.id),
		zap.Int("participants", len(specs)),
		zap.String("lighting", string(light)))
	return enc, nil
}

// Get returns the encounter for id, ended or not.
// Postcondition: returns errors.KindNotFound for unknown ids.
func (r *Registry) Get(id string) (*Encounter, error) {
	if enc, ok := r.mu.get(id); ok {
		return enc, nil
	}
	return nil, errors.NotFoundf("encounter %q not found", id)
}

// lockActive fetches the encounter and acquires its lock, rejecting ended
// encounters with a conflict. The state check happens under the lock so a
// concurrent End cannot land between the lookup and the mutation.
//
// Postcondition: on success the caller holds the encounter lock.
func (r *Registry) lockActive(id string) (*Encounter, error) {
	enc, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	enc.Lock()
	if enc.state == StateEnded {
		enc.Unlock()
		return nil, errors.Conflictf("encounter %q has ended", id)
	}
	return enc, nil
}

// AddParticipant rolls (or accepts) initiative for spec and inserts it into
// the running order without disturbing whose turn it is.
func (r *Registry) AddParticipant(ctx context.Context, encounterID string, spec ParticipantSpec) (*Participant, error) {
	enc, err := r.lockActive(encounterID)
	if err != nil {
		return nil, err
	}
	defer enc.Unlock()

	p, err := r.buildParticipant(ctx, spec)
	if err != nil {
		return nil, err
	}
	if existing, _ := enc.Find(p.ID); existing != nil {
		return nil, errors.Conflictf("participant id %q already exists in encounter %s", p.ID, encounterID)
	}
	if !enc.terrain.InBounds(p.Position) || !enc.terrain.Passable(p.Position) {
		return nil, errors.Validationf("starting position %s is not an open cell", p.Position)
	}
	if enc.Occupied("")[p.Position] {
		return nil, errors.Validationf("starting position %s is already occupied", p.Position)
	}

	enc.insert(p)
	r.logger.Info("participant joined",
		zap.String("encounter_id", encounterID),
		zap.String("participant_id", p.ID),
		zap.Int("initiative", p.Initiative))
	return p, nil
}

// ModifyTerrain reclassifies battlefield cells on a running encounter. All
// cells are validated before any is written: every cell must be in bounds,
// and a cell under a participant cannot become an obstacle.
func (r *Registry) ModifyTerrain(encounterID string, cells map[geometry.Point]geometry.CellKind) error {
	enc, err := r.lockActive(encounterID)
	if err != nil {
		return err
	}
	defer enc.Unlock()

	occupied := enc.Occupied("")
	for p, kind := range cells {
		if !enc.terrain.InBounds(p) {
			return errors.Validationf("cell %s is outside the battlefield", p)
		}
		if kind == geometry.CellObstacle && occupied[p] {
			return errors.Validationf("cell %s is occupied and cannot become an obstacle", p)
		}
	}
	for p, kind := range cells {
		enc.terrain.Set(p, kind)
	}
	r.logger.Info("terrain modified",
		zap.String("encounter_id", encounterID),
		zap.Int("cells", len(cells)))
	return nil
}

// End marks the encounter ended with the given outcome and computes the
// post-mortem summary. The encounter stays registered: ids are never reused
// and the summary remains queryable.
func (r *Registry) End(encounterID, outcome string) (*Summary, error) {
	enc, err := r.lockActive(encounterID)
	if err != nil {
		return nil, err
	}
	defer enc.Unlock()

	enc.state = StateEnded
	enc.outcome = outcome
	enc.summary = buildSummary(enc, outcome)
	r.logger.Info("encounter ended",
		zap.String("encounter_id", encounterID),
		zap.String("outcome", outcome),
		zap.Int("rounds", enc.round))
	return enc.summary, nil
}

// buildParticipant materializes a spec, resolving the character record when
// a key is given and rolling initiative unless a manual value was supplied.
func (r *Registry) buildParticipant(ctx context.Context, spec ParticipantSpec) (*Participant, error) {
	if spec.ID == "" {
		return nil, errors.Validationf("participant id is required")
	}

	var p *Participant
	if spec.CharacterKey != "" {
		if r.resolver == nil {
			return nil, errors.Validationf("no character resolver configured for key %q", spec.CharacterKey)
		}
		rec, err := r.resolver.Resolve(ctx, spec.CharacterKey)
		if err != nil {
			return nil, fmt.Errorf("resolving character %q: %w", spec.CharacterKey, err)
		}
		p = NewParticipantFromRecord(spec.ID, rec, spec.Position, spec.Faction)
	} else {
		p = &Participant{
			ID:       spec.ID,
			Position: spec.Position,
			Faction:  spec.Faction,
		}
	}

	if spec.Name != "" {
		p.Name = spec.Name
	}
	if p.Name == "" {
		p.Name = spec.ID
	}
	if spec.MaxHP > 0 {
		p.MaxHP = spec.MaxHP
		p.HP = spec.MaxHP
	}
	if spec.AC > 0 {
		p.AC = spec.AC
	}
	if spec.Speed > 0 {
		p.Speed = spec.Speed
	}
	if spec.InitiativeMod != 0 {
		p.InitiativeMod = spec.InitiativeMod
	}
	if spec.Player {
		p.Player = true
	}
	if len(spec.Resistances) > 0 {
		p.Resistances = stringSet(spec.Resistances)
	}
	if len(spec.Immunities) > 0 {
		p.Immunities = stringSet(spec.Immunities)
	}
	if len(spec.Vulnerabilities) > 0 {
		p.Vulnerabilities = stringSet(spec.Vulnerabilities)
	}
	if len(spec.SpellSlots) > 0 {
		p.SpellSlots = make(map[int]int, len(spec.SpellSlots))
		for lvl, n := range spec.SpellSlots {
			p.SpellSlots[lvl] = n
		}
	}

	p.AttackBonus = spec.AttackBonus
	p.CheckBonus = spec.CheckBonus
	p.DamageExpr = spec.DamageExpr
	if p.DamageExpr == "" {
		p.DamageExpr = "1d4"
	}
	p.DamageType = spec.DamageType

	if p.MaxHP < 1 {
		return nil, errors.Validationf("participant %q needs a positive max HP", spec.ID)
	}

	if spec.ManualInitiative != nil {
		p.Initiative = *spec.ManualInitiative
	} else {
		roll := r.roller.D20(dice.Normal)
		p.Initiative = roll.Kept + p.InitiativeMod
	}
	return p, nil
}

// lockedMap guards only the id-to-encounter map; it never holds its lock
// while an encounter mutates.
type lockedMap struct {
	mu         *sync.RWMutex
	encounters map[string]*Encounter
}

func newLockedMap() lockedMap {
	return lockedMap{mu: &sync.RWMutex{}, encounters: make(map[string]*Encounter)}
}

func (m lockedMap) put(enc *Encounter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encounters[enc.id] = enc
}

func (m lockedMap) get(id string) (*Encounter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enc, ok := m.encounters[id]
	return enc, ok
}
