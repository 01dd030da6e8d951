// Package character defines the persistent character record consumed when
// seeding encounter participants, and the lookup seam through which records
// are resolved. The combat rules never write back to a record: a participant
// snapshots the stats it needs at join time.
package character

import (
	"context"
	"sort"
	"sync"

	"github.com/gridforge/skirmish/internal/errors"
)

// Abilities holds the six raw ability scores.
type Abilities struct {
	Strength     int `json:"strength" yaml:"strength"`
	Dexterity    int `json:"dexterity" yaml:"dexterity"`
	Constitution int `json:"constitution" yaml:"constitution"`
	Intelligence int `json:"intelligence" yaml:"intelligence"`
	Wisdom       int `json:"wisdom" yaml:"wisdom"`
	Charisma     int `json:"charisma" yaml:"charisma"`
}

// Modifier converts a raw score to its bonus: (score - 10) / 2, rounded down.
func Modifier(score int) int {
	if score >= 10 {
		return (score - 10) / 2
	}
	// Integer division truncates toward zero; scores below 10 need floor.
	return -((11 - score) / 2)
}

// Record is a persistent character sheet. ID is stable across encounters;
// Name is a human-facing label and need not be unique.
type Record struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Level     int       `json:"level" yaml:"level"`
	MaxHP     int       `json:"max_hp" yaml:"max_hp"`
	AC        int       `json:"ac" yaml:"ac"`
	Speed     int       `json:"speed" yaml:"speed"`
	Abilities Abilities `json:"abilities" yaml:"abilities"`

	// Proficiencies maps skill or save names to true for proficient entries.
	Proficiencies map[string]bool `json:"proficiencies,omitempty" yaml:"proficiencies,omitempty"`

	Resistances     []string `json:"resistances,omitempty" yaml:"resistances,omitempty"`
	Immunities      []string `json:"immunities,omitempty" yaml:"immunities,omitempty"`
	Vulnerabilities []string `json:"vulnerabilities,omitempty" yaml:"vulnerabilities,omitempty"`

	// Player marks a player character. Player characters always use death
	// saves at 0 HP regardless of the configured death policy.
	Player bool `json:"player" yaml:"player"`
}

// InitiativeModifier is the dexterity modifier; initiative rolls are
// 1d20 plus this value.
func (r *Record) InitiativeModifier() int {
	return Modifier(r.Abilities.Dexterity)
}

// ProficiencyBonus derives the flat bonus from level: 2 at levels 1-4,
// +1 per four levels after.
func (r *Record) ProficiencyBonus() int {
	if r.Level < 1 {
		return 2
	}
	return 2 + (r.Level-1)/4
}

// Resolver looks up character records by id or name. Implementations must be
// safe for concurrent use.
type Resolver interface {
	// Resolve returns the record whose ID or Name matches key.
	// Postcondition: returns errors.KindNotFound when no record matches.
	Resolve(ctx context.Context, key string) (*Record, error)
}

// StaticResolver is an in-memory Resolver backed by a fixed roster. It is the
// default when no database is configured.
type StaticResolver struct {
	mu     sync.RWMutex
	byID   map[string]*Record
	byName map[string]*Record
}

// NewStaticResolver builds a resolver over the given roster.
// Postcondition: later records win id and name collisions.
func NewStaticResolver(roster ...*Record) *StaticResolver {
	r := &StaticResolver{
		byID:   make(map[string]*Record, len(roster)),
		byName: make(map[string]*Record, len(roster)),
	}
	for _, rec := range roster {
		r.Put(rec)
	}
	return r
}

// Put inserts or replaces a record.
func (r *StaticResolver) Put(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[rec.ID] = rec
	if rec.Name != "" {
		r.byName[rec.Name] = rec
	}
}

// Resolve returns the record matching key by id first, then by name.
func (r *StaticResolver) Resolve(_ context.Context, key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.byID[key]; ok {
		return rec, nil
	}
	if rec, ok := r.byName[key]; ok {
		return rec, nil
	}
	return nil, errors.NotFoundf("character %q not found", key)
}

// List returns every record sorted by id. Intended for diagnostics.
func (r *StaticResolver) List() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.byID))
	for _, rec := range r.byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
