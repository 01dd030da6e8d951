package condition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Duration sentinels for ActiveCondition.RoundsRemaining. Positive values
// count down by one each time the owner's turn ends.
const (
	// DurationUntilRemoved lasts until explicitly dispelled or superseded.
	DurationUntilRemoved = -1
	// DurationUntilLongRest lasts until a long rest, which is outside this
	// engine's scope; within an encounter it behaves like DurationUntilRemoved.
	DurationUntilLongRest = -2
	// DurationPermanent never expires.
	DurationPermanent = -3
)

// Definition is the static description of a condition's mechanical effects.
// Core kinds have compiled-in definitions; additional definitions (including
// custom kinds) may be layered in from YAML content files.
type Definition struct {
	Kind        Kind   `yaml:"kind"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// MaxSeverity caps stacking; 0 means the condition does not stack.
	MaxSeverity int `yaml:"max_severity"`

	// Mechanical effects folded into effective stats.
	SpeedZero          bool     `yaml:"speed_zero"`
	SpeedHalved        bool     `yaml:"speed_halved"`
	AttackDisadvantage bool     `yaml:"attack_disadvantage"`
	CheckDisadvantage  bool     `yaml:"check_disadvantage"`
	SaveDisadvantage   bool     `yaml:"save_disadvantage"`
	IncomingAdvantage  bool     `yaml:"incoming_advantage"`
	AutoFailSaves      []string `yaml:"auto_fail_saves"`
	PreventsActions    bool     `yaml:"prevents_actions"`
	PreventsReactions  bool     `yaml:"prevents_reactions"`

	// Lua hook script names, resolved against the condition-scripts
	// directory. Empty = no hook.
	OnApplyScript  string `yaml:"on_apply_script"`
	OnExpireScript string `yaml:"on_expire_script"`
}

// Registry holds all known Definitions keyed by Kind.
type Registry struct {
	defs map[Kind]*Definition
}

// NewRegistry creates a Registry pre-populated with the core vocabulary.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[Kind]*Definition)}
	for _, def := range builtinDefinitions() {
		r.Register(def)
	}
	return r
}

// Register adds def to the registry, overwriting any existing entry.
//
// Precondition: def must not be nil and def.Kind must be valid.
func (r *Registry) Register(def *Definition) {
	r.defs[def.Kind] = def
}

// Get returns the Definition for kind. Unregistered custom kinds get a
// minimal on-the-fly definition so they can still be tracked and ticked.
func (r *Registry) Get(kind Kind) (*Definition, bool) {
	if d, ok := r.defs[kind]; ok {
		return d, true
	}
	if kind.IsCustom() {
		return &Definition{Kind: kind, Name: kind.Label()}, true
	}
	return nil, false
}

// All returns a snapshot slice of all registered Definitions.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	return out
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Definition,
// and layers it into the registry over the builtins.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns an error if any file fails to parse; the registry is
// unchanged for files after the failure.
func (r *Registry) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading condition dir %q: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		var def Definition
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return fmt.Errorf("parsing %q: %w", path, err)
		}
		if !def.Kind.Valid() {
			return fmt.Errorf("parsing %q: invalid condition kind %q", path, def.Kind)
		}
		r.Register(&def)
	}
	return nil
}

// builtinDefinitions returns the compiled-in core vocabulary.
func builtinDefinitions() []*Definition {
	return []*Definition{
		{Kind: Blinded, Name: "Blinded", AttackDisadvantage: true, IncomingAdvantage: true},
		{Kind: Charmed, Name: "Charmed"},
		{Kind: Deafened, Name: "Deafened"},
		{Kind: Frightened, Name: "Frightened", AttackDisadvantage: true, CheckDisadvantage: true},
		{Kind: Grappled, Name: "Grappled", SpeedZero: true},
		{Kind: Incapacitated, Name: "Incapacitated", PreventsActions: true, PreventsReactions: true},
		{Kind: Invisible, Name: "Invisible"},
		{
			Kind: Paralyzed, Name: "Paralyzed", SpeedZero: true, IncomingAdvantage: true,
			PreventsActions: true, PreventsReactions: true, AutoFailSaves: []string{"strength", "dexterity"},
		},
		{
			Kind: Petrified, Name: "Petrified", SpeedZero: true, IncomingAdvantage: true,
			PreventsActions: true, PreventsReactions: true, AutoFailSaves: []string{"strength", "dexterity"},
		},
		{Kind: Poisoned, Name: "Poisoned", AttackDisadvantage: true, CheckDisadvantage: true},
		{Kind: Prone, Name: "Prone", AttackDisadvantage: true},
		{Kind: Restrained, Name: "Restrained", SpeedZero: true, AttackDisadvantage: true, SaveDisadvantage: true, IncomingAdvantage: true},
		{
			Kind: Stunned, Name: "Stunned", SpeedZero: true, IncomingAdvantage: true,
			PreventsActions: true, PreventsReactions: true, AutoFailSaves: []string{"strength", "dexterity"},
		},
		{
			Kind: Unconscious, Name: "Unconscious", SpeedZero: true, IncomingAdvantage: true,
			PreventsActions: true, PreventsReactions: true, AutoFailSaves: []string{"strength", "dexterity"},
		},
		{Kind: Exhaustion, Name: "Exhaustion", MaxSeverity: 6},
		{Kind: Dying, Name: "Dying", PreventsActions: true, PreventsReactions: true},
		{Kind: Stable, Name: "Stable"},
	}
}
