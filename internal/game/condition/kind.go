// Package condition implements the status-condition registry and the fold
// that projects a participant's base statistics through its active effects.
package condition

import "strings"

// Kind names a status condition. The core vocabulary is closed; free-form
// kinds are represented with the "custom:" prefix so they can never be
// confused with a core kind.
type Kind string

const (
	Blinded       Kind = "blinded"
	Charmed       Kind = "charmed"
	Deafened      Kind = "deafened"
	Frightened    Kind = "frightened"
	Grappled      Kind = "grappled"
	Incapacitated Kind = "incapacitated"
	Invisible     Kind = "invisible"
	Paralyzed     Kind = "paralyzed"
	Petrified     Kind = "petrified"
	Poisoned      Kind = "poisoned"
	Prone         Kind = "prone"
	Restrained    Kind = "restrained"
	Stunned       Kind = "stunned"
	Unconscious   Kind = "unconscious"
	Exhaustion    Kind = "exhaustion"
	Dying         Kind = "dying"
	Stable        Kind = "stable"
)

// customPrefix marks free-form condition kinds.
const customPrefix = "custom:"

// Custom returns the Kind for a free-form condition label.
func Custom(label string) Kind {
	return Kind(customPrefix + label)
}

// IsCustom reports whether k is a free-form kind.
func (k Kind) IsCustom() bool {
	return strings.HasPrefix(string(k), customPrefix)
}

// Label returns the display label: the core kind name, or the free-form
// label without its prefix.
func (k Kind) Label() string {
	return strings.TrimPrefix(string(k), customPrefix)
}

// coreKinds is the closed vocabulary; used to validate inbound kinds.
var coreKinds = map[Kind]bool{
	Blinded: true, Charmed: true, Deafened: true, Frightened: true,
	Grappled: true, Incapacitated: true, Invisible: true, Paralyzed: true,
	Petrified: true, Poisoned: true, Prone: true, Restrained: true,
	Stunned: true, Unconscious: true, Exhaustion: true, Dying: true,
	Stable: true,
}

// Valid reports whether k is a core kind or a well-formed custom kind.
func (k Kind) Valid() bool {
	if coreKinds[k] {
		return true
	}
	return k.IsCustom() && len(k.Label()) > 0
}
