package condition

import (
	"sort"

	"github.com/gridforge/skirmish/internal/errors"
)

// ActiveCondition tracks one applied condition on a target.
type ActiveCondition struct {
	Def      *Definition
	Kind     Kind
	Severity int // 1 for unstackable conditions; exhaustion level otherwise
	// RoundsRemaining counts down at the end of the owner's turn; negative
	// values are the Duration* sentinels.
	RoundsRemaining int
	Source          string // label of whatever inflicted the condition
}

// HookRunner executes scripted condition hooks. Implementations live outside
// this package; a nil runner disables hooks.
type HookRunner interface {
	// RunHook executes the named script for targetID. Hook failures are
	// logged by the implementation and never abort rule processing.
	RunHook(script, targetID string, kind Kind, severity int)
}

// Store owns all active condition effects for one encounter, keyed by target
// id. It is not safe for concurrent use; the owning encounter serialises
// access.
type Store struct {
	defs     *Registry
	hooks    HookRunner
	byTarget map[string]map[Kind]*ActiveCondition
}

// NewStore creates an empty Store resolving definitions against defs.
// hooks may be nil.
//
// Precondition: defs must not be nil.
func NewStore(defs *Registry, hooks HookRunner) *Store {
	return &Store{
		defs:     defs,
		hooks:    hooks,
		byTarget: make(map[string]map[Kind]*ActiveCondition),
	}
}

// Add applies a condition to targetID. Re-applying a non-stacking kind keeps
// a single instance, extending its duration to the longer of the two.
// Exhaustion severity is additive up to the definition's MaxSeverity.
//
// Precondition: kind must be valid; severity >= 1; duration is a positive
// round count or a Duration* sentinel.
// Postcondition: Has(targetID, kind) is true; the on-apply hook has run.
func (s *Store) Add(targetID string, kind Kind, severity, duration int, source string) error {
	if !kind.Valid() {
		return errors.Validationf("unknown condition kind %q", kind)
	}
	if severity < 1 {
		return errors.Validationf("condition severity must be >= 1, got %d", severity)
	}
	def, ok := s.defs.Get(kind)
	if !ok {
		return errors.Validationf("no definition for condition kind %q", kind)
	}

	targets := s.byTarget[targetID]
	if targets == nil {
		targets = make(map[Kind]*ActiveCondition)
		s.byTarget[targetID] = targets
	}

	if existing, ok := targets[kind]; ok {
		if def.MaxSeverity > 0 {
			existing.Severity += severity
			if existing.Severity > def.MaxSeverity {
				existing.Severity = def.MaxSeverity
			}
		}
		if longerDuration(duration, existing.RoundsRemaining) {
			existing.RoundsRemaining = duration
		}
		if source != "" {
			existing.Source = source
		}
	} else {
		effective := severity
		if def.MaxSeverity == 0 {
			effective = 1
		} else if effective > def.MaxSeverity {
			effective = def.MaxSeverity
		}
		targets[kind] = &ActiveCondition{
			Def:             def,
			Kind:            kind,
			Severity:        effective,
			RoundsRemaining: duration,
			Source:          source,
		}
	}

	if s.hooks != nil && def.OnApplyScript != "" {
		s.hooks.RunHook(def.OnApplyScript, targetID, kind, targets[kind].Severity)
	}
	return nil
}

// Remove clears the condition with the given kind from targetID.
// Removing an absent condition is a no-op returning false.
//
// Postcondition: Has(targetID, kind) is false; the on-expire hook has run
// when the condition was present.
func (s *Store) Remove(targetID string, kind Kind) bool {
	ac, ok := s.byTarget[targetID][kind]
	if !ok {
		return false
	}
	delete(s.byTarget[targetID], kind)
	if s.hooks != nil && ac.Def.OnExpireScript != "" {
		s.hooks.RunHook(ac.Def.OnExpireScript, targetID, kind, ac.Severity)
	}
	return true
}

// RemoveAll clears every condition from targetID without running hooks.
// Used when a participant leaves the encounter.
func (s *Store) RemoveAll(targetID string) {
	delete(s.byTarget, targetID)
}

// Has reports whether the condition is currently active on targetID.
func (s *Store) Has(targetID string, kind Kind) bool {
	_, ok := s.byTarget[targetID][kind]
	return ok
}

// Severity returns the current severity for the condition on targetID, or 0
// when absent.
func (s *Store) Severity(targetID string, kind Kind) int {
	if ac, ok := s.byTarget[targetID][kind]; ok {
		return ac.Severity
	}
	return 0
}

// Query returns the active conditions on targetID sorted by kind, so results
// are deterministic. The returned ActiveCondition values are shared; callers
// must not modify them.
func (s *Store) Query(targetID string) []*ActiveCondition {
	targets := s.byTarget[targetID]
	out := make([]*ActiveCondition, 0, len(targets))
	for _, ac := range targets {
		out = append(out, ac)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// TickOwner decrements the round durations of every condition on targetID,
// removing (and on-expire hooking) those that reach zero. Sentinel durations
// are untouched. Called once when the owner's turn ends.
//
// Postcondition: Returns the kinds that expired, sorted.
func (s *Store) TickOwner(targetID string) []Kind {
	var expired []Kind
	for kind, ac := range s.byTarget[targetID] {
		if ac.RoundsRemaining < 0 {
			continue
		}
		ac.RoundsRemaining--
		if ac.RoundsRemaining <= 0 {
			expired = append(expired, kind)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	for _, kind := range expired {
		s.Remove(targetID, kind)
	}
	return expired
}

// longerDuration reports whether a extends past b, treating the negative
// sentinels as longer than any round count and permanent as longest.
func longerDuration(a, b int) bool {
	rank := func(d int) int {
		switch {
		case d == DurationPermanent:
			return 1 << 30
		case d < 0:
			return 1 << 29
		default:
			return d
		}
	}
	return rank(a) > rank(b)
}
