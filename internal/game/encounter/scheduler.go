package encounter

import (
	"go.uber.org/zap"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/condition"
)

// TurnTransition reports everything a single advance() did: whose turn
// closed, which of their conditions expired, who was skipped as dead, round
// wraparound, and any death-save reminders now due.
type TurnTransition struct {
	EndedTurn         string           `json:"ended_turn"`
	ExpiredConditions []condition.Kind `json:"expired_conditions,omitempty"`
	Skipped           []string         `json:"skipped,omitempty"`
	NewRound          bool             `json:"new_round"`
	Round             int              `json:"round"`
	ActiveParticipant string           `json:"active_participant"`
	DeathSavesDue     []string         `json:"death_saves_due,omitempty"`
}

// Advance closes the current participant's turn and moves the cursor to the
// next participant in initiative order:
//
//   - clears the closing participant's action-economy flags,
//   - decrements that participant's round-scoped condition durations,
//     removing any that expire,
//   - skips terminally dead participants (instantly slain, failed out of
//     death saves, or dead of lethal exhaustion) but never skips a dying
//     participant, whose turn instead carries a death-save reminder,
//   - on wraparound increments the round and reports death-save reminders
//     for everyone at 0 HP who is neither stable nor dead.
//
// Postcondition: Returns a conflict error on an ended encounter and a
// not-found error on an unknown id; the error case mutates nothing.
func (r *Registry) Advance(encounterID string) (*TurnTransition, error) {
	enc, err := r.lockActive(encounterID)
	if err != nil {
		return nil, err
	}
	defer enc.Unlock()
	return enc.advance(r.logger)
}

func (e *Encounter) advance(logger *zap.Logger) (*TurnTransition, error) {
	// Reject a fully dead roster before touching any turn state.
	alive := false
	for _, p := range e.participants {
		if !p.IsDead() && !e.EffectiveStats(p).Dead {
			alive = true
			break
		}
	}
	if !alive {
		return nil, errors.Conflictf("no living participants remain in encounter %s", e.id)
	}

	cur := e.Current()
	t := &TurnTransition{EndedTurn: cur.ID}

	cur.closeTurn()
	t.ExpiredConditions = e.conditions.TickOwner(cur.ID)

	// Walk forward until a participant who takes turns is found. Dying
	// participants still take turns; only the terminally dead are skipped.
	for range e.participants {
		e.turnIndex++
		if e.turnIndex >= len(e.participants) {
			e.turnIndex = 0
			e.round++
			t.NewRound = true
			for _, p := range e.participants {
				if dueDeathSave(e, p) {
					t.DeathSavesDue = append(t.DeathSavesDue, p.ID)
				}
			}
		}
		next := e.Current()
		if next.IsDead() || e.SettleLethalConditions(next) {
			t.Skipped = append(t.Skipped, next.ID)
			continue
		}
		next.startTurn()
		t.ActiveParticipant = next.ID
		if dueDeathSave(e, next) && !contains(t.DeathSavesDue, next.ID) {
			t.DeathSavesDue = append(t.DeathSavesDue, next.ID)
		}
		break
	}
	if t.ActiveParticipant == "" {
		return nil, errors.Conflictf("no living participants remain in encounter %s", e.id)
	}

	t.Round = e.round
	logger.Debug("turn advanced",
		zap.String("encounter_id", e.id),
		zap.String("ended_turn", t.EndedTurn),
		zap.String("active", t.ActiveParticipant),
		zap.Int("round", t.Round),
		zap.Bool("new_round", t.NewRound))
	return t, nil
}

// dueDeathSave reports whether p owes a death save: at exactly 0 HP, still
// dying, neither stabilized nor dead.
func dueDeathSave(e *Encounter, p *Participant) bool {
	return p.HP == 0 && !p.Dead &&
		e.conditions.Has(p.ID, condition.Dying) &&
		!e.conditions.Has(p.ID, condition.Stable)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
