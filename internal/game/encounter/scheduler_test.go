package encounter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/encounter"
)

func TestAdvance_WalksInitiativeOrderAndWraps(t *testing.T) {
	reg, enc := threeSided(t)

	tr, err := reg.Advance(enc.ID())
	require.NoError(t, err)
	assert.Equal(t, "a", tr.EndedTurn)
	assert.Equal(t, "b", tr.ActiveParticipant)
	assert.False(t, tr.NewRound)

	tr, err = reg.Advance(enc.ID())
	require.NoError(t, err)
	assert.Equal(t, "c", tr.ActiveParticipant)

	tr, err = reg.Advance(enc.ID())
	require.NoError(t, err)
	assert.Equal(t, "a", tr.ActiveParticipant)
	assert.True(t, tr.NewRound)
	assert.Equal(t, 2, tr.Round)
	assert.Equal(t, 2, enc.Round())
}

func TestAdvance_ClearsEconomyOnCloseAndStancesOnStart(t *testing.T) {
	reg, enc := threeSided(t)

	enc.Lock()
	a := enc.Current()
	a.ActionUsed = true
	a.BonusActionUsed = true
	a.ReactionUsed = true
	a.Dodging = true
	a.MovementUsed = 15
	enc.Unlock()

	_, err := reg.Advance(enc.ID())
	require.NoError(t, err)

	assert.False(t, a.ActionUsed)
	assert.False(t, a.BonusActionUsed)
	assert.False(t, a.ReactionUsed)
	assert.True(t, a.Dodging, "dodge persists until the owner's next turn starts")

	// Two more advances bring "a" back up; its stance and movement reset.
	_, err = reg.Advance(enc.ID())
	require.NoError(t, err)
	_, err = reg.Advance(enc.ID())
	require.NoError(t, err)
	assert.False(t, a.Dodging)
	assert.Equal(t, 0, a.MovementUsed)
}

func TestAdvance_TicksClosingOwnersConditions(t *testing.T) {
	reg, enc := threeSided(t)

	enc.Lock()
	require.NoError(t, enc.Conditions().Add("a", condition.Poisoned, 1, 1, "test"))
	require.NoError(t, enc.Conditions().Add("b", condition.Poisoned, 1, 1, "test"))
	enc.Unlock()

	tr, err := reg.Advance(enc.ID())
	require.NoError(t, err)
	assert.Equal(t, []condition.Kind{condition.Poisoned}, tr.ExpiredConditions)
	assert.False(t, enc.Conditions().Has("a", condition.Poisoned))
	assert.True(t, enc.Conditions().Has("b", condition.Poisoned), "only the closing owner ticks")
}

func TestAdvance_SkipsDeadButNotDying(t *testing.T) {
	reg, enc := threeSided(t)

	enc.Lock()
	b, err := enc.Find("b")
	require.NoError(t, err)
	b.HP = 0
	b.Dead = true

	c, err := enc.Find("c")
	require.NoError(t, err)
	c.Player = true
	c.HP = 0
	enc.HandleZeroHP(c, "test")
	enc.Unlock()

	tr, err := reg.Advance(enc.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, tr.Skipped)
	assert.Equal(t, "c", tr.ActiveParticipant, "dying participants still take turns")
	assert.Contains(t, tr.DeathSavesDue, "c")
}

func TestAdvance_RoundStartDeathSaveReminders(t *testing.T) {
	reg, enc := threeSided(t)

	enc.Lock()
	a, err := enc.Find("a")
	require.NoError(t, err)
	a.Player = true
	a.HP = 0
	enc.HandleZeroHP(a, "test")
	enc.Unlock()

	_, err = reg.Advance(enc.ID()) // a -> b
	require.NoError(t, err)
	_, err = reg.Advance(enc.ID()) // b -> c
	require.NoError(t, err)
	tr, err := reg.Advance(enc.ID()) // c -> a, new round
	require.NoError(t, err)
	assert.True(t, tr.NewRound)
	assert.Contains(t, tr.DeathSavesDue, "a")
}

func TestAdvance_ErrorsOnEndedOrUnknown(t *testing.T) {
	reg, enc := threeSided(t)

	_, err := reg.Advance("missing")
	assert.True(t, errors.IsNotFound(err))

	_, err = reg.End(enc.ID(), "over")
	require.NoError(t, err)
	_, err = reg.Advance(enc.ID())
	assert.True(t, errors.IsConflict(err))
}

func TestAdvance_AllDeadIsConflict(t *testing.T) {
	reg, enc := threeSided(t)

	enc.Lock()
	for _, p := range enc.Participants() {
		p.HP = 0
		p.Dead = true
	}
	a, err := enc.Find("a")
	require.NoError(t, err)
	a.ActionUsed = true
	require.NoError(t, enc.Conditions().Add("a", condition.Poisoned, 1, 1, "test"))
	enc.Unlock()

	_, err = reg.Advance(enc.ID())
	assert.True(t, errors.IsConflict(err))

	// The rejection leaves every piece of turn state untouched.
	assert.Equal(t, 1, enc.Round())
	assert.Equal(t, "a", enc.Current().ID)
	assert.True(t, a.ActionUsed, "economy flags survive a rejected advance")
	assert.True(t, enc.Conditions().Has("a", condition.Poisoned), "durations do not tick on a rejected advance")
}

func TestAdvance_SkipsParticipantKilledByExhaustion(t *testing.T) {
	reg, enc := threeSided(t)

	enc.Lock()
	require.NoError(t, enc.Conditions().Add("b", condition.Exhaustion, 6, condition.DurationUntilLongRest, "test"))
	enc.Unlock()

	tr, err := reg.Advance(enc.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, tr.Skipped)
	assert.Equal(t, "c", tr.ActiveParticipant)

	b, err := enc.Find("b")
	require.NoError(t, err)
	assert.True(t, b.Dead)
	assert.Equal(t, 0, b.HP)
	assert.False(t, enc.Conditions().Has("b", condition.Exhaustion), "death clears remaining conditions")
}

func TestRollDeathSave_StateMachine(t *testing.T) {
	_, enc := threeSided(t)

	down := func(id string) *encounter.Participant {
		enc.Lock()
		defer enc.Unlock()
		p, err := enc.Find(id)
		require.NoError(t, err)
		p.Player = true
		p.HP = 0
		p.Dead = false
		enc.HandleZeroHP(p, "test")
		return p
	}

	// Natural 20: up at 1 HP, unconscious and dying cleared together.
	p := down("a")
	res, err := enc.RollDeathSave("a", intp(20))
	require.NoError(t, err)
	assert.Equal(t, encounter.DeathSaveRevived, res.Outcome)
	assert.Equal(t, 1, p.HP)
	assert.False(t, enc.Conditions().Has("a", condition.Dying))
	assert.False(t, enc.Conditions().Has("a", condition.Unconscious))

	// Three successes stabilize.
	p = down("b")
	for i := 0; i < 2; i++ {
		res, err = enc.RollDeathSave("b", intp(12))
		require.NoError(t, err)
		assert.Equal(t, encounter.DeathSaveSuccess, res.Outcome)
	}
	res, err = enc.RollDeathSave("b", intp(12))
	require.NoError(t, err)
	assert.Equal(t, encounter.DeathSaveStable, res.Outcome)
	assert.True(t, enc.Conditions().Has("b", condition.Stable))
	assert.False(t, enc.Conditions().Has("b", condition.Dying))
	assert.Equal(t, 0, p.HP)

	// Stable participants owe no further saves.
	_, err = enc.RollDeathSave("b", intp(12))
	assert.True(t, errors.IsRuleViolation(err))

	// Natural 1 counts as two failures; a third kills.
	p = down("c")
	res, err = enc.RollDeathSave("c", intp(1))
	require.NoError(t, err)
	assert.Equal(t, encounter.DeathSaveFailure, res.Outcome)
	assert.Equal(t, 2, res.Failures)
	res, err = enc.RollDeathSave("c", intp(4))
	require.NoError(t, err)
	assert.Equal(t, encounter.DeathSaveDead, res.Outcome)
	assert.True(t, p.Dead)

	_, err = enc.RollDeathSave("c", intp(10))
	assert.True(t, errors.IsRuleViolation(err))
}

func TestRollDeathSave_RequiresDying(t *testing.T) {
	_, enc := threeSided(t)
	_, err := enc.RollDeathSave("a", intp(10))
	assert.True(t, errors.IsRuleViolation(err))

	_, err = enc.RollDeathSave("ghost", intp(10))
	assert.True(t, errors.IsNotFound(err))
}
