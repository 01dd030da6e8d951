package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridforge/skirmish/internal/game/condition"
)

func statsFor(t *testing.T, s *condition.Store, target string) condition.EffectiveStats {
	t.Helper()
	base := condition.BaseStats{MaxHP: 40, Speed: 30, AC: 15}
	return condition.Compute(base, s.Query(target), 6)
}

func TestCompute_NoConditions(t *testing.T) {
	s := newStore()
	eff := statsFor(t, s, "p1")
	assert.Equal(t, 40, eff.MaxHP)
	assert.Equal(t, 30, eff.Speed)
	assert.False(t, eff.AttackDisadvantage)
	assert.False(t, eff.Dead)
}

func TestCompute_GrappledZeroesSpeed(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Add("p1", condition.Grappled, 1, condition.DurationUntilRemoved, ""))
	eff := statsFor(t, s, "p1")
	assert.Equal(t, 0, eff.Speed)
	assert.Equal(t, 40, eff.MaxHP)
}

func TestCompute_PoisonedGivesAttackDisadvantage(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Add("p1", condition.Poisoned, 1, 3, ""))
	eff := statsFor(t, s, "p1")
	assert.True(t, eff.AttackDisadvantage)
	assert.True(t, eff.CheckDisadvantage)
}

func TestCompute_ParalyzedAutoFailsStrDex(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Add("p1", condition.Paralyzed, 1, condition.DurationUntilRemoved, ""))
	eff := statsFor(t, s, "p1")
	assert.True(t, eff.AutoFails("str"))
	assert.True(t, eff.AutoFails("dex"))
	assert.False(t, eff.AutoFails("con"))
	assert.True(t, eff.ActionsPrevented)
	assert.True(t, eff.IncomingAdvantage)
}

func TestCompute_AutoFailMatchesAnySaveSpelling(t *testing.T) {
	// Short forms, long forms, and reflex-style labels all address the
	// same auto-fail entry.
	s := newStore()
	require.NoError(t, s.Add("p1", condition.Paralyzed, 1, condition.DurationUntilRemoved, ""))
	eff := statsFor(t, s, "p1")
	assert.True(t, eff.AutoFails("dexterity"))
	assert.True(t, eff.AutoFails("reflex"))
	assert.True(t, eff.AutoFails("strength"))
	assert.False(t, eff.AutoFails("constitution"))
	assert.False(t, eff.AutoFails("wisdom"))
}

func TestNormalizeSave(t *testing.T) {
	assert.Equal(t, "dexterity", condition.NormalizeSave("DEX"))
	assert.Equal(t, "dexterity", condition.NormalizeSave("reflex"))
	assert.Equal(t, "constitution", condition.NormalizeSave("fortitude"))
	assert.Equal(t, "wisdom", condition.NormalizeSave("will"))
	assert.Equal(t, "charisma", condition.NormalizeSave(" cha "))
	assert.Equal(t, "psychic-backlash", condition.NormalizeSave("Psychic-Backlash"))

	assert.True(t, condition.ReflexSave("dex"))
	assert.True(t, condition.ReflexSave("agility"))
	assert.False(t, condition.ReflexSave("fortitude"))
}

func TestCompute_ExhaustionLadder(t *testing.T) {
	cases := []struct {
		level     int
		wantSpeed int
		wantHP    int
		wantDead  bool
	}{
		{level: 1, wantSpeed: 30, wantHP: 40},
		{level: 2, wantSpeed: 15, wantHP: 40},
		{level: 3, wantSpeed: 15, wantHP: 40},
		{level: 4, wantSpeed: 15, wantHP: 20},
		{level: 5, wantSpeed: 0, wantHP: 20},
		{level: 6, wantSpeed: 0, wantHP: 20, wantDead: true},
	}
	for _, tc := range cases {
		s := newStore()
		require.NoError(t, s.Add("p1", condition.Exhaustion, tc.level, condition.DurationUntilLongRest, ""))
		eff := statsFor(t, s, "p1")
		assert.Equal(t, tc.wantSpeed, eff.Speed, "level %d speed", tc.level)
		assert.Equal(t, tc.wantHP, eff.MaxHP, "level %d max HP", tc.level)
		assert.Equal(t, tc.wantDead, eff.Dead, "level %d death", tc.level)
		assert.True(t, eff.CheckDisadvantage, "level %d check disadvantage", tc.level)
	}
}

func TestCompute_MultiplicativeBeforeFlat(t *testing.T) {
	// Exhaustion 4 halves max HP and speed; grappled then floors speed at 0.
	s := newStore()
	require.NoError(t, s.Add("p1", condition.Exhaustion, 4, condition.DurationUntilLongRest, ""))
	require.NoError(t, s.Add("p1", condition.Grappled, 1, condition.DurationUntilRemoved, ""))
	eff := statsFor(t, s, "p1")
	assert.Equal(t, 20, eff.MaxHP)
	assert.Equal(t, 0, eff.Speed)
}

func TestCompute_WorstCaseWinsForDisadvantage(t *testing.T) {
	// Two independent sources of attack disadvantage collapse to one flag.
	s := newStore()
	require.NoError(t, s.Add("p1", condition.Poisoned, 1, 3, ""))
	require.NoError(t, s.Add("p1", condition.Prone, 1, condition.DurationUntilRemoved, ""))
	eff := statsFor(t, s, "p1")
	assert.True(t, eff.AttackDisadvantage)
}

func TestCompute_IsPureAndRepeatable(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Add("p1", condition.Restrained, 1, condition.DurationUntilRemoved, ""))
	a := statsFor(t, s, "p1")
	b := statsFor(t, s, "p1")
	assert.Equal(t, a, b)
}
