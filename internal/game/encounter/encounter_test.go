package encounter_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/character"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/dice"
	"github.com/gridforge/skirmish/internal/game/encounter"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

func intp(n int) *int { return &n }

func newRegistry(t *testing.T, faces ...int) *encounter.Registry {
	t.Helper()
	if len(faces) == 0 {
		faces = []int{10}
	}
	roller := dice.NewLoggedRoller(dice.NewFixedSource(faces...), zap.NewNop())
	return encounter.NewRegistry(nil, roller, condition.NewRegistry(), nil, encounter.DefaultRules(), zap.NewNop())
}

func spec(id string, init int, pos geometry.Point, faction encounter.Faction) encounter.ParticipantSpec {
	return encounter.ParticipantSpec{
		ID: id, MaxHP: 20, AC: 14, Speed: 30,
		ManualInitiative: intp(init), Position: pos, Faction: faction,
	}
}

func threeSided(t *testing.T) (*encounter.Registry, *encounter.Encounter) {
	t.Helper()
	reg := newRegistry(t)
	enc, err := reg.Create(context.Background(), []encounter.ParticipantSpec{
		spec("a", 20, geometry.Point{X: 0, Y: 0}, encounter.FactionAlly),
		spec("b", 15, geometry.Point{X: 3, Y: 0}, encounter.FactionEnemy),
		spec("c", 10, geometry.Point{X: 5, Y: 5}, encounter.FactionEnemy),
	}, encounter.TerrainSpec{Width: 10, Height: 10}, "")
	require.NoError(t, err)
	return reg, enc
}

func TestCreate_SortsByInitiativeDescending(t *testing.T) {
	_, enc := threeSided(t)

	ids := make([]string, 0, 3)
	for _, p := range enc.Participants() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, 1, enc.Round())
	assert.Equal(t, "a", enc.Current().ID)
	assert.Equal(t, encounter.StateActive, enc.State())
}

func TestCreate_TiebreakModifierThenDeclaredOrder(t *testing.T) {
	reg := newRegistry(t)
	s1 := spec("first", 15, geometry.Point{X: 0, Y: 0}, encounter.FactionAlly)
	s2 := spec("sharp", 15, geometry.Point{X: 1, Y: 0}, encounter.FactionAlly)
	s2.InitiativeMod = 3
	s3 := spec("last", 15, geometry.Point{X: 2, Y: 0}, encounter.FactionAlly)

	enc, err := reg.Create(context.Background(), []encounter.ParticipantSpec{s1, s2, s3},
		encounter.TerrainSpec{Width: 5, Height: 5}, "")
	require.NoError(t, err)

	ids := []string{}
	for _, p := range enc.Participants() {
		ids = append(ids, p.ID)
	}
	// Higher modifier wins the tie; equal modifiers keep declared order.
	assert.Equal(t, []string{"sharp", "first", "last"}, ids)
}

func TestCreate_RollsInitiativeWhenNotManual(t *testing.T) {
	reg := newRegistry(t, 17)
	s := encounter.ParticipantSpec{
		ID: "npc", MaxHP: 10, AC: 12, Speed: 30, InitiativeMod: 2,
		Position: geometry.Point{X: 0, Y: 0},
	}
	enc, err := reg.Create(context.Background(), []encounter.ParticipantSpec{s},
		encounter.TerrainSpec{Width: 4, Height: 4}, "")
	require.NoError(t, err)
	assert.Equal(t, 19, enc.Participants()[0].Initiative)
}

func TestCreate_Validation(t *testing.T) {
	reg := newRegistry(t)
	base := encounter.TerrainSpec{Width: 4, Height: 4}

	_, err := reg.Create(context.Background(), []encounter.ParticipantSpec{
		spec("dup", 10, geometry.Point{X: 0, Y: 0}, encounter.FactionAlly),
		spec("dup", 12, geometry.Point{X: 1, Y: 0}, encounter.FactionEnemy),
	}, base, "")
	assert.True(t, errors.IsValidation(err), "duplicate id")

	_, err = reg.Create(context.Background(), []encounter.ParticipantSpec{
		spec("out", 10, geometry.Point{X: 9, Y: 9}, encounter.FactionAlly),
	}, base, "")
	assert.True(t, errors.IsValidation(err), "position out of bounds")

	_, err = reg.Create(context.Background(), []encounter.ParticipantSpec{
		spec("x", 10, geometry.Point{X: 0, Y: 0}, encounter.FactionAlly),
		spec("y", 12, geometry.Point{X: 0, Y: 0}, encounter.FactionEnemy),
	}, base, "")
	assert.True(t, errors.IsValidation(err), "stacked start positions")

	_, err = reg.Create(context.Background(), nil, base, "")
	assert.True(t, errors.IsValidation(err), "no participants")

	_, err = reg.Create(context.Background(), []encounter.ParticipantSpec{
		spec("l", 10, geometry.Point{X: 0, Y: 0}, encounter.FactionAlly),
	}, base, "strobe")
	assert.True(t, errors.IsValidation(err), "unknown lighting")
}

func TestCreate_SeedsFromCharacterRecord(t *testing.T) {
	roller := dice.NewLoggedRoller(dice.NewFixedSource(10), zap.NewNop())
	resolver := character.NewStaticResolver(&character.Record{
		ID: "pc-aria", Name: "Aria", MaxHP: 27, AC: 16, Speed: 30,
		Abilities: character.Abilities{Dexterity: 16}, Player: true,
	})
	reg := encounter.NewRegistry(resolver, roller, condition.NewRegistry(), nil,
		encounter.DefaultRules(), zap.NewNop())

	enc, err := reg.Create(context.Background(), []encounter.ParticipantSpec{{
		ID: "aria", CharacterKey: "Aria", Position: geometry.Point{X: 1, Y: 1},
	}}, encounter.TerrainSpec{Width: 6, Height: 6}, "dim")
	require.NoError(t, err)

	p := enc.Participants()[0]
	assert.Equal(t, "pc-aria", p.CharacterID)
	assert.Equal(t, 27, p.MaxHP)
	assert.Equal(t, 3, p.InitiativeMod)
	assert.True(t, p.Player)
	assert.Equal(t, 13, p.Initiative) // rolled 10 + dex 3
	assert.Equal(t, encounter.LightingDim, enc.Lighting())
}

func TestGet_UnknownEncounter(t *testing.T) {
	reg := newRegistry(t)
	_, err := reg.Get("nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestAddParticipant_InsertsWithoutMovingCursor(t *testing.T) {
	reg, enc := threeSided(t)

	// Advance so "b" is current, then wedge in a higher-initiative joiner.
	_, err := reg.Advance(enc.ID())
	require.NoError(t, err)
	require.Equal(t, "b", enc.Current().ID)

	_, err = reg.AddParticipant(context.Background(), enc.ID(),
		spec("z", 25, geometry.Point{X: 7, Y: 7}, encounter.FactionEnemy))
	require.NoError(t, err)

	assert.Equal(t, "z", enc.Participants()[0].ID)
	assert.Equal(t, "b", enc.Current().ID, "cursor stays on the same participant")
}

func TestAddParticipant_Errors(t *testing.T) {
	reg, enc := threeSided(t)

	_, err := reg.AddParticipant(context.Background(), "missing",
		spec("z", 1, geometry.Point{X: 7, Y: 7}, encounter.FactionAlly))
	assert.True(t, errors.IsNotFound(err))

	_, err = reg.AddParticipant(context.Background(), enc.ID(),
		spec("a", 1, geometry.Point{X: 7, Y: 7}, encounter.FactionAlly))
	assert.True(t, errors.IsConflict(err), "duplicate id")

	_, err = reg.AddParticipant(context.Background(), enc.ID(),
		spec("z", 1, geometry.Point{X: 3, Y: 0}, encounter.FactionAlly))
	assert.True(t, errors.IsValidation(err), "occupied cell")

	_, err = reg.End(enc.ID(), "called")
	require.NoError(t, err)
	_, err = reg.AddParticipant(context.Background(), enc.ID(),
		spec("z", 1, geometry.Point{X: 7, Y: 7}, encounter.FactionAlly))
	assert.True(t, errors.IsConflict(err), "ended encounter")
}

func TestApplyDamage_TempHPAndTypes(t *testing.T) {
	p := &encounter.Participant{ID: "t", MaxHP: 20, HP: 20, TempHP: 5,
		Resistances:     map[string]bool{"fire": true},
		Immunities:      map[string]bool{"poison": true},
		Vulnerabilities: map[string]bool{"cold": true},
	}

	lost, dropped := p.ApplyDamage(8, "", 20)
	assert.Equal(t, 3, lost, "temp HP absorbs first")
	assert.False(t, dropped)
	assert.Equal(t, 0, p.TempHP)
	assert.Equal(t, 17, p.HP)

	lost, _ = p.ApplyDamage(9, "fire", 20)
	assert.Equal(t, 4, lost, "resistance halves rounding down")

	lost, _ = p.ApplyDamage(100, "poison", 20)
	assert.Equal(t, 0, lost, "immunity zeroes")

	lost, dropped = p.ApplyDamage(7, "cold", 20)
	assert.Equal(t, 13, lost, "vulnerability doubles, clamped at 0")
	assert.True(t, dropped)
	assert.Equal(t, 0, p.HP)
}

func TestHeal_ClampsToEffectiveMax(t *testing.T) {
	p := &encounter.Participant{ID: "t", MaxHP: 20, HP: 4}
	assert.Equal(t, 6, p.Heal(50, 10), "healing clamps to the effective cap")
	assert.Equal(t, 10, p.HP)

	p.Dead = true
	assert.Equal(t, 0, p.Heal(5, 10), "the dead stay dead")
}

func TestHandleZeroHP_Policies(t *testing.T) {
	_, enc := threeSided(t)
	enc.Lock()
	defer enc.Unlock()

	npc, err := enc.Find("b")
	require.NoError(t, err)
	npc.HP = 0
	assert.True(t, enc.HandleZeroHP(npc, "test"), "instant policy kills NPCs outright")
	assert.True(t, npc.Dead)

	pc, err := enc.Find("a")
	require.NoError(t, err)
	pc.Player = true
	pc.HP = 0
	assert.False(t, enc.HandleZeroHP(pc, "test"), "players always get death saves")
	assert.True(t, enc.Conditions().Has("a", condition.Unconscious))
	assert.True(t, enc.Conditions().Has("a", condition.Dying))
}

func TestEnd_SummaryAndNoIDReuse(t *testing.T) {
	reg, enc := threeSided(t)
	enc.Lock()
	enc.RecordAttack("a", true)
	enc.RecordAttack("a", false)
	enc.RecordDamage("a", 12)
	enc.RecordHealing("c", 6)
	enc.RecordAttack("b", true)
	enc.RecordDamage("b", 5)
	enc.Unlock()

	sum, err := reg.End(enc.ID(), "allies victorious")
	require.NoError(t, err)
	assert.Equal(t, "allies victorious", sum.Outcome)
	assert.Equal(t, 12, sum.DamageDealt["a"])
	assert.Equal(t, "a", sum.MVP)
	assert.Equal(t, "most damage dealt", sum.MVPReason)
	assert.Equal(t, 1, sum.Rounds)

	// Ended encounters stay queryable; ending twice is a conflict.
	got, err := reg.Get(enc.ID())
	require.NoError(t, err)
	assert.Equal(t, encounter.StateEnded, got.State())
	assert.NotNil(t, got.Summary())

	_, err = reg.End(enc.ID(), "again")
	assert.True(t, errors.IsConflict(err))
}

func TestRegistry_EndRacesWithJoinsSafely(t *testing.T) {
	reg, enc := threeSided(t)

	var wg sync.WaitGroup
	var added int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reg.AddParticipant(context.Background(), enc.ID(),
				spec(fmt.Sprintf("late-%d", i), 1, geometry.Point{X: i, Y: 9}, encounter.FactionEnemy))
			if err == nil {
				atomic.AddInt32(&added, 1)
			} else {
				assert.True(t, errors.IsConflict(err))
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := reg.End(enc.ID(), "called")
		assert.NoError(t, err)
	}()
	wg.Wait()

	// No join lands once the encounter has ended: the roster holds exactly
	// the participants whose joins beat the end.
	assert.Equal(t, encounter.StateEnded, enc.State())
	assert.Len(t, enc.Participants(), 3+int(added))
	_, err := reg.AddParticipant(context.Background(), enc.ID(),
		spec("z", 1, geometry.Point{X: 9, Y: 0}, encounter.FactionEnemy))
	assert.True(t, errors.IsConflict(err))
}

func TestRegistry_ConcurrentCreateAndGet(t *testing.T) {
	reg := newRegistry(t)
	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			enc, err := reg.Create(context.Background(), []encounter.ParticipantSpec{
				spec("solo", 10, geometry.Point{X: 0, Y: 0}, encounter.FactionAlly),
			}, encounter.TerrainSpec{Width: 3, Height: 3}, "")
			require.NoError(t, err)
			ids[i] = enc.ID()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "encounter ids are unique")
		seen[id] = true
		_, err := reg.Get(id)
		assert.NoError(t, err)
	}
}
