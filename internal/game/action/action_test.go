package action_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/action"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/dice"
	"github.com/gridforge/skirmish/internal/game/encounter"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

func intp(n int) *int { return &n }

type fixture struct {
	reg  *encounter.Registry
	pl   *action.Pipeline
	enc  *encounter.Encounter
	ally *encounter.Participant
	foe  *encounter.Participant
}

// newFixture builds a 12x12 encounter with a 44-HP ally at (5,5) acting
// first and a 7-HP enemy at (6,5). Death saves are enabled so dropped
// participants fall unconscious instead of dying outright.
func newFixture(t *testing.T, faces ...int) *fixture {
	t.Helper()
	if len(faces) == 0 {
		faces = []int{10}
	}
	rules := encounter.DefaultRules()
	rules.DeathPolicy = encounter.DeathPolicySaves

	roller := dice.NewLoggedRoller(dice.NewFixedSource(faces...), zap.NewNop())
	reg := encounter.NewRegistry(nil, roller, condition.NewRegistry(), nil, rules, zap.NewNop())

	enc, err := reg.Create(context.Background(), []encounter.ParticipantSpec{
		{
			ID: "ally", MaxHP: 44, AC: 16, Speed: 30, ManualInitiative: intp(20),
			Position: geometry.Point{X: 5, Y: 5}, Faction: encounter.FactionAlly,
			AttackBonus: 5, DamageExpr: "1d8+3", CheckBonus: 4,
			SpellSlots: map[int]int{1: 2},
		},
		{
			ID: "foe", MaxHP: 7, AC: 13, Speed: 30, ManualInitiative: intp(10),
			Position: geometry.Point{X: 6, Y: 5}, Faction: encounter.FactionEnemy,
			AttackBonus: 3, DamageExpr: "1d6+1", CheckBonus: 1,
		},
	}, encounter.TerrainSpec{Width: 12, Height: 12}, "")
	require.NoError(t, err)

	f := &fixture{reg: reg, pl: action.NewPipeline(reg, zap.NewNop()), enc: enc}
	f.ally, err = enc.Find("ally")
	require.NoError(t, err)
	f.foe, err = enc.Find("foe")
	require.NoError(t, err)
	return f
}

func (f *fixture) execute(t *testing.T, req action.Request) *action.Result {
	t.Helper()
	req.EncounterID = f.enc.ID()
	res, err := f.pl.Execute(context.Background(), req)
	require.NoError(t, err)
	return res
}

func TestAttack_ForcedRollScenario(t *testing.T) {
	f := newFixture(t)

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeAttack, Target: "foe",
		Overrides: action.Overrides{AttackRoll: intp(18), DamageTotal: intp(9)},
	})

	require.NotNil(t, res.Attack)
	assert.True(t, res.Attack.Hit)
	assert.Equal(t, 23, res.Attack.AttackTotal)
	assert.Equal(t, 7, res.Attack.Damage, "damage clamps at remaining HP")
	assert.Equal(t, 0, f.foe.HP)
	assert.True(t, res.Attack.TargetDown)
	assert.False(t, res.Attack.TargetDead)
	assert.True(t, f.enc.Conditions().Has("foe", condition.Unconscious))
	assert.True(t, f.enc.Conditions().Has("foe", condition.Dying))
}

func TestAttack_Natural20AlwaysHits(t *testing.T) {
	f := newFixture(t)
	f.foe.AC = 99

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeAttack, Target: "foe",
		Overrides: action.Overrides{AttackRoll: intp(20), DamageTotal: intp(3)},
	})
	assert.True(t, res.Attack.Hit)
	assert.True(t, res.Attack.Critical)
	assert.Equal(t, 99, res.Attack.TargetAC)
}

func TestAttack_Natural1AlwaysMisses(t *testing.T) {
	f := newFixture(t)
	f.foe.AC = 1

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeAttack, Target: "foe",
		AttackBonus: intp(50),
		Overrides:   action.Overrides{AttackRoll: intp(1)},
	})
	assert.False(t, res.Attack.Hit)
	assert.Equal(t, 7, f.foe.HP, "a miss deals no damage")
}

func TestAttack_CriticalDoublesDamageDice(t *testing.T) {
	// Faces: attack d20 irrelevant (pinned), then 1d8 rolls 6 and 6 again
	// for the crit die.
	f := newFixture(t, 6)
	f.foe.MaxHP = 30
	f.foe.HP = 30

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeAttack, Target: "foe",
		Overrides: action.Overrides{AttackRoll: intp(20)},
	})
	require.True(t, res.Attack.Critical)
	// 1d8+3 rolled 6+3, plus one extra d8 rolled 6: 15 total.
	assert.Equal(t, 15, res.Attack.Damage)
}

func TestAttack_CoverRaisesEffectiveAC(t *testing.T) {
	f := newFixture(t)
	f.foe.Cover = geometry.CoverHalf

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeAttack, Target: "foe",
		Overrides: action.Overrides{AttackRoll: intp(9)},
	})
	// 9 + 5 = 14 vs AC 13 + 2 cover = 15.
	assert.False(t, res.Attack.Hit)
	assert.Equal(t, 15, res.Attack.TargetAC)
}

func TestAttack_FullCoverBlocks(t *testing.T) {
	f := newFixture(t)
	f.foe.Cover = geometry.CoverFull

	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeAttack, Target: "foe",
	})
	assert.True(t, errors.IsRuleViolation(err))
	assert.Equal(t, 7, f.foe.HP)
}

func TestAttack_DodgingImposesDisadvantage(t *testing.T) {
	// Faces feed the two advantage-state dice: 18 then 4; disadvantage
	// keeps the 4 and misses against AC 13 + bonus 5.
	f := newFixture(t, 18, 4)
	f.foe.Dodging = true

	res := f.execute(t, action.Request{Actor: "ally", Type: action.TypeAttack, Target: "foe"})
	assert.Equal(t, dice.Disadvantage, res.Attack.Roll.Mode)
	assert.Equal(t, 4, res.Attack.Natural)
	assert.False(t, res.Attack.Hit)
}

func TestAttack_AdvantageAndDisadvantageCancel(t *testing.T) {
	f := newFixture(t, 12)
	f.foe.Dodging = true

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeAttack, Target: "foe", Advantage: true,
	})
	assert.Equal(t, dice.Normal, res.Attack.Roll.Mode)
	assert.Len(t, res.Attack.Roll.Rolls, 1)
}

func TestAttack_EconomySpentIsConflict(t *testing.T) {
	f := newFixture(t)

	f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeAttack, Target: "foe",
		Overrides: action.Overrides{AttackRoll: intp(2)},
	})
	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeAttack, Target: "foe",
	})
	assert.True(t, errors.IsConflict(err), "action slot already spent this turn")
}

func TestExecute_NotYourTurn(t *testing.T) {
	f := newFixture(t)
	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "foe", Type: action.TypeAttack, Target: "ally",
	})
	assert.True(t, errors.IsRuleViolation(err))
}

func TestExecute_UnknownTypeAndEncounter(t *testing.T) {
	f := newFixture(t)

	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.Type("teleport"),
	})
	assert.True(t, errors.IsValidation(err))

	_, err = f.pl.Execute(context.Background(), action.Request{
		EncounterID: "missing", Actor: "ally", Type: action.TypeAttack, Target: "foe",
	})
	assert.True(t, errors.IsNotFound(err))
}

func TestMove_ProvokesOpportunityAttack(t *testing.T) {
	f := newFixture(t)

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeMove,
		Destination: &geometry.Point{X: 1, Y: 5},
	})

	require.NotNil(t, res.Move)
	require.Len(t, res.Move.Provoked, 1)
	oa := res.Move.Provoked[0]
	assert.Equal(t, "foe", oa.Attacker)
	assert.Equal(t, "ally", oa.Target)
	assert.True(t, f.foe.ReactionUsed, "the reaction is spent")
	assert.False(t, f.ally.ActionUsed, "the provoker's own economy is untouched")
	assert.Equal(t, geometry.Point{X: 1, Y: 5}, f.ally.Position)
}

func TestMove_DisengagePreventsOpportunityAttack(t *testing.T) {
	f := newFixture(t)

	f.execute(t, action.Request{Actor: "ally", Type: action.TypeDisengage})
	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeMove,
		Destination: &geometry.Point{X: 1, Y: 5},
	})
	assert.Empty(t, res.Move.Provoked)
	assert.False(t, f.foe.ReactionUsed)
}

func TestMove_BudgetEnforced(t *testing.T) {
	f := newFixture(t)

	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeMove,
		Destination: &geometry.Point{X: 11, Y: 11}, // 45 ft stairstep, speed 30
	})
	require.True(t, errors.IsRuleViolation(err))
	assert.Equal(t, geometry.Point{X: 5, Y: 5}, f.ally.Position, "failed move mutates nothing")
}

func TestMove_DashExtendsBudget(t *testing.T) {
	f := newFixture(t)

	f.execute(t, action.Request{Actor: "ally", Type: action.TypeDash})
	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeMove,
		Destination: &geometry.Point{X: 5, Y: 0}, // 25 ft
	})
	assert.Equal(t, 25, res.Move.CostFeet)
	assert.Equal(t, 35, res.Move.RemainingFeet)
}

func TestMove_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeMove,
	})
	assert.True(t, errors.IsValidation(err), "missing destination")

	_, err = f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeMove,
		Destination: &geometry.Point{X: 40, Y: 40},
	})
	assert.True(t, errors.IsValidation(err), "out of bounds")

	_, err = f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeMove,
		Destination: &geometry.Point{X: 6, Y: 5},
	})
	assert.True(t, errors.IsValidation(err), "occupied destination")
}

func TestCastSpell_TokenNeverMisroutedAsMovement(t *testing.T) {
	f := newFixture(t)

	// A cast-spell request carrying a destination must still resolve (or
	// fail) as a spell, never as movement.
	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeCastSpell,
		Destination: &geometry.Point{X: 1, Y: 1},
	})
	require.True(t, errors.IsValidation(err))
	assert.Equal(t, geometry.Point{X: 5, Y: 5}, f.ally.Position, "no movement happened")
}

func TestCastSpell_SingleTargetRangeAndSlot(t *testing.T) {
	f := newFixture(t)

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeCastSpell, Target: "foe",
		Spell: &action.SpellParams{
			Name: "scorching bolt", SlotLevel: 1, RangeFeet: 30,
			DamageExpr: "2d6", DamageType: "fire",
		},
	})
	require.NotNil(t, res.Spell)
	assert.Equal(t, 1, res.Spell.SlotsLeft)
	require.Len(t, res.Spell.Targets, 1)
	assert.Positive(t, res.Spell.Targets[0].Damage)
}

func TestCastSpell_OutOfRangeMutatesNothing(t *testing.T) {
	f := newFixture(t)
	start := f.foe.HP

	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeCastSpell, Target: "foe",
		Spell: &action.SpellParams{
			Name: "scorching bolt", SlotLevel: 1, RangeFeet: 5 - 1,
			DamageExpr: "2d6",
		},
	})
	require.True(t, errors.IsRuleViolation(err))
	assert.Equal(t, start, f.foe.HP)
	assert.Equal(t, 2, f.ally.SpellSlots[1], "slot not expended on failure")
	assert.False(t, f.ally.ActionUsed)
}

func TestCastSpell_NoSlotRemaining(t *testing.T) {
	f := newFixture(t)
	f.ally.SpellSlots[1] = 0

	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeCastSpell, Target: "foe",
		Spell: &action.SpellParams{Name: "scorching bolt", SlotLevel: 1, DamageExpr: "2d6"},
	})
	assert.True(t, errors.IsRuleViolation(err))
}

func TestCastSpell_AreaSaveWithCover(t *testing.T) {
	// One shared d6 face for spell damage: 4 per die.
	f := newFixture(t, 4)
	f.foe.Cover = geometry.CoverThreeQuarters

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeCastSpell,
		Spell: &action.SpellParams{
			Name: "fireball", SlotLevel: 1, RangeFeet: 60,
			Shape: "sphere", SizeFeet: 10,
			Origin:   &geometry.Point{X: 6, Y: 5},
			SaveType: "dexterity", SaveDC: 15, HalfOnSave: true,
			DamageExpr: "2d6", DamageType: "fire",
		},
		Overrides: action.Overrides{SaveRolls: map[string]int{"foe": 8, "ally": 2}},
	})

	require.NotNil(t, res.Spell)
	byID := map[string]action.SpellTarget{}
	for _, st := range res.Spell.Targets {
		byID[st.ID] = st
	}

	foe := byID["foe"]
	require.NotNil(t, foe.Save)
	// 8 + 5 three-quarters cover = 13 vs DC 15: still a failure, but the
	// bonus applied because dexterity is a reflex-type save.
	assert.Equal(t, 5, foe.Save.CoverBonus)
	assert.Equal(t, 13, foe.Save.Total)
	assert.False(t, foe.Save.Success)
	assert.Equal(t, 7, foe.Damage, "full damage 8 clamps at 7 HP")

	ally := byID["ally"]
	assert.Equal(t, 0, ally.Save.CoverBonus, "no declared cover")
	assert.False(t, ally.Save.Success)
	assert.Equal(t, 8, ally.Damage)
}

func TestCastSpell_FortitudeSaveIgnoresCover(t *testing.T) {
	f := newFixture(t)
	f.foe.Cover = geometry.CoverHalf

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeCastSpell, Target: "foe",
		Spell: &action.SpellParams{
			Name: "poison ray", SlotLevel: 0, RangeFeet: 30,
			SaveType: "constitution", SaveDC: 12,
			Condition: "poisoned", ConditionRounds: 3,
		},
		Overrides: action.Overrides{SaveRolls: map[string]int{"foe": 11}},
	})

	st := res.Spell.Targets[0]
	assert.Equal(t, 0, st.Save.CoverBonus, "cover never helps fortitude-type saves")
	assert.False(t, st.Save.Success)
	assert.Equal(t, "poisoned", st.Condition)
	assert.True(t, f.enc.Conditions().Has("foe", condition.Poisoned))
}

func TestCastSpell_AutoFailSave(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.enc.Conditions().Add("foe", condition.Paralyzed, 1, condition.DurationUntilRemoved, "test"))

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeCastSpell, Target: "foe",
		Spell: &action.SpellParams{
			Name: "trip wire", SlotLevel: 0, SaveType: "dexterity", SaveDC: 5,
			Condition: "prone",
		},
	})
	st := res.Spell.Targets[0]
	assert.True(t, st.Save.AutoFailed)
	assert.False(t, st.Save.Success)
}

func TestCastSpell_HealingRevivesTheDying(t *testing.T) {
	f := newFixture(t, 3)

	f.enc.Lock()
	f.foe.HP = 0
	f.enc.HandleZeroHP(f.foe, "test")
	f.foe.DeathSaveFailures = 1
	f.enc.Unlock()

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeCastSpell, Target: "foe",
		Spell: &action.SpellParams{Name: "healing word", SlotLevel: 1, HealExpr: "1d4+2"},
	})

	st := res.Spell.Targets[0]
	assert.Equal(t, 5, st.Healed)
	assert.Equal(t, 5, f.foe.HP)
	assert.False(t, f.enc.Conditions().Has("foe", condition.Dying))
	assert.False(t, f.enc.Conditions().Has("foe", condition.Unconscious))
	assert.Equal(t, 0, f.foe.DeathSaveFailures, "coming back up resets the death-save counters")
	assert.Equal(t, 1, f.ally.SpellSlots[1])

	sum, err := f.reg.End(f.enc.ID(), "healed up")
	require.NoError(t, err)
	assert.Equal(t, 5, sum.DamageHealed["ally"])
	assert.Equal(t, "ally", sum.MVP)
	assert.Equal(t, "most healing done", sum.MVPReason)
}

func TestGrapple_AppliesConditionAndZeroesSpeed(t *testing.T) {
	f := newFixture(t)

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeGrapple, Target: "foe",
		Overrides: action.Overrides{CheckRoll: intp(15), TargetCheckRoll: intp(10)},
	})

	require.NotNil(t, res.Contest)
	assert.True(t, res.Contest.Success)
	assert.Equal(t, 19, res.Contest.ActorTotal)
	assert.Equal(t, 11, res.Contest.TargetTotal)
	assert.True(t, f.enc.Conditions().Has("foe", condition.Grappled))
	assert.Equal(t, 0, f.enc.EffectiveStats(f.foe).Speed)
}

func TestContest_TiesGoToDefender(t *testing.T) {
	f := newFixture(t)

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeGrapple, Target: "foe",
		Overrides: action.Overrides{CheckRoll: intp(5), TargetCheckRoll: intp(8)},
	})
	assert.False(t, res.Contest.Success, "9 vs 9 is a defender win")
	assert.False(t, f.enc.Conditions().Has("foe", condition.Grappled))
}

func TestShove_PushDisplacesTarget(t *testing.T) {
	f := newFixture(t)

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeShove, Target: "foe", Shove: action.ShovePush,
		Overrides: action.Overrides{CheckRoll: intp(18), TargetCheckRoll: intp(3)},
	})
	require.NotNil(t, res.Contest.PushedTo)
	assert.Equal(t, geometry.Point{X: 7, Y: 5}, f.foe.Position)
}

func TestShove_DefaultKnocksProne(t *testing.T) {
	f := newFixture(t)

	res := f.execute(t, action.Request{
		Actor: "ally", Type: action.TypeShove, Target: "foe",
		Overrides: action.Overrides{CheckRoll: intp(18), TargetCheckRoll: intp(3)},
	})
	assert.Equal(t, string(condition.Prone), res.Contest.Applied)
	assert.True(t, f.enc.Conditions().Has("foe", condition.Prone))
}

func TestShove_BlockedPushFailsBeforeRolling(t *testing.T) {
	f := newFixture(t)
	f.enc.Terrain().Set(geometry.Point{X: 7, Y: 5}, geometry.CellObstacle)

	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeShove,
		Target: "foe", Shove: action.ShovePush,
	})
	assert.True(t, errors.IsRuleViolation(err))
	assert.False(t, f.ally.ActionUsed)
}

func TestSimpleActions(t *testing.T) {
	f := newFixture(t)

	res := f.execute(t, action.Request{Actor: "ally", Type: action.TypeHelp, Target: "foe"})
	assert.Len(t, res.Events, 1)
	assert.True(t, f.enc.Conditions().Has("foe", condition.Custom("helped")))

	// Help spent the action, so anything else this turn is an economy
	// conflict regardless of its own parameters.
	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeReady,
	})
	assert.True(t, errors.IsConflict(err), "action already spent this turn")

	// With the action still unspent, a ready without a description fails
	// structural validation instead.
	f2 := newFixture(t)
	_, err = f2.pl.Execute(context.Background(), action.Request{
		EncounterID: f2.enc.ID(), Actor: "ally", Type: action.TypeReady,
	})
	assert.True(t, errors.IsValidation(err), "ready needs a description")
}

func TestExecute_LethalExhaustionKillsBeforeActing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.enc.Conditions().Add("ally", condition.Exhaustion, 6, condition.DurationUntilLongRest, "forced march"))

	_, err := f.pl.Execute(context.Background(), action.Request{
		EncounterID: f.enc.ID(), Actor: "ally", Type: action.TypeAttack, Target: "foe",
	})
	assert.True(t, errors.IsRuleViolation(err))
	assert.True(t, f.ally.Dead, "exhaustion at the maximum level is death, not just incapacity")
	assert.Equal(t, 0, f.ally.HP)
	assert.False(t, f.enc.Conditions().Has("ally", condition.Exhaustion))
}

func TestExecute_ConcurrentActionsOnSameEncounterSerialize(t *testing.T) {
	f := newFixture(t)
	f.foe.MaxHP = 1000
	f.foe.HP = 1000

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Direct damage through the encounter lock simulates concurrent
			// mutation; the attack action itself is once-per-turn.
			f.enc.Lock()
			f.foe.ApplyDamage(1, "", 1000)
			f.enc.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000-n, f.foe.HP, "no lost updates")
}
