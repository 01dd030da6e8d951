package engineserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/action"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/encounter"
	"github.com/gridforge/skirmish/internal/game/geometry"
	"github.com/gridforge/skirmish/internal/game/render"
)

// ParticipantInput mirrors encounter.ParticipantSpec for tool callers.
type ParticipantInput struct {
	ID               string   `json:"id"`
	Name             string   `json:"name,omitempty"`
	CharacterKey     string   `json:"character_key,omitempty"`
	MaxHP            int      `json:"max_hp,omitempty"`
	AC               int      `json:"ac,omitempty"`
	Speed            int      `json:"speed,omitempty"`
	InitiativeMod    int      `json:"initiative_mod,omitempty"`
	ManualInitiative *int     `json:"manual_initiative,omitempty"`
	X                int      `json:"x"`
	Y                int      `json:"y"`
	Z                int      `json:"z,omitempty"`
	Enemy            bool     `json:"enemy,omitempty"`
	Player           bool     `json:"player,omitempty"`
	AttackBonus      int      `json:"attack_bonus,omitempty"`
	DamageExpr       string   `json:"damage_expr,omitempty"`
	DamageType       string   `json:"damage_type,omitempty"`
	CheckBonus       int      `json:"check_bonus,omitempty"`
	Resistances      []string `json:"resistances,omitempty"`
	Immunities       []string `json:"immunities,omitempty"`
	Vulnerabilities  []string `json:"vulnerabilities,omitempty"`
	// SpellSlots maps slot level to remaining count. Keys are strings
	// because JSON objects cannot key on numbers.
	SpellSlots map[string]int `json:"spell_slots,omitempty"`
}

func (in ParticipantInput) spec() encounter.ParticipantSpec {
	faction := encounter.FactionAlly
	if in.Enemy {
		faction = encounter.FactionEnemy
	}
	return encounter.ParticipantSpec{
		ID:               in.ID,
		Name:             in.Name,
		CharacterKey:     in.CharacterKey,
		MaxHP:            in.MaxHP,
		AC:               in.AC,
		Speed:            in.Speed,
		InitiativeMod:    in.InitiativeMod,
		ManualInitiative: in.ManualInitiative,
		Position:         geometry.Point{X: in.X, Y: in.Y, Z: in.Z},
		Faction:          faction,
		Player:           in.Player,
		AttackBonus:      in.AttackBonus,
		DamageExpr:       in.DamageExpr,
		DamageType:       in.DamageType,
		CheckBonus:       in.CheckBonus,
		Resistances:      in.Resistances,
		Immunities:       in.Immunities,
		Vulnerabilities:  in.Vulnerabilities,
		SpellSlots:       slotLevels(in.SpellSlots),
	}
}

func slotLevels(slots map[string]int) map[int]int {
	if len(slots) == 0 {
		return nil
	}
	out := make(map[int]int, len(slots))
	for k, n := range slots {
		if level, err := strconv.Atoi(k); err == nil && level > 0 {
			out[level] = n
		}
	}
	return out
}

// CellInput reclassifies one terrain cell.
type CellInput struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind string `json:"kind"`
}

type createEncounterInput struct {
	Participants []ParticipantInput `json:"participants"`
	Width        int                `json:"width"`
	Height       int                `json:"height"`
	Cells        []CellInput        `json:"cells,omitempty"`
	Lighting     string             `json:"lighting,omitempty"`
}

type createEncounterResult struct {
	EncounterID string        `json:"encounter_id"`
	View        EncounterView `json:"view"`
}

type getEncounterInput struct {
	EncounterID string `json:"encounter_id"`
	Verbosity   string `json:"verbosity,omitempty"`
}

type addParticipantInput struct {
	EncounterID string           `json:"encounter_id"`
	Participant ParticipantInput `json:"participant"`
}

type addParticipantResult struct {
	ID         string `json:"id"`
	Initiative int    `json:"initiative"`
}

type executeActionInput struct {
	action.Request
}

type advanceTurnInput struct {
	EncounterID string `json:"encounter_id"`
}

type modifyTerrainInput struct {
	EncounterID string      `json:"encounter_id"`
	Cells       []CellInput `json:"cells"`
}

type okResult struct {
	Summary string `json:"summary"`
}

type endEncounterInput struct {
	EncounterID string `json:"encounter_id"`
	Outcome     string `json:"outcome,omitempty"`
}

type conditionInput struct {
	EncounterID string `json:"encounter_id"`
	Target      string `json:"target"`
	Kind        string `json:"kind,omitempty"`
	Severity    int    `json:"severity,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	Source      string `json:"source,omitempty"`
}

type queryConditionsResult struct {
	Target     string          `json:"target"`
	Conditions []ConditionView `json:"conditions"`
}

type deathSaveInput struct {
	EncounterID string `json:"encounter_id"`
	Participant string `json:"participant"`
	Roll        *int   `json:"roll,omitempty"`
}

type renderInput struct {
	EncounterID string           `json:"encounter_id"`
	Legend      bool             `json:"legend,omitempty"`
	Viewport    *render.Viewport `json:"viewport,omitempty"`
}

type renderResult struct {
	Grid string `json:"grid"`
}

func (s *Server) handleCreateEncounter(ctx context.Context, _ *mcp.CallToolRequest, in createEncounterInput) (*mcp.CallToolResult, createEncounterResult, error) {
	specs := make([]encounter.ParticipantSpec, 0, len(in.Participants))
	for _, p := range in.Participants {
		specs = append(specs, p.spec())
	}
	terrain := encounter.TerrainSpec{Width: in.Width, Height: in.Height}
	if len(in.Cells) > 0 {
		terrain.Cells = make(map[geometry.Point]geometry.CellKind, len(in.Cells))
		for _, c := range in.Cells {
			kind, err := geometry.ParseCellKind(c.Kind)
			if err != nil {
				return nil, createEncounterResult{}, errors.Validationf("cell (%d,%d): %v", c.X, c.Y, err)
			}
			terrain.Cells[geometry.Point{X: c.X, Y: c.Y}] = kind
		}
	}
	enc, err := s.registry.Create(ctx, specs, terrain, in.Lighting)
	if err != nil {
		return nil, createEncounterResult{}, err
	}
	return nil, createEncounterResult{
		EncounterID: enc.ID(),
		View:        buildView(enc, VerbositySummary),
	}, nil
}

func (s *Server) handleGetEncounter(_ context.Context, _ *mcp.CallToolRequest, in getEncounterInput) (*mcp.CallToolResult, EncounterView, error) {
	v, err := parseVerbosity(in.Verbosity)
	if err != nil {
		return nil, EncounterView{}, err
	}
	enc, err := s.registry.Get(in.EncounterID)
	if err != nil {
		return nil, EncounterView{}, err
	}
	return nil, buildView(enc, v), nil
}

func (s *Server) handleAddParticipant(ctx context.Context, _ *mcp.CallToolRequest, in addParticipantInput) (*mcp.CallToolResult, addParticipantResult, error) {
	p, err := s.registry.AddParticipant(ctx, in.EncounterID, in.Participant.spec())
	if err != nil {
		return nil, addParticipantResult{}, err
	}
	return nil, addParticipantResult{ID: p.ID, Initiative: p.Initiative}, nil
}

func (s *Server) handleExecuteAction(ctx context.Context, _ *mcp.CallToolRequest, in executeActionInput) (*mcp.CallToolResult, action.Result, error) {
	res, err := s.pipeline.Execute(ctx, in.Request)
	if err != nil {
		return nil, action.Result{}, err
	}
	return nil, *res, nil
}

func (s *Server) handleAdvanceTurn(_ context.Context, _ *mcp.CallToolRequest, in advanceTurnInput) (*mcp.CallToolResult, encounter.TurnTransition, error) {
	tr, err := s.registry.Advance(in.EncounterID)
	if err != nil {
		return nil, encounter.TurnTransition{}, err
	}
	return nil, *tr, nil
}

func (s *Server) handleModifyTerrain(_ context.Context, _ *mcp.CallToolRequest, in modifyTerrainInput) (*mcp.CallToolResult, okResult, error) {
	if len(in.Cells) == 0 {
		return nil, okResult{}, errors.Validationf("modify-terrain requires at least one cell")
	}
	cells := make(map[geometry.Point]geometry.CellKind, len(in.Cells))
	for _, c := range in.Cells {
		kind, err := geometry.ParseCellKind(c.Kind)
		if err != nil {
			return nil, okResult{}, errors.Validationf("cell (%d,%d): %v", c.X, c.Y, err)
		}
		cells[geometry.Point{X: c.X, Y: c.Y}] = kind
	}
	if err := s.registry.ModifyTerrain(in.EncounterID, cells); err != nil {
		return nil, okResult{}, err
	}
	return nil, okResult{Summary: fmt.Sprintf("reclassified %d cells", len(cells))}, nil
}

func (s *Server) handleEndEncounter(_ context.Context, _ *mcp.CallToolRequest, in endEncounterInput) (*mcp.CallToolResult, encounter.Summary, error) {
	outcome := in.Outcome
	if outcome == "" {
		outcome = "ended"
	}
	sum, err := s.registry.End(in.EncounterID, outcome)
	if err != nil {
		return nil, encounter.Summary{}, err
	}
	return nil, *sum, nil
}

func (s *Server) handleAddCondition(_ context.Context, _ *mcp.CallToolRequest, in conditionInput) (*mcp.CallToolResult, okResult, error) {
	enc, target, err := s.lockTarget(in.EncounterID, in.Target)
	if err != nil {
		return nil, okResult{}, err
	}
	defer enc.Unlock()
	if enc.State() == encounter.StateEnded {
		return nil, okResult{}, errors.Conflictf("encounter %q has ended", enc.ID())
	}

	kind, err := parseKind(in.Kind)
	if err != nil {
		return nil, okResult{}, err
	}
	severity := in.Severity
	if severity == 0 {
		severity = 1
	}
	duration := in.Duration
	if duration == 0 {
		duration = condition.DurationUntilRemoved
	}
	if err := enc.Conditions().Add(target.ID, kind, severity, duration, in.Source); err != nil {
		return nil, okResult{}, err
	}
	enc.RecordConditionApplied(kind)
	if enc.SettleLethalConditions(target) {
		return nil, okResult{Summary: fmt.Sprintf("%s dies of %s", target.Name, kind.Label())}, nil
	}
	return nil, okResult{Summary: fmt.Sprintf("%s is now %s", target.Name, kind.Label())}, nil
}

func (s *Server) handleRemoveCondition(_ context.Context, _ *mcp.CallToolRequest, in conditionInput) (*mcp.CallToolResult, okResult, error) {
	enc, target, err := s.lockTarget(in.EncounterID, in.Target)
	if err != nil {
		return nil, okResult{}, err
	}
	defer enc.Unlock()
	if enc.State() == encounter.StateEnded {
		return nil, okResult{}, errors.Conflictf("encounter %q has ended", enc.ID())
	}

	kind, err := parseKind(in.Kind)
	if err != nil {
		return nil, okResult{}, err
	}
	if !enc.Conditions().Remove(target.ID, kind) {
		return nil, okResult{}, errors.NotFoundf("%q has no %s condition", target.ID, kind.Label())
	}
	return nil, okResult{Summary: fmt.Sprintf("%s is no longer %s", target.Name, kind.Label())}, nil
}

func (s *Server) handleQueryConditions(_ context.Context, _ *mcp.CallToolRequest, in conditionInput) (*mcp.CallToolResult, queryConditionsResult, error) {
	enc, target, err := s.lockTarget(in.EncounterID, in.Target)
	if err != nil {
		return nil, queryConditionsResult{}, err
	}
	defer enc.Unlock()

	return nil, queryConditionsResult{
		Target:     target.ID,
		Conditions: conditionViews(enc.Conditions().Query(target.ID)),
	}, nil
}

func (s *Server) handleRollDeathSave(_ context.Context, _ *mcp.CallToolRequest, in deathSaveInput) (*mcp.CallToolResult, encounter.DeathSaveResult, error) {
	enc, err := s.registry.Get(in.EncounterID)
	if err != nil {
		return nil, encounter.DeathSaveResult{}, err
	}
	res, err := enc.RollDeathSave(in.Participant, in.Roll)
	if err != nil {
		return nil, encounter.DeathSaveResult{}, err
	}
	return nil, *res, nil
}

func (s *Server) handleRenderBattlefield(_ context.Context, _ *mcp.CallToolRequest, in renderInput) (*mcp.CallToolResult, renderResult, error) {
	enc, err := s.registry.Get(in.EncounterID)
	if err != nil {
		return nil, renderResult{}, err
	}
	grid, err := render.Battlefield(enc, render.Options{Legend: in.Legend, Viewport: in.Viewport})
	if err != nil {
		return nil, renderResult{}, err
	}
	return nil, renderResult{Grid: grid}, nil
}

// parseKind maps an inbound condition name to a core kind, falling back to
// a free-form custom kind for anything outside the vocabulary.
func parseKind(raw string) (condition.Kind, error) {
	if raw == "" {
		return "", errors.Validationf("condition kind is required")
	}
	kind := condition.Kind(raw)
	if kind.Valid() {
		return kind, nil
	}
	return condition.Custom(raw), nil
}

// lockTarget fetches the encounter, locks it, and resolves the target.
// The caller unlocks on success; on error the lock is already released.
func (s *Server) lockTarget(encounterID, target string) (*encounter.Encounter, *encounter.Participant, error) {
	enc, err := s.registry.Get(encounterID)
	if err != nil {
		return nil, nil, err
	}
	enc.Lock()
	p, err := enc.Find(target)
	if err != nil {
		enc.Unlock()
		return nil, nil, err
	}
	return enc, p, nil
}
