package engineserver

import (
	"sort"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/encounter"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

// Verbosity selects how much encounter detail a read returns. It is purely
// a projection concern and never affects the underlying state.
type Verbosity string

const (
	// VerbosityMinimal returns ids and the turn cursor only.
	VerbosityMinimal Verbosity = "minimal"
	// VerbositySummary adds per-participant HP, position, and conditions.
	VerbositySummary Verbosity = "summary"
	// VerbosityFull adds resistances, death-save state, economy flags, and
	// the terrain dump.
	VerbosityFull Verbosity = "full"
)

func parseVerbosity(s string) (Verbosity, error) {
	switch v := Verbosity(s); v {
	case "":
		return VerbositySummary, nil
	case VerbosityMinimal, VerbositySummary, VerbosityFull:
		return v, nil
	default:
		return "", errors.Validationf("unknown verbosity %q", s)
	}
}

// ConditionView is one active condition on a participant.
type ConditionView struct {
	Kind     string `json:"kind"`
	Severity int    `json:"severity,omitempty"`
	Duration int    `json:"duration"`
	Source   string `json:"source,omitempty"`
}

// ParticipantView projects one participant at the requested verbosity.
type ParticipantView struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	// Summary fields.
	HP         int             `json:"hp,omitempty"`
	MaxHP      int             `json:"max_hp,omitempty"`
	TempHP     int             `json:"temp_hp,omitempty"`
	AC         int             `json:"ac,omitempty"`
	Speed      int             `json:"speed,omitempty"`
	Initiative int             `json:"initiative,omitempty"`
	Position   *geometry.Point `json:"position,omitempty"`
	Faction    string          `json:"faction,omitempty"`
	Conditions []ConditionView `json:"conditions,omitempty"`
	Down       bool            `json:"down,omitempty"`
	Dead       bool            `json:"dead,omitempty"`

	// Full-dump fields.
	Player             bool     `json:"player,omitempty"`
	Cover              string   `json:"cover,omitempty"`
	Resistances        []string `json:"resistances,omitempty"`
	Immunities         []string `json:"immunities,omitempty"`
	Vulnerabilities    []string `json:"vulnerabilities,omitempty"`
	DeathSaveSuccesses int      `json:"death_save_successes,omitempty"`
	DeathSaveFailures  int      `json:"death_save_failures,omitempty"`
	ActionUsed         bool     `json:"action_used,omitempty"`
	ReactionUsed       bool     `json:"reaction_used,omitempty"`
	MovementUsed       int      `json:"movement_used,omitempty"`
	EffectiveSpeed     int      `json:"effective_speed,omitempty"`
}

// TerrainView is the full-dump terrain projection: non-open cells only.
type TerrainView struct {
	Width  int               `json:"width"`
	Height int               `json:"height"`
	Cells  map[string]string `json:"cells,omitempty"`
}

// EncounterView projects an encounter at the requested verbosity.
type EncounterView struct {
	ID           string             `json:"id"`
	State        string             `json:"state"`
	Round        int                `json:"round"`
	Current      string             `json:"current,omitempty"`
	Lighting     string             `json:"lighting,omitempty"`
	Participants []ParticipantView  `json:"participants,omitempty"`
	Terrain      *TerrainView       `json:"terrain,omitempty"`
	Summary      *encounter.Summary `json:"summary,omitempty"`
}

// buildView snapshots enc under its lock.
func buildView(enc *encounter.Encounter, v Verbosity) EncounterView {
	enc.Lock()
	defer enc.Unlock()

	view := EncounterView{
		ID:      enc.ID(),
		State:   enc.State().String(),
		Round:   enc.Round(),
		Summary: enc.Summary(),
	}
	if enc.State() == encounter.StateActive {
		view.Current = enc.Current().ID
	}

	for _, p := range enc.Participants() {
		pv := ParticipantView{ID: p.ID}
		if v != VerbosityMinimal {
			pos := p.Position
			pv.Name = p.Name
			pv.HP = p.HP
			pv.MaxHP = p.MaxHP
			pv.TempHP = p.TempHP
			pv.AC = p.AC
			pv.Speed = p.Speed
			pv.Initiative = p.Initiative
			pv.Position = &pos
			pv.Faction = p.Faction.String()
			pv.Down = p.IsDown()
			pv.Dead = p.IsDead()
			pv.Conditions = conditionViews(enc.Conditions().Query(p.ID))
		}
		if v == VerbosityFull {
			pv.Player = p.Player
			pv.Cover = p.Cover.String()
			pv.Resistances = setToList(p.Resistances)
			pv.Immunities = setToList(p.Immunities)
			pv.Vulnerabilities = setToList(p.Vulnerabilities)
			pv.DeathSaveSuccesses = p.DeathSaveSuccesses
			pv.DeathSaveFailures = p.DeathSaveFailures
			pv.ActionUsed = p.ActionUsed
			pv.ReactionUsed = p.ReactionUsed
			pv.MovementUsed = p.MovementUsed
			pv.EffectiveSpeed = enc.EffectiveStats(p).Speed
		}
		view.Participants = append(view.Participants, pv)
	}

	if v != VerbosityMinimal {
		view.Lighting = string(enc.Lighting())
	}
	if v == VerbosityFull {
		view.Terrain = terrainView(enc.Terrain())
	}
	return view
}

func conditionViews(active []*condition.ActiveCondition) []ConditionView {
	out := make([]ConditionView, 0, len(active))
	for _, ac := range active {
		out = append(out, ConditionView{
			Kind:     string(ac.Kind),
			Severity: ac.Severity,
			Duration: ac.RoundsRemaining,
			Source:   ac.Source,
		})
	}
	return out
}

func terrainView(t *geometry.Terrain) *TerrainView {
	tv := &TerrainView{Width: t.Width, Height: t.Height, Cells: map[string]string{}}
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			p := geometry.Point{X: x, Y: y}
			if kind := t.At(p); kind != geometry.CellOpen {
				tv.Cells[p.String()] = kind.String()
			}
		}
	}
	return tv
}

func setToList(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
