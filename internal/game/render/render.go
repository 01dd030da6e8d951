// Package render projects an encounter onto a textual battlefield grid. It
// is strictly read-only: it takes the encounter lock for a consistent
// snapshot and never mutates state.
package render

import (
	"fmt"
	"strings"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/encounter"
	"github.com/gridforge/skirmish/internal/game/geometry"
)

// Viewport crops the rendered grid to an inclusive cell range.
type Viewport struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

// Options controls rendering. A nil Viewport renders the whole battlefield;
// Legend appends a per-participant key with HP, position, and active
// conditions.
type Options struct {
	Viewport *Viewport
	Legend   bool
}

var cellGlyphs = map[geometry.CellKind]byte{
	geometry.CellOpen:      '.',
	geometry.CellObstacle:  '#',
	geometry.CellDifficult: ',',
	geometry.CellWater:     '~',
	geometry.CellHazard:    '!',
}

// markers are assigned to participants in initiative order.
const markers = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Battlefield renders the encounter grid. Participants are drawn over
// terrain with one letter each in initiative order; downed participants
// render lowercase and dead ones as 'x'.
//
// Precondition: the caller does not hold the encounter lock.
func Battlefield(enc *encounter.Encounter, opts Options) (string, error) {
	enc.Lock()
	defer enc.Unlock()

	t := enc.Terrain()
	vp := Viewport{MinX: 0, MinY: 0, MaxX: t.Width - 1, MaxY: t.Height - 1}
	if opts.Viewport != nil {
		vp = *opts.Viewport
		if vp.MinX > vp.MaxX || vp.MinY > vp.MaxY {
			return "", errors.Validationf("empty viewport %+v", vp)
		}
		vp = clamp(vp, t.Width, t.Height)
	}

	participants := enc.Participants()
	marks := make(map[geometry.Point]byte, len(participants))
	for i, p := range participants {
		m := byte('?')
		if i < len(markers) {
			m = markers[i]
		}
		switch {
		case p.IsDead():
			m = 'x'
		case p.IsDown():
			m = m - 'A' + 'a'
		}
		marks[p.Position] = m
	}

	var b strings.Builder
	fmt.Fprintf(&b, "round %d, %s light, %s\n", enc.Round(), enc.Lighting(), enc.State())
	for y := vp.MinY; y <= vp.MaxY; y++ {
		for x := vp.MinX; x <= vp.MaxX; x++ {
			p := geometry.Point{X: x, Y: y}
			if m, ok := marks[p]; ok {
				b.WriteByte(m)
			} else {
				b.WriteByte(cellGlyphs[t.At(p)])
			}
		}
		b.WriteByte('\n')
	}

	if opts.Legend {
		b.WriteString("\nlegend:\n")
		current := enc.Current().ID
		for i, p := range participants {
			m := byte('?')
			if i < len(markers) {
				m = markers[i]
			}
			turn := " "
			if p.ID == current && enc.State() == encounter.StateActive {
				turn = "*"
			}
			fmt.Fprintf(&b, "%s %c %s (%s) %d/%d HP at %s",
				turn, m, p.Name, p.Faction, p.HP, p.MaxHP, p.Position)
			if conds := enc.Conditions().Query(p.ID); len(conds) > 0 {
				labels := make([]string, 0, len(conds))
				for _, c := range conds {
					labels = append(labels, c.Kind.Label())
				}
				fmt.Fprintf(&b, " [%s]", strings.Join(labels, ", "))
			}
			if p.IsDead() {
				b.WriteString(" (dead)")
			}
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func clamp(vp Viewport, width, height int) Viewport {
	if vp.MinX < 0 {
		vp.MinX = 0
	}
	if vp.MinY < 0 {
		vp.MinY = 0
	}
	if vp.MaxX > width-1 {
		vp.MaxX = width - 1
	}
	if vp.MaxY > height-1 {
		vp.MaxY = height - 1
	}
	return vp
}
