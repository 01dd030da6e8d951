package geometry

import "fmt"

// CellKind classifies one terrain cell.
type CellKind int

const (
	// CellOpen is normal, unobstructed ground.
	CellOpen CellKind = iota
	// CellObstacle is impassable and blocks line of sight.
	CellObstacle
	// CellDifficult costs double movement.
	CellDifficult
	// CellWater costs double movement (wading).
	CellWater
	// CellHazard is passable at normal cost; entering it has rule
	// consequences handled by the action pipeline, not by geometry.
	CellHazard
)

// String returns the cell kind label used in content files and render legends.
func (k CellKind) String() string {
	switch k {
	case CellOpen:
		return "open"
	case CellObstacle:
		return "obstacle"
	case CellDifficult:
		return "difficult"
	case CellWater:
		return "water"
	case CellHazard:
		return "hazard"
	default:
		return "unknown"
	}
}

// ParseCellKind converts a label back into a CellKind.
func ParseCellKind(s string) (CellKind, error) {
	switch s {
	case "open":
		return CellOpen, nil
	case "obstacle":
		return CellObstacle, nil
	case "difficult":
		return CellDifficult, nil
	case "water":
		return CellWater, nil
	case "hazard":
		return CellHazard, nil
	default:
		return CellOpen, fmt.Errorf("unknown cell kind %q", s)
	}
}

// Terrain is a bounded width x height grid of cell classifications.
// The zero elevation plane is the only one with terrain; geometry functions
// treat any Z as sharing the ground-plane classification.
type Terrain struct {
	Width  int
	Height int
	cells  []CellKind // row-major, all CellOpen by default
}

// NewTerrain creates an all-open terrain grid.
//
// Precondition: width and height must be >= 1.
// Postcondition: Every cell is CellOpen.
func NewTerrain(width, height int) (*Terrain, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("terrain bounds must be >= 1x1, got %dx%d", width, height)
	}
	return &Terrain{
		Width:  width,
		Height: height,
		cells:  make([]CellKind, width*height),
	}, nil
}

// InBounds reports whether p lies inside the grid. Elevation is unbounded.
func (t *Terrain) InBounds(p Point) bool {
	return p.X >= 0 && p.X < t.Width && p.Y >= 0 && p.Y < t.Height
}

// At returns the classification of the cell containing p.
//
// Precondition: t.InBounds(p).
func (t *Terrain) At(p Point) CellKind {
	return t.cells[p.Y*t.Width+p.X]
}

// Set classifies the cell containing p.
//
// Precondition: t.InBounds(p).
func (t *Terrain) Set(p Point, kind CellKind) {
	t.cells[p.Y*t.Width+p.X] = kind
}

// Passable reports whether a combatant may enter the cell at p.
func (t *Terrain) Passable(p Point) bool {
	return t.InBounds(p) && t.At(p) != CellObstacle
}

// CostMultiplier returns the movement cost multiplier for entering p:
// 2 for difficult and water cells, 1 otherwise.
//
// Precondition: t.InBounds(p).
func (t *Terrain) CostMultiplier(p Point) int {
	switch t.At(p) {
	case CellDifficult, CellWater:
		return 2
	default:
		return 1
	}
}

// Clone returns an independent copy of the terrain grid.
func (t *Terrain) Clone() *Terrain {
	cells := make([]CellKind, len(t.cells))
	copy(cells, t.cells)
	return &Terrain{Width: t.Width, Height: t.Height, cells: cells}
}
