package geometry

import (
	"fmt"
	"math"
	"sort"
)

// Shape identifies an area-of-effect template.
type Shape int

const (
	// ShapeSphere affects cells within a radius of the origin, in all directions.
	ShapeSphere Shape = iota
	// ShapeCube affects a cube of the given side length centered on the origin.
	ShapeCube
	// ShapeCone widens as it extends: at any distance along the axis the
	// half-width equals half that distance.
	ShapeCone
	// ShapeLine is a cell-wide beam from the origin toward the direction.
	ShapeLine
	// ShapeCylinder affects a radius around the origin on the ground plane,
	// extending the given height upward.
	ShapeCylinder
)

// String returns the template label.
func (s Shape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapeCube:
		return "cube"
	case ShapeCone:
		return "cone"
	case ShapeLine:
		return "line"
	case ShapeCylinder:
		return "cylinder"
	default:
		return "unknown"
	}
}

// ParseShape converts a template label into a Shape.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "sphere":
		return ShapeSphere, nil
	case "cube":
		return ShapeCube, nil
	case "cone":
		return ShapeCone, nil
	case "line":
		return ShapeLine, nil
	case "cylinder":
		return ShapeCylinder, nil
	default:
		return ShapeSphere, fmt.Errorf("unknown shape %q", s)
	}
}

// PointsInShape returns the terrain cells covered by a template.
// sizeFeet is the radius for sphere/cylinder, the side for cube, and the
// length for cone/line. direction orients cones and lines and is ignored for
// the other templates; it must not equal origin for cone/line.
//
// Only in-bounds ground-plane cells are returned, sorted row-major, so the
// result is deterministic for a given input.
//
// Precondition: t must be non-nil; sizeFeet >= cellSize; cellSize >= 1.
func PointsInShape(origin Point, shape Shape, sizeFeet int, direction Point, t *Terrain, cellSize int) ([]Point, error) {
	if sizeFeet < cellSize {
		return nil, fmt.Errorf("shape size %d ft smaller than one cell (%d ft)", sizeFeet, cellSize)
	}
	if (shape == ShapeCone || shape == ShapeLine) && direction == origin {
		return nil, fmt.Errorf("%s template requires a direction distinct from its origin", shape)
	}

	radiusCells := sizeFeet / cellSize
	var out []Point
	for y := origin.Y - radiusCells; y <= origin.Y+radiusCells; y++ {
		for x := origin.X - radiusCells; x <= origin.X+radiusCells; x++ {
			p := Point{X: x, Y: y, Z: origin.Z}
			if !t.InBounds(p) {
				continue
			}
			if inShape(origin, p, shape, sizeFeet, direction, cellSize) {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out, nil
}

func inShape(origin, p Point, shape Shape, sizeFeet int, direction Point, cellSize int) bool {
	switch shape {
	case ShapeSphere, ShapeCylinder:
		// Cylinder membership on the ground plane matches the sphere; the
		// height component only matters for elevated targets, which share the
		// ground cell in this grid model.
		return Distance(origin, p, Euclidean, cellSize) <= float64(sizeFeet)
	case ShapeCube:
		half := sizeFeet / 2
		return abs(p.X-origin.X)*cellSize <= half && abs(p.Y-origin.Y)*cellSize <= half
	case ShapeCone:
		along, perp := decompose(origin, p, direction, cellSize)
		if along <= 0 || along > float64(sizeFeet) {
			return false
		}
		return perp <= along/2
	case ShapeLine:
		along, perp := decompose(origin, p, direction, cellSize)
		if along < 0 || along > float64(sizeFeet) {
			return false
		}
		return perp <= float64(cellSize)/2
	default:
		return false
	}
}

// decompose projects origin->p onto the origin->direction axis, returning the
// distance along the axis and the perpendicular offset, both in feet.
func decompose(origin, p, direction Point, cellSize int) (along, perp float64) {
	ax := float64(direction.X - origin.X)
	ay := float64(direction.Y - origin.Y)
	norm := math.Sqrt(ax*ax + ay*ay)
	ax, ay = ax/norm, ay/norm

	vx := float64(p.X-origin.X) * float64(cellSize)
	vy := float64(p.Y-origin.Y) * float64(cellSize)
	along = vx*ax + vy*ay
	perp = math.Abs(vx*ay - vy*ax)
	return along, perp
}
