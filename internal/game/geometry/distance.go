package geometry

import (
	"fmt"
	"math"
)

// DistanceMode selects the metric used to measure between two grid cells.
type DistanceMode int

const (
	// Euclidean is the straight-line metric.
	Euclidean DistanceMode = iota
	// GridStairstep is the tabletop grid metric where every second diagonal
	// step costs double (the 5-10-5 convention).
	GridStairstep
	// GridFlat is the alternate grid metric where every diagonal costs the
	// same as a straight step.
	GridFlat
)

// ParseDistanceMode converts a config label into a DistanceMode.
func ParseDistanceMode(s string) (DistanceMode, error) {
	switch s {
	case "euclidean":
		return Euclidean, nil
	case "stairstep":
		return GridStairstep, nil
	case "flat":
		return GridFlat, nil
	default:
		return Euclidean, fmt.Errorf("unknown distance mode %q", s)
	}
}

// Distance measures between two cells in feet under the given mode.
// cellSize is the width of one cell in feet.
//
// The stairstep metric folds elevation in with the same alternating-diagonal
// rule: the largest axis delta sets the step count and the combined smaller
// deltas are the diagonal component, every second one costing double.
//
// Precondition: cellSize >= 1.
// Postcondition: Returns >= 0; grid modes return whole multiples of cellSize.
func Distance(a, b Point, mode DistanceMode, cellSize int) float64 {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	dz := abs(a.Z - b.Z)

	switch mode {
	case GridFlat:
		return float64(cellSize * maxInt(dx, maxInt(dy, dz)))
	case GridStairstep:
		longest := maxInt(dx, maxInt(dy, dz))
		diagonals := dx + dy + dz - longest
		return float64(cellSize * (longest + diagonals/2))
	default:
		fx, fy, fz := float64(dx), float64(dy), float64(dz)
		return float64(cellSize) * math.Sqrt(fx*fx+fy*fy+fz*fz)
	}
}
