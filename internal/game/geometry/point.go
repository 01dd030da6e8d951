// Package geometry implements the spatial engine for the skirmish rules:
// distance metrics, area-of-effect templates, line-of-sight and cover
// resolution, and cost-aware reachability over a terrain grid. Everything in
// this package is a deterministic, side-effect-free function over its inputs;
// nothing here reads or writes encounter state.
package geometry

import "fmt"

// Point is a grid cell position. Z is elevation in cells; ground level is 0.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// String returns "(x,y,z)".
func (p Point) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Adjacent reports whether p and q are within one cell of each other on every
// axis and not the same cell. This is the melee-reach test for 5 ft reach.
func Adjacent(p, q Point) bool {
	if p == q {
		return false
	}
	return abs(p.X-q.X) <= 1 && abs(p.Y-q.Y) <= 1 && abs(p.Z-q.Z) <= 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
