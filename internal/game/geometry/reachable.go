package geometry

import "container/heap"

// ReachableCells performs a cost-aware flood fill from origin and returns
// every cell reachable within budgetFeet of movement, mapped to its minimum
// path cost in feet. Diagonal steps follow the stairstep convention (every
// second diagonal costs double along any one path), difficult and water
// terrain cost double, obstacles are impassable, and occupied cells may not
// be entered. The origin itself is always present with cost 0.
//
// Precondition: t must be non-nil; t.InBounds(origin); cellSize >= 1.
// Postcondition: Every returned cost is <= budgetFeet; every returned cell is
// in bounds and passable.
func ReachableCells(origin Point, budgetFeet int, t *Terrain, occupied map[Point]bool, cellSize int) map[Point]int {
	// Costs are tracked in half-cell units so that the alternating-diagonal
	// rule stays integral: a straight step is 2 units, diagonals alternate
	// between 2 and 4 along a path.
	halfBudget := budgetFeet * 2 / cellSize

	// Search states pair the cell with the diagonal parity: two paths can
	// reach the same cell at the same cost yet price their next diagonal
	// differently, so neither may prune the other.
	best := map[diagState]int{{p: origin}: 0}
	pq := &nodeHeap{}
	heap.Push(pq, nodeEntry{p: origin, cost: 0, oddDiag: false})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(nodeEntry)
		if cost, ok := best[diagState{p: cur.p, odd: cur.oddDiag}]; ok && cur.cost > cost {
			continue
		}
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				next := Point{X: cur.p.X + dx, Y: cur.p.Y + dy, Z: origin.Z}
				if !t.Passable(next) || occupied[next] {
					continue
				}
				step := 2
				odd := cur.oddDiag
				if dx != 0 && dy != 0 {
					if odd {
						step = 4
					}
					odd = !odd
				}
				step *= t.CostMultiplier(next)
				total := cur.cost + step
				if total > halfBudget {
					continue
				}
				state := diagState{p: next, odd: odd}
				if prev, ok := best[state]; ok && prev <= total {
					continue
				}
				best[state] = total
				heap.Push(pq, nodeEntry{p: next, cost: total, oddDiag: odd})
			}
		}
	}

	out := make(map[Point]int, len(best))
	for s, halfCost := range best {
		feet := halfCost * cellSize / 2
		if prev, ok := out[s.p]; !ok || feet < prev {
			out[s.p] = feet
		}
	}
	return out
}

// PathCost returns the minimum movement cost in feet from origin to dest
// within budgetFeet, or (0, false) when dest is unreachable on that budget.
//
// Precondition: as ReachableCells.
func PathCost(origin, dest Point, budgetFeet int, t *Terrain, occupied map[Point]bool, cellSize int) (int, bool) {
	cost, ok := ReachableCells(origin, budgetFeet, t, occupied, cellSize)[dest]
	return cost, ok
}

type diagState struct {
	p   Point
	odd bool
}

type nodeEntry struct {
	p       Point
	cost    int
	oddDiag bool
}

type nodeHeap []nodeEntry

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].cost < h[j].cost }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(nodeEntry)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
