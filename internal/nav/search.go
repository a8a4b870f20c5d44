package nav

import (
	"container/heap"
	"math"

	"menagerie/server/internal/grid"
)

// cancelCheckInterval is how many expansions a worker runs between
// cancellation checks.
const cancelCheckInterval = 256

type searchNode struct {
	tile   grid.Tile
	g      float64
	f      float64
	seq    uint64
	index  int
	parent *searchNode
}

type searchQueue []*searchNode

func (pq searchQueue) Len() int { return len(pq) }

func (pq searchQueue) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	return pq[i].seq < pq[j].seq
}

func (pq searchQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *searchQueue) Push(x any) {
	n := len(*pq)
	item := x.(*searchNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *searchQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// heuristic is the squared Euclidean distance. It overestimates once a path
// is longer than one step, so results are fast rather than optimal.
func heuristic(a, b grid.Tile) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return dx*dx + dy*dy
}

// stepAllowed checks the directional connection plus, for diagonals, that
// both tiles beside the corner are passable so walkers never clip a corner.
func (g *Grid) stepAllowed(from grid.Tile, d grid.Direction, profile Profile) bool {
	if !g.Connected(from, d) {
		return false
	}
	if !d.Diagonal() {
		return true
	}
	v, h := d.Components()
	return profile.cost(g.Flags(from.Add(v))) > 0 && profile.cost(g.Flags(from.Add(h))) > 0
}

type searchOutcome struct {
	path      []grid.Tile
	expanded  int
	found     bool
	cancelled bool
}

// search runs A* from start to goal. Both endpoints are assumed passable.
func (g *Grid) search(start, goal grid.Tile, profile Profile, cancelled func() bool) searchOutcome {
	dirs := grid.Cardinals[:]
	if profile.Diagonal {
		dirs = grid.All[:]
	}

	var seq uint64
	open := &searchQueue{}
	heap.Init(open)
	heap.Push(open, &searchNode{tile: start, f: heuristic(start, goal)})
	gScore := map[grid.Tile]float64{start: 0}
	closed := make(map[grid.Tile]struct{})
	expanded := 0

	for open.Len() > 0 {
		current := heap.Pop(open).(*searchNode)
		if _, seen := closed[current.tile]; seen {
			continue
		}
		closed[current.tile] = struct{}{}
		if current.tile == goal {
			return searchOutcome{path: reconstruct(current), expanded: expanded, found: true}
		}
		expanded++
		if cancelled != nil && expanded%cancelCheckInterval == 0 && cancelled() {
			return searchOutcome{expanded: expanded, cancelled: true}
		}

		for _, d := range dirs {
			if !g.stepAllowed(current.tile, d, profile) {
				continue
			}
			next := current.tile.Add(d)
			if _, seen := closed[next]; seen {
				continue
			}
			cost := profile.cost(g.Flags(next))
			if cost <= 0 {
				continue
			}
			if d.Diagonal() {
				cost *= math.Sqrt2
			}
			tentative := current.g + cost
			if prev, ok := gScore[next]; ok && tentative >= prev {
				continue
			}
			gScore[next] = tentative
			seq++
			heap.Push(open, &searchNode{
				tile:   next,
				g:      tentative,
				f:      tentative + heuristic(next, goal),
				seq:    seq,
				parent: current,
			})
		}
	}
	return searchOutcome{expanded: expanded}
}

func reconstruct(end *searchNode) []grid.Tile {
	path := make([]grid.Tile, 0)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.tile)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}
