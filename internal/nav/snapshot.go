// Package nav computes tile routes on worker goroutines against immutable
// snapshots of the map.
package nav

import "menagerie/server/internal/grid"

// TileFlags describes what a tile offers a walker.
type TileFlags uint8

const (
	FlagWalkable TileFlags = 1 << iota
	FlagWater
	FlagFootpath
)

func (f TileFlags) Has(flag TileFlags) bool { return f&flag != 0 }

// Grid is a frozen view of walkability. Workers only read it; the update
// thread replaces it wholesale through a Builder.
type Grid struct {
	generation  uint64
	bounds      grid.Bounds
	flags       []TileFlags
	connections []uint8
}

// Generation identifies the edit state the snapshot was built from.
func (g *Grid) Generation() uint64 { return g.generation }

// Bounds returns the snapshot's map size.
func (g *Grid) Bounds() grid.Bounds { return g.bounds }

// Flags returns the flags of t, zero outside the map.
func (g *Grid) Flags(t grid.Tile) TileFlags {
	if !g.bounds.Contains(t) {
		return 0
	}
	return g.flags[g.bounds.Index(t)]
}

// Connected reports whether the edge leaving t towards d is open.
func (g *Grid) Connected(t grid.Tile, d grid.Direction) bool {
	if !g.bounds.Contains(t) || !g.bounds.Contains(t.Add(d)) {
		return false
	}
	return g.connections[g.bounds.Index(t)]&(1<<d) != 0
}

// Builder assembles a Grid on the update thread.
type Builder struct {
	bounds  grid.Bounds
	flags   []TileFlags
	blocked map[grid.Edge]struct{}
}

// NewBuilder starts with every tile walkable and every edge open.
func NewBuilder(bounds grid.Bounds) *Builder {
	flags := make([]TileFlags, bounds.Size())
	for i := range flags {
		flags[i] = FlagWalkable
	}
	return &Builder{bounds: bounds, flags: flags, blocked: make(map[grid.Edge]struct{})}
}

// SetFlags replaces the flags of t.
func (b *Builder) SetFlags(t grid.Tile, flags TileFlags) {
	if b.bounds.Contains(t) {
		b.flags[b.bounds.Index(t)] = flags
	}
}

// BlockEdge closes the passage across e in both directions.
func (b *Builder) BlockEdge(e grid.Edge) {
	if e.InBounds(b.bounds) {
		b.blocked[e] = struct{}{}
	}
}

func (b *Builder) open(t grid.Tile, d grid.Direction) bool {
	next := t.Add(d)
	if !b.bounds.Contains(t) || !b.bounds.Contains(next) {
		return false
	}
	edge, ok := grid.EdgeBetween(t, next)
	if !ok {
		return false
	}
	_, closed := b.blocked[edge]
	return !closed
}

// Build freezes the builder state. A diagonal is open only when both of its
// cardinal legs are open on both sides of the corner.
func (b *Builder) Build(generation uint64) *Grid {
	g := &Grid{
		generation:  generation,
		bounds:      b.bounds,
		flags:       append([]TileFlags(nil), b.flags...),
		connections: make([]uint8, len(b.flags)),
	}
	for idx := range g.connections {
		t := b.bounds.TileAt(idx)
		var mask uint8
		for _, d := range grid.All {
			if !d.Diagonal() {
				if b.open(t, d) {
					mask |= 1 << d
				}
				continue
			}
			v, h := d.Components()
			if b.open(t, v) && b.open(t, h) && b.open(t.Add(v), h) && b.open(t.Add(h), v) {
				mask |= 1 << d
			}
		}
		g.connections[idx] = mask
	}
	return g
}

// Nearest finds the closest tile to t that profile can stand on, searching
// outward through open edges.
func (g *Grid) Nearest(t grid.Tile, profile Profile) (grid.Tile, bool) {
	if !g.bounds.Contains(t) {
		return grid.Tile{}, false
	}
	visited := map[grid.Tile]struct{}{t: {}}
	queue := []grid.Tile{t}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if profile.cost(g.Flags(current)) > 0 {
			return current, true
		}
		for _, d := range grid.Cardinals {
			if !g.Connected(current, d) {
				continue
			}
			next := current.Add(d)
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return grid.Tile{}, false
}
