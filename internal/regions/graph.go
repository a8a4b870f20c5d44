// Package regions partitions the walkable map into areas separated by walls
// and tracks which areas connect through doors.
package regions

import (
	"context"
	"errors"
	"fmt"

	"github.com/zyedidia/generic/mapset"

	"menagerie/server/internal/grid"
	"menagerie/server/logging"
	loggingregions "menagerie/server/logging/regions"
)

// ErrInvalidTopology reports a split or merge whose flood fills disagree
// with the current partition. The graph is left as it was.
var ErrInvalidTopology = errors.New("regions: invalid topology")

// WalkabilityOracle decides which tiles take part in the partition.
type WalkabilityOracle interface {
	IsWalkable(t grid.Tile) bool
}

// DoorOracle reports the wall state of tile edges.
type DoorOracle interface {
	Wall(e grid.Edge) (exists, door bool)
	Doors() []grid.Edge
}

// Config anchors the main area and seeds area colours.
type Config struct {
	Bounds   grid.Bounds
	Entrance grid.Tile
	Seed     uint64
}

// Deps carries the collaborators of a Graph.
type Deps struct {
	Walkable  WalkabilityOracle
	Walls     DoorOracle
	Publisher logging.Publisher
	Tick      func() uint64
}

// ChangeKind classifies an area notification.
type ChangeKind uint8

const (
	ChangeCreated ChangeKind = iota
	ChangeUpdated
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers whenever an area is created, changes
// shape or links, or disappears.
type Change struct {
	Kind ChangeKind
	Area AreaID
}

// Stats counts topology operations since construction.
type Stats struct {
	Areas            int    `json:"areas"`
	Rebuilds         uint64 `json:"rebuilds"`
	Splits           uint64 `json:"splits"`
	Merges           uint64 `json:"merges"`
	TopologyFailures uint64 `json:"topologyFailures"`
}

// Graph is the arena of areas plus the per-tile membership index. It is
// mutated only from the update thread.
type Graph struct {
	cfg       Config
	bounds    grid.Bounds
	walkable  WalkabilityOracle
	walls     DoorOracle
	publisher logging.Publisher
	tick      func() uint64

	areas     []*Area
	tileArea  []AreaID
	listeners []func(Change)
	stats     Stats
}

// New builds an empty graph. Call RebuildAll once the wall table is loaded.
func New(cfg Config, deps Deps) (*Graph, error) {
	if deps.Walkable == nil {
		return nil, errors.New("regions: walkability oracle required")
	}
	if deps.Walls == nil {
		return nil, errors.New("regions: door oracle required")
	}
	if !cfg.Bounds.Contains(cfg.Entrance) {
		return nil, fmt.Errorf("regions: entrance %v outside %dx%d map", cfg.Entrance, cfg.Bounds.Width, cfg.Bounds.Height)
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	tick := deps.Tick
	if tick == nil {
		tick = func() uint64 { return 0 }
	}
	g := &Graph{
		cfg:       cfg,
		bounds:    cfg.Bounds,
		walkable:  deps.Walkable,
		walls:     deps.Walls,
		publisher: publisher,
		tick:      tick,
		tileArea:  make([]AreaID, cfg.Bounds.Size()),
	}
	for i := range g.tileArea {
		g.tileArea[i] = NoArea
	}
	return g, nil
}

// Subscribe registers a callback for area notifications.
func (g *Graph) Subscribe(fn func(Change)) {
	if fn != nil {
		g.listeners = append(g.listeners, fn)
	}
}

// Stats returns a copy of the operation counters.
func (g *Graph) Stats() Stats {
	stats := g.stats
	stats.Areas = 0
	for _, area := range g.areas {
		if area != nil {
			stats.Areas++
		}
	}
	return stats
}

// RebuildAll discards the arena and flood fills the whole map: the main area
// from the entrance first, then every remaining walkable tile in row-major
// order. Door adjacency is wired last.
func (g *Graph) RebuildAll() {
	for _, area := range g.areas {
		if area != nil {
			g.emit(ChangeRemoved, area)
		}
	}
	g.areas = g.areas[:0]
	for i := range g.tileArea {
		g.tileArea[i] = NoArea
	}

	if g.walkable.IsWalkable(g.cfg.Entrance) {
		g.claim(g.fill(g.cfg.Entrance))
	} else {
		// Keep id 0 reserved for the zoo even while the entrance is blocked.
		g.areas = append(g.areas, nil)
	}
	for idx := range g.tileArea {
		if g.tileArea[idx] != NoArea {
			continue
		}
		t := g.bounds.TileAt(idx)
		if !g.walkable.IsWalkable(t) {
			continue
		}
		g.claim(g.fill(t))
	}
	for _, door := range g.walls.Doors() {
		g.linkDoor(door)
	}
	g.stats.Rebuilds++
	for _, area := range g.areas {
		if area != nil {
			g.emit(ChangeCreated, area)
		}
	}
}

// AreaAt returns the area containing t.
func (g *Graph) AreaAt(t grid.Tile) (*Area, bool) {
	id := g.areaIDAt(t)
	if id == NoArea {
		return nil, false
	}
	return g.Area(id)
}

// Area looks up an area by id.
func (g *Graph) Area(id AreaID) (*Area, bool) {
	if id < 0 || int(id) >= len(g.areas) || g.areas[id] == nil {
		return nil, false
	}
	return g.areas[id], true
}

// Areas lists live areas by ascending id.
func (g *Graph) Areas() []*Area {
	out := make([]*Area, 0, len(g.areas))
	for _, area := range g.areas {
		if area != nil {
			out = append(out, area)
		}
	}
	return out
}

func (g *Graph) areaIDAt(t grid.Tile) AreaID {
	if !g.bounds.Contains(t) {
		return NoArea
	}
	return g.tileArea[g.bounds.Index(t)]
}

// passable reports whether a walker can step between two orthogonal
// neighbours. Door-flagged walls block the fill; doors only link areas.
func (g *Graph) passable(a, b grid.Tile) bool {
	if !g.bounds.Contains(b) || !g.walkable.IsWalkable(b) {
		return false
	}
	edge, ok := grid.EdgeBetween(a, b)
	if !ok {
		return false
	}
	exists, _ := g.walls.Wall(edge)
	return !exists
}

func (g *Graph) fill(seed grid.Tile) mapset.Set[grid.Tile] {
	visited := mapset.New[grid.Tile]()
	if !g.bounds.Contains(seed) || !g.walkable.IsWalkable(seed) {
		return visited
	}
	visited.Put(seed)
	queue := []grid.Tile{seed}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dir := range grid.Cardinals {
			next := current.Add(dir)
			if visited.Has(next) || !g.passable(current, next) {
				continue
			}
			visited.Put(next)
			queue = append(queue, next)
		}
	}
	return visited
}

// claim turns a filled tile set into a fresh area.
func (g *Graph) claim(tiles mapset.Set[grid.Tile]) *Area {
	area := newArea(AreaID(len(g.areas)), g.cfg.Seed)
	g.areas = append(g.areas, area)
	tiles.Each(func(t grid.Tile) {
		area.tiles.Put(t)
		g.tileArea[g.bounds.Index(t)] = area.ID
	})
	return area
}

// linkDoor records door as a connection between the areas on its sides.
func (g *Graph) linkDoor(door grid.Edge) bool {
	if !door.InBounds(g.bounds) {
		return false
	}
	t1, t2 := door.Tiles()
	a, okA := g.AreaAt(t1)
	b, okB := g.AreaAt(t2)
	if !okA || !okB || a.ID == b.ID {
		return false
	}
	added := a.addDoor(b.ID, door)
	b.addDoor(a.ID, door)
	return added
}

func (g *Graph) unlinkDoor(door grid.Edge) (*Area, *Area, bool) {
	if !door.InBounds(g.bounds) {
		return nil, nil, false
	}
	t1, t2 := door.Tiles()
	a, okA := g.AreaAt(t1)
	b, okB := g.AreaAt(t2)
	if !okA || !okB || a.ID == b.ID {
		return nil, nil, false
	}
	removed := a.removeDoor(b.ID, door)
	b.removeDoor(a.ID, door)
	return a, b, removed
}

func (g *Graph) emit(kind ChangeKind, area *Area) {
	change := Change{Kind: kind, Area: area.ID}
	for _, fn := range g.listeners {
		fn(change)
	}
	ctx := context.Background()
	payload := loggingregions.AreaPayload{Tiles: area.Size(), Neighbors: len(area.links)}
	switch kind {
	case ChangeCreated:
		loggingregions.AreaCreated(ctx, g.publisher, g.tick(), int(area.ID), payload)
	case ChangeUpdated:
		loggingregions.AreaUpdated(ctx, g.publisher, g.tick(), int(area.ID), payload)
	case ChangeRemoved:
		loggingregions.AreaRemoved(ctx, g.publisher, g.tick(), int(area.ID))
	}
}

func (g *Graph) reject(op string, edge grid.Edge, id AreaID, original, first, other int) error {
	g.stats.TopologyFailures++
	loggingregions.TopologyRejected(context.Background(), g.publisher, g.tick(), int(id), loggingregions.TopologyRejectedPayload{
		Operation: op,
		Edge:      edge.String(),
		Original:  original,
		FirstFill: first,
		OtherFill: other,
	})
	err := fmt.Errorf("%w: %s at %s: area %d has %d tiles, fills %d+%d", ErrInvalidTopology, op, edge, id, original, first, other)
	if debugAssertions {
		panic(err)
	}
	return err
}
