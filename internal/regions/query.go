package regions

import (
	"errors"
	"fmt"

	"menagerie/server/internal/grid"
)

var (
	ErrMembershipSize     = errors.New("regions: membership size does not match map")
	ErrMembershipMismatch = errors.New("regions: membership disagrees with flood fill")
	ErrPartition          = errors.New("regions: partition invariant violated")
)

// Reachable reports whether to can be reached from from through doors.
func (g *Graph) Reachable(from, to AreaID) bool {
	return len(g.ShortestAreaPath(from, to)) > 0
}

// ShortestAreaPath returns the areas from from to to inclusive, walking
// links in insertion order. Unknown or disconnected areas yield nil.
func (g *Graph) ShortestAreaPath(from, to AreaID) []*Area {
	start, ok := g.Area(from)
	if !ok {
		return nil
	}
	if _, ok := g.Area(to); !ok {
		return nil
	}
	if from == to {
		return []*Area{start}
	}
	parent := map[AreaID]AreaID{from: NoArea}
	queue := []AreaID{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, l := range g.areas[current].links {
			if _, seen := parent[l.neighbour]; seen {
				continue
			}
			parent[l.neighbour] = current
			if l.neighbour == to {
				return g.unwind(parent, to)
			}
			queue = append(queue, l.neighbour)
		}
	}
	return nil
}

func (g *Graph) unwind(parent map[AreaID]AreaID, to AreaID) []*Area {
	var path []*Area
	for id := to; id != NoArea; id = parent[id] {
		path = append(path, g.areas[id])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Membership returns the area id of every tile in row-major order, NoArea
// for tiles outside the partition.
func (g *Graph) Membership() []AreaID {
	return append([]AreaID(nil), g.tileArea...)
}

// RestoreMembership rebuilds the arena from persisted tile membership. Each
// area is checked against a fresh flood fill and door links are rewired
// from the wall table. On error the graph is unchanged.
func (g *Graph) RestoreMembership(membership []AreaID) error {
	if len(membership) != len(g.tileArea) {
		return fmt.Errorf("%w: got %d want %d", ErrMembershipSize, len(membership), len(g.tileArea))
	}
	maxID := NoArea
	for idx, id := range membership {
		walkable := g.walkable.IsWalkable(g.bounds.TileAt(idx))
		if walkable != (id != NoArea) || id < NoArea {
			return fmt.Errorf("%w: tile %v id %d walkable=%t", ErrMembershipMismatch, g.bounds.TileAt(idx), id, walkable)
		}
		maxID = max(maxID, id)
	}

	areas := make([]*Area, int(maxID)+1)
	for idx, id := range membership {
		if id == NoArea {
			continue
		}
		if areas[id] == nil {
			areas[id] = newArea(id, g.cfg.Seed)
		}
		areas[id].tiles.Put(g.bounds.TileAt(idx))
	}
	for _, area := range areas {
		if area == nil {
			continue
		}
		seed := area.Tiles()[0]
		filled := g.fill(seed)
		if filled.Size() != area.Size() {
			return fmt.Errorf("%w: area %d has %d tiles, fill from %v reaches %d", ErrMembershipMismatch, area.ID, area.Size(), seed, filled.Size())
		}
		mismatch := false
		filled.Each(func(t grid.Tile) {
			if !area.tiles.Has(t) {
				mismatch = true
			}
		})
		if mismatch {
			return fmt.Errorf("%w: area %d leaks past its tiles", ErrMembershipMismatch, area.ID)
		}
	}

	for _, area := range g.areas {
		if area != nil {
			g.emit(ChangeRemoved, area)
		}
	}
	g.areas = areas
	copy(g.tileArea, membership)
	for _, door := range g.walls.Doors() {
		g.linkDoor(door)
	}
	for _, area := range g.areas {
		if area != nil {
			g.emit(ChangeCreated, area)
		}
	}
	return nil
}

// CheckPartition verifies that every walkable tile belongs to exactly one
// area, that the membership index agrees with the tile sets and that links
// are symmetric.
func (g *Graph) CheckPartition() error {
	counted := 0
	for _, area := range g.areas {
		if area == nil {
			continue
		}
		var bad error
		area.tiles.Each(func(t grid.Tile) {
			if bad != nil {
				return
			}
			if !g.bounds.Contains(t) || g.tileArea[g.bounds.Index(t)] != area.ID {
				bad = fmt.Errorf("%w: tile %v listed by area %d but indexed elsewhere", ErrPartition, t, area.ID)
			}
		})
		if bad != nil {
			return bad
		}
		counted += area.Size()
		for _, l := range area.links {
			other, ok := g.Area(l.neighbour)
			if !ok {
				return fmt.Errorf("%w: area %d links to missing area %d", ErrPartition, area.ID, l.neighbour)
			}
			back := other.Doors(area.ID)
			if len(back) != len(l.doors) {
				return fmt.Errorf("%w: link %d-%d is not symmetric", ErrPartition, area.ID, l.neighbour)
			}
		}
	}
	walkable := 0
	for idx, id := range g.tileArea {
		t := g.bounds.TileAt(idx)
		if g.walkable.IsWalkable(t) {
			walkable++
			if id == NoArea {
				return fmt.Errorf("%w: walkable tile %v has no area", ErrPartition, t)
			}
		} else if id != NoArea {
			return fmt.Errorf("%w: blocked tile %v assigned to area %d", ErrPartition, t, id)
		}
	}
	if counted != walkable {
		return fmt.Errorf("%w: %d tiles across areas, %d walkable", ErrPartition, counted, walkable)
	}
	return nil
}
