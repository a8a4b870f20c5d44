package regions

import (
	"github.com/zyedidia/generic/mapset"

	"menagerie/server/internal/grid"
)

// OnWallAdded reacts to a wall appearing on edge. The wall must already be
// visible through the DoorOracle. When the wall cuts its area in two, the
// smaller fragment becomes a new area and the larger keeps the original id.
// A wall that does not disconnect anything leaves the graph untouched.
func (g *Graph) OnWallAdded(edge grid.Edge) error {
	if !edge.InBounds(g.bounds) {
		return nil
	}
	t1, t2 := edge.Tiles()
	id := g.areaIDAt(t1)
	if id == NoArea || id != g.areaIDAt(t2) {
		return nil
	}
	original := g.areas[id]

	first := g.fill(t1)
	if first.Has(t2) {
		return nil
	}
	other := g.fill(t2)
	if !g.fragmentsFit(original, first, other) {
		return g.reject("split", edge, id, original.Size(), first.Size(), other.Size())
	}

	smaller := other
	if first.Size() < other.Size() {
		smaller = first
	}
	fresh := newArea(AreaID(len(g.areas)), g.cfg.Seed)
	g.areas = append(g.areas, fresh)
	smaller.Each(func(t grid.Tile) {
		original.tiles.Remove(t)
		fresh.tiles.Put(t)
		g.tileArea[g.bounds.Index(t)] = fresh.ID
	})
	g.relink(original, fresh)
	g.stats.Splits++

	g.emit(ChangeUpdated, original)
	g.emit(ChangeCreated, fresh)
	return nil
}

// fragmentsFit is the split sanity check: both probes must stay inside the
// original area, must not overlap, and together cannot outnumber it.
func (g *Graph) fragmentsFit(original *Area, first, other mapset.Set[grid.Tile]) bool {
	if first.Size() == 0 || other.Size() == 0 {
		return false
	}
	if first.Size()+other.Size() > original.Size() {
		return false
	}
	fits := true
	first.Each(func(t grid.Tile) {
		if !original.tiles.Has(t) || other.Has(t) {
			fits = false
		}
	})
	other.Each(func(t grid.Tile) {
		if !original.tiles.Has(t) {
			fits = false
		}
	})
	return fits
}

// relink moves door links whose inner side now lies in fresh, then links
// any door that sits between the two fragments.
func (g *Graph) relink(original, fresh *Area) {
	for i := 0; i < len(original.links); {
		l := original.links[i]
		var moved []grid.Edge
		for _, door := range l.doors {
			t1, t2 := door.Tiles()
			if fresh.tiles.Has(t1) || fresh.tiles.Has(t2) {
				moved = append(moved, door)
			}
		}
		neighbour := g.areas[l.neighbour]
		for _, door := range moved {
			original.removeDoor(l.neighbour, door)
			neighbour.removeDoor(original.ID, door)
			fresh.addDoor(l.neighbour, door)
			neighbour.addDoor(fresh.ID, door)
		}
		if i < len(original.links) && original.links[i].neighbour == l.neighbour {
			i++
		}
	}
	for _, door := range g.walls.Doors() {
		t1, t2 := door.Tiles()
		a, b := g.areaIDAt(t1), g.areaIDAt(t2)
		if (a == original.ID && b == fresh.ID) || (a == fresh.ID && b == original.ID) {
			g.linkDoor(door)
		}
	}
	for _, id := range fresh.Neighbours() {
		if id != original.ID {
			g.emit(ChangeUpdated, g.areas[id])
		}
	}
}

// OnWallRemoved merges the areas on both sides of edge. The main area keeps
// its id; otherwise the larger area survives, ties going to the lower id.
func (g *Graph) OnWallRemoved(edge grid.Edge) error {
	if !edge.InBounds(g.bounds) {
		return nil
	}
	t1, t2 := edge.Tiles()
	idA, idB := g.areaIDAt(t1), g.areaIDAt(t2)
	if idA == NoArea || idB == NoArea || idA == idB {
		return nil
	}
	survivor, removed := g.areas[idA], g.areas[idB]
	switch {
	case removed.ID == MainAreaID:
		survivor, removed = removed, survivor
	case survivor.ID == MainAreaID:
	case removed.Size() > survivor.Size(),
		removed.Size() == survivor.Size() && removed.ID < survivor.ID:
		survivor, removed = removed, survivor
	}

	merged := g.fill(t1)
	if merged.Size() != survivor.Size()+removed.Size() {
		return g.reject("merge", edge, survivor.ID, survivor.Size(), merged.Size()-removed.Size(), removed.Size())
	}

	removed.tiles.Each(func(t grid.Tile) {
		survivor.tiles.Put(t)
		g.tileArea[g.bounds.Index(t)] = survivor.ID
	})
	survivor.dropLink(removed.ID)
	removed.dropLink(survivor.ID)
	for _, l := range removed.links {
		neighbour := g.areas[l.neighbour]
		neighbour.dropLink(removed.ID)
		for _, door := range l.doors {
			survivor.addDoor(l.neighbour, door)
			neighbour.addDoor(survivor.ID, door)
		}
		g.emit(ChangeUpdated, neighbour)
	}
	removed.links = nil
	g.areas[removed.ID] = nil
	g.stats.Merges++

	g.emit(ChangeRemoved, removed)
	g.emit(ChangeUpdated, survivor)
	return nil
}

// OnDoorToggled adds or removes the adjacency link carried by a door.
// Toggling a door that is already in the requested state is a no-op.
func (g *Graph) OnDoorToggled(edge grid.Edge, isDoor bool) {
	if isDoor {
		if !g.linkDoor(edge) {
			return
		}
		t1, t2 := edge.Tiles()
		a, _ := g.AreaAt(t1)
		b, _ := g.AreaAt(t2)
		g.emit(ChangeUpdated, a)
		g.emit(ChangeUpdated, b)
		return
	}
	a, b, removed := g.unlinkDoor(edge)
	if !removed {
		return
	}
	g.emit(ChangeUpdated, a)
	g.emit(ChangeUpdated, b)
}
