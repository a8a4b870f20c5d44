package world

import (
	"errors"
	"fmt"

	"menagerie/server/internal/grid"
	"menagerie/server/internal/regions"
)

// SnapshotVersion is bumped whenever Snapshot changes shape.
const SnapshotVersion = 1

var ErrSnapshot = errors.New("world: incompatible snapshot")

// WallRecord is one persisted wall.
type WallRecord struct {
	Edge grid.Edge `json:"edge" msgpack:"edge"`
	Door bool      `json:"door,omitempty" msgpack:"door"`
}

// ObjectRecord is one persisted tile occupant.
type ObjectRecord struct {
	Tile   grid.Tile `json:"tile" msgpack:"tile"`
	Object Object    `json:"object" msgpack:"object"`
}

// Snapshot is the persisted state of a world: raw elevations, the wall,
// object and footpath tables, and area membership per tile. Door adjacency
// is not stored; it is rebuilt from the walls on restore.
type Snapshot struct {
	Version    int            `json:"version" msgpack:"version"`
	Width      int            `json:"width" msgpack:"width"`
	Height     int            `json:"height" msgpack:"height"`
	Levels     []int          `json:"levels" msgpack:"levels"`
	Walls      []WallRecord   `json:"walls" msgpack:"walls"`
	Objects    []ObjectRecord `json:"objects" msgpack:"objects"`
	Footpaths  []grid.Tile    `json:"footpaths" msgpack:"footpaths"`
	Membership []int          `json:"membership" msgpack:"membership"`
}

// Snapshot captures the current state.
func (w *World) Snapshot() *Snapshot {
	snapshot := &Snapshot{
		Version: SnapshotVersion,
		Width:   w.bounds.Width,
		Height:  w.bounds.Height,
		Levels:  w.terrain.Levels(),
	}
	for _, e := range w.Walls() {
		snapshot.Walls = append(snapshot.Walls, WallRecord{Edge: e, Door: w.walls[e]})
	}
	for idx := 0; idx < w.bounds.Size(); idx++ {
		t := w.bounds.TileAt(idx)
		if obj, ok := w.objects[t]; ok {
			snapshot.Objects = append(snapshot.Objects, ObjectRecord{Tile: t, Object: obj})
		}
		if _, ok := w.footpaths[t]; ok {
			snapshot.Footpaths = append(snapshot.Footpaths, t)
		}
	}
	membership := w.regions.Membership()
	snapshot.Membership = make([]int, len(membership))
	for i, id := range membership {
		snapshot.Membership[i] = int(id)
	}
	return snapshot
}

// Restore replaces the world state with snapshot. When the stored area
// membership disagrees with the walls, areas are rebuilt from scratch and
// rebuilt reports true.
func (w *World) Restore(snapshot *Snapshot) (rebuilt bool, err error) {
	if snapshot == nil {
		return false, fmt.Errorf("%w: nil snapshot", ErrSnapshot)
	}
	if snapshot.Version != SnapshotVersion {
		return false, fmt.Errorf("%w: version %d, want %d", ErrSnapshot, snapshot.Version, SnapshotVersion)
	}
	if snapshot.Width != w.bounds.Width || snapshot.Height != w.bounds.Height {
		return false, fmt.Errorf("%w: map %dx%d, want %dx%d", ErrSnapshot, snapshot.Width, snapshot.Height, w.bounds.Width, w.bounds.Height)
	}
	walls := make(map[grid.Edge]bool, len(snapshot.Walls))
	for _, record := range snapshot.Walls {
		if !record.Edge.InBounds(w.bounds) {
			return false, fmt.Errorf("%w: wall %s: %w", ErrSnapshot, record.Edge, ErrOutOfBounds)
		}
		walls[record.Edge] = record.Door
	}
	objects := make(map[grid.Tile]Object, len(snapshot.Objects))
	for _, record := range snapshot.Objects {
		if !w.bounds.Contains(record.Tile) {
			return false, fmt.Errorf("%w: object at %v: %w", ErrSnapshot, record.Tile, ErrOutOfBounds)
		}
		objects[record.Tile] = record.Object
	}
	footpaths := make(map[grid.Tile]struct{}, len(snapshot.Footpaths))
	for _, t := range snapshot.Footpaths {
		if !w.bounds.Contains(t) {
			return false, fmt.Errorf("%w: footpath at %v: %w", ErrSnapshot, t, ErrOutOfBounds)
		}
		footpaths[t] = struct{}{}
	}
	if err := w.terrain.Load(snapshot.Levels); err != nil {
		return false, fmt.Errorf("%w: %w", ErrSnapshot, err)
	}

	w.walls = walls
	w.objects = objects
	w.footpaths = footpaths
	w.navDirty = true

	membership := make([]regions.AreaID, len(snapshot.Membership))
	for i, id := range snapshot.Membership {
		membership[i] = regions.AreaID(id)
	}
	if err := w.regions.RestoreMembership(membership); err != nil {
		w.logger.Printf("world: restore areas: %v; rebuilding", err)
		w.regions.RebuildAll()
		rebuilt = true
	}
	w.refreshNav()
	return rebuilt, nil
}
