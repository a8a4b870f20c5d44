package world

import (
	"fmt"

	"menagerie/server/internal/grid"
	"menagerie/server/internal/terrain"
)

// SetElevationInRadius applies an elevation brush and returns its undo set.
func (w *World) SetElevationInRadius(center grid.Vec2, radius float64, level int) []terrain.VertexChange {
	return w.terrain.SetElevationInRadius(center, radius, level)
}

// UndoElevation restores a brush stroke. A refused undo leaves the terrain
// untouched.
func (w *World) UndoElevation(changes []terrain.VertexChange) error {
	if len(changes) == 0 {
		return nil
	}
	if err := w.terrain.Undo(changes); err != nil {
		return fmt.Errorf("undo elevation: %w", err)
	}
	return nil
}

// PlaceWall raises a wall, optionally flagged as a door, and updates the
// area partition.
func (w *World) PlaceWall(e grid.Edge, door bool) error {
	if !e.InBounds(w.bounds) {
		return fmt.Errorf("place wall %s: %w", e, ErrOutOfBounds)
	}
	if _, exists := w.walls[e]; exists {
		return fmt.Errorf("place wall %s: %w", e, ErrOccupied)
	}
	w.walls[e] = door
	w.navDirty = true
	if err := w.regions.OnWallAdded(e); err != nil {
		w.topologyFallback("wall added", e, err)
		return nil
	}
	if door {
		w.regions.OnDoorToggled(e, true)
	}
	return nil
}

// RemoveWall tears down a wall or door and merges the areas it separated.
func (w *World) RemoveWall(e grid.Edge) error {
	if !e.InBounds(w.bounds) {
		return fmt.Errorf("remove wall %s: %w", e, ErrOutOfBounds)
	}
	if _, exists := w.walls[e]; !exists {
		return fmt.Errorf("remove wall %s: %w", e, ErrNoWall)
	}
	delete(w.walls, e)
	w.navDirty = true
	if err := w.regions.OnWallRemoved(e); err != nil {
		w.topologyFallback("wall removed", e, err)
	}
	return nil
}

// SetDoor flips the door flag of an existing wall. Setting the current
// state again is a no-op.
func (w *World) SetDoor(e grid.Edge, door bool) error {
	current, exists := w.walls[e]
	if !exists {
		return fmt.Errorf("set door %s: %w", e, ErrNoWall)
	}
	if current == door {
		return nil
	}
	w.walls[e] = door
	w.navDirty = true
	w.regions.OnDoorToggled(e, door)
	return nil
}

// PlaceObject puts obj on t if the tile's shape suits it.
func (w *World) PlaceObject(t grid.Tile, obj Object) error {
	if !w.bounds.Contains(t) {
		return fmt.Errorf("place object at %v: %w", t, ErrOutOfBounds)
	}
	if _, exists := w.objects[t]; exists {
		return fmt.Errorf("place object at %v: %w", t, ErrOccupied)
	}
	if _, path := w.footpaths[t]; path && obj.Solid {
		return fmt.Errorf("place object at %v: footpath: %w", t, ErrOccupied)
	}
	if w.terrain.IsWater(t) && !obj.CanBeInWater {
		return fmt.Errorf("place object at %v: water: %w", t, ErrSurface)
	}
	if variant := w.terrain.SlopeVariant(t); variant != terrain.Flat && !obj.CanSlope {
		return fmt.Errorf("place object at %v: slope %s: %w", t, variant, ErrSurface)
	}
	w.objects[t] = obj
	w.navDirty = true
	return nil
}

// RemoveObject clears the occupant of t.
func (w *World) RemoveObject(t grid.Tile) error {
	if !w.bounds.Contains(t) {
		return fmt.Errorf("remove object at %v: %w", t, ErrOutOfBounds)
	}
	if _, exists := w.objects[t]; !exists {
		return fmt.Errorf("remove object at %v: %w", t, ErrNoObject)
	}
	delete(w.objects, t)
	w.navDirty = true
	return nil
}

// PlaceFootpath lays a footpath on dry tiles that are flat or single ramps.
func (w *World) PlaceFootpath(t grid.Tile) error {
	if !w.bounds.Contains(t) {
		return fmt.Errorf("place footpath at %v: %w", t, ErrOutOfBounds)
	}
	if _, exists := w.footpaths[t]; exists {
		return fmt.Errorf("place footpath at %v: %w", t, ErrOccupied)
	}
	if obj, ok := w.objects[t]; ok && obj.Solid {
		return fmt.Errorf("place footpath at %v: object %q: %w", t, obj.Name, ErrOccupied)
	}
	if w.terrain.IsWater(t) {
		return fmt.Errorf("place footpath at %v: water: %w", t, ErrSurface)
	}
	if w.terrain.IsSlopeCorner(t) {
		return fmt.Errorf("place footpath at %v: slope %s: %w", t, w.terrain.SlopeVariant(t), ErrSurface)
	}
	w.footpaths[t] = struct{}{}
	w.navDirty = true
	return nil
}

// RemoveFootpath clears the footpath on t.
func (w *World) RemoveFootpath(t grid.Tile) error {
	if !w.bounds.Contains(t) {
		return fmt.Errorf("remove footpath at %v: %w", t, ErrOutOfBounds)
	}
	if _, exists := w.footpaths[t]; !exists {
		return fmt.Errorf("remove footpath at %v: %w", t, ErrNoFootpath)
	}
	delete(w.footpaths, t)
	w.navDirty = true
	return nil
}
