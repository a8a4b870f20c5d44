package world

import (
	"menagerie/server/internal/grid"
	"menagerie/server/internal/terrain"
)

// surfaceOracle lets the height field ask whether tile occupants tolerate a
// new shape.
type surfaceOracle struct{ w *World }

func (o surfaceOracle) AllowsSurface(t grid.Tile, variant terrain.SlopeVariant, water bool) bool {
	if obj, ok := o.w.objects[t]; ok {
		if water && !obj.CanBeInWater {
			return false
		}
		if variant != terrain.Flat && !obj.CanSlope {
			return false
		}
	}
	if _, ok := o.w.footpaths[t]; ok {
		if water || variant.IsCorner() {
			return false
		}
	}
	return true
}

// regionOracle partitions every in-map tile; walls alone separate areas.
type regionOracle struct{ w *World }

func (o regionOracle) IsWalkable(t grid.Tile) bool {
	return o.w.bounds.Contains(t)
}

func (o regionOracle) Wall(e grid.Edge) (bool, bool) {
	return o.w.Wall(e)
}

func (o regionOracle) Doors() []grid.Edge {
	var doors []grid.Edge
	for e, door := range o.w.walls {
		if door {
			doors = append(doors, e)
		}
	}
	sortEdges(doors)
	return doors
}

// areaOracle answers the pathfinder's early reachability check. Tiles
// outside any area fall through to the search.
type areaOracle struct{ w *World }

func (o areaOracle) Reachable(from, to grid.Tile) bool {
	a, okA := o.w.regions.AreaAt(from)
	b, okB := o.w.regions.AreaAt(to)
	if !okA || !okB {
		return true
	}
	return o.w.regions.Reachable(a.ID, b.ID)
}
