package regions

import (
	"slices"

	"github.com/zyedidia/generic/mapset"

	"menagerie/server/internal/grid"
)

// AreaID indexes the area arena. Ids are never reused within one arena.
type AreaID int

const (
	// MainAreaID is the zoo area anchored at the entrance.
	MainAreaID AreaID = 0
	// NoArea marks tiles that belong to no area.
	NoArea AreaID = -1
)

// Color is the tint used to draw an area overlay.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

type link struct {
	neighbour AreaID
	doors     []grid.Edge
}

// Area is a maximal set of mutually reachable walkable tiles.
type Area struct {
	ID    AreaID
	Color Color

	tiles mapset.Set[grid.Tile]
	links []link
}

func newArea(id AreaID, seed uint64) *Area {
	return &Area{
		ID:    id,
		Color: colorFor(seed, id),
		tiles: mapset.New[grid.Tile](),
	}
}

// Size returns the number of member tiles.
func (a *Area) Size() int { return a.tiles.Size() }

// Contains reports whether t is a member of the area.
func (a *Area) Contains(t grid.Tile) bool { return a.tiles.Has(t) }

// Tiles returns the member tiles in row-major order.
func (a *Area) Tiles() []grid.Tile {
	out := make([]grid.Tile, 0, a.tiles.Size())
	a.tiles.Each(func(t grid.Tile) {
		out = append(out, t)
	})
	slices.SortFunc(out, func(x, y grid.Tile) int {
		if x.Y != y.Y {
			return x.Y - y.Y
		}
		return x.X - y.X
	})
	return out
}

// Neighbours lists adjacent area ids in link insertion order.
func (a *Area) Neighbours() []AreaID {
	out := make([]AreaID, 0, len(a.links))
	for _, l := range a.links {
		out = append(out, l.neighbour)
	}
	return out
}

// Doors returns the door edges connecting a to the neighbour.
func (a *Area) Doors(neighbour AreaID) []grid.Edge {
	if idx := a.linkIndex(neighbour); idx >= 0 {
		return slices.Clone(a.links[idx].doors)
	}
	return nil
}

func (a *Area) linkIndex(neighbour AreaID) int {
	for i, l := range a.links {
		if l.neighbour == neighbour {
			return i
		}
	}
	return -1
}

func (a *Area) addDoor(neighbour AreaID, door grid.Edge) bool {
	idx := a.linkIndex(neighbour)
	if idx < 0 {
		a.links = append(a.links, link{neighbour: neighbour, doors: []grid.Edge{door}})
		return true
	}
	if slices.Contains(a.links[idx].doors, door) {
		return false
	}
	a.links[idx].doors = append(a.links[idx].doors, door)
	return true
}

func (a *Area) removeDoor(neighbour AreaID, door grid.Edge) bool {
	idx := a.linkIndex(neighbour)
	if idx < 0 {
		return false
	}
	doors := a.links[idx].doors
	pos := slices.Index(doors, door)
	if pos < 0 {
		return false
	}
	doors = slices.Delete(doors, pos, pos+1)
	if len(doors) == 0 {
		a.links = slices.Delete(a.links, idx, idx+1)
		return true
	}
	a.links[idx].doors = doors
	return true
}

func (a *Area) dropLink(neighbour AreaID) []grid.Edge {
	idx := a.linkIndex(neighbour)
	if idx < 0 {
		return nil
	}
	doors := a.links[idx].doors
	a.links = slices.Delete(a.links, idx, idx+1)
	return doors
}

// colorFor mixes the seed and id with a splitmix64 step so colours are stable
// across rebuilds.
func colorFor(seed uint64, id AreaID) Color {
	z := seed + uint64(id+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return Color{R: uint8(z), G: uint8(z >> 8), B: uint8(z >> 16)}
}
