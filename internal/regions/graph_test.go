package regions

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"menagerie/server/internal/grid"
	loggingregions "menagerie/server/logging/regions"
	"menagerie/server/logging/sinks"
)

type fakeWalls struct {
	walls   map[grid.Edge]bool
	blocked map[grid.Tile]bool
}

func newFakeWalls() *fakeWalls {
	return &fakeWalls{walls: make(map[grid.Edge]bool), blocked: make(map[grid.Tile]bool)}
}

func (f *fakeWalls) IsWalkable(t grid.Tile) bool { return !f.blocked[t] }

func (f *fakeWalls) Wall(e grid.Edge) (bool, bool) {
	door, ok := f.walls[e]
	return ok, door
}

func (f *fakeWalls) Doors() []grid.Edge {
	var out []grid.Edge
	for e, door := range f.walls {
		if door {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b grid.Edge) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	return out
}

func vEdge(x, y int) grid.Edge { return grid.Edge{X: x, Y: y, Orientation: grid.Vertical} }
func hEdge(x, y int) grid.Edge { return grid.Edge{X: x, Y: y, Orientation: grid.Horizontal} }

func newGraph(t *testing.T, w, h int, entrance grid.Tile, walls *fakeWalls, deps ...Deps) *Graph {
	t.Helper()
	d := Deps{}
	if len(deps) > 0 {
		d = deps[0]
	}
	d.Walkable = walls
	d.Walls = walls
	g, err := New(Config{Bounds: grid.Bounds{Width: w, Height: h}, Entrance: entrance, Seed: 7}, d)
	require.NoError(t, err)
	g.RebuildAll()
	require.NoError(t, g.CheckPartition())
	return g
}

func addWall(t *testing.T, g *Graph, walls *fakeWalls, e grid.Edge, door bool) {
	t.Helper()
	walls.walls[e] = door
	require.NoError(t, g.OnWallAdded(e))
	if door {
		g.OnDoorToggled(e, true)
	}
	require.NoError(t, g.CheckPartition())
}

func removeWall(t *testing.T, g *Graph, walls *fakeWalls, e grid.Edge) {
	t.Helper()
	delete(walls.walls, e)
	require.NoError(t, g.OnWallRemoved(e))
	require.NoError(t, g.CheckPartition())
}

// enclosure returns the wall loop around tiles (3,3)-(5,5).
func enclosure() []grid.Edge {
	var edges []grid.Edge
	for i := 3; i <= 5; i++ {
		edges = append(edges, hEdge(i, 2), vEdge(5, i), hEdge(i, 5), vEdge(2, i))
	}
	return edges
}

func TestEnclosureWithDoorCreatesTwoAreas(t *testing.T) {
	walls := newFakeWalls()
	g := newGraph(t, 10, 10, grid.T(1, 1), walls)
	door := vEdge(2, 4)
	for _, e := range enclosure() {
		addWall(t, g, walls, e, e == door)
	}

	require.Len(t, g.Areas(), 2)
	main, ok := g.AreaAt(grid.T(1, 1))
	require.True(t, ok)
	require.Equal(t, MainAreaID, main.ID)
	require.Equal(t, 91, main.Size())

	inner, ok := g.AreaAt(grid.T(4, 4))
	require.True(t, ok)
	require.Equal(t, 9, inner.Size())
	require.Equal(t, []AreaID{MainAreaID}, inner.Neighbours())
	require.Equal(t, []grid.Edge{door}, inner.Doors(MainAreaID))
	require.Equal(t, []grid.Edge{door}, main.Doors(inner.ID))

	path := g.ShortestAreaPath(main.ID, inner.ID)
	require.Len(t, path, 2)
	require.Equal(t, main.ID, path[0].ID)
	require.Equal(t, inner.ID, path[1].ID)
	require.True(t, g.Reachable(inner.ID, main.ID))

	walls.walls[door] = false
	g.OnDoorToggled(door, false)
	require.False(t, g.Reachable(main.ID, inner.ID))
	require.Empty(t, g.ShortestAreaPath(main.ID, inner.ID))
}

func TestSplitMergeRoundTrip(t *testing.T) {
	walls := newFakeWalls()
	g := newGraph(t, 10, 10, grid.T(1, 1), walls)
	before := g.areas[MainAreaID].Tiles()

	for _, e := range enclosure() {
		addWall(t, g, walls, e, false)
	}
	require.Len(t, g.Areas(), 2)
	require.Equal(t, uint64(1), g.Stats().Splits)

	removeWall(t, g, walls, vEdge(5, 4))
	require.Len(t, g.Areas(), 1)
	main, ok := g.Area(MainAreaID)
	require.True(t, ok)
	require.Equal(t, before, main.Tiles())
	require.Equal(t, uint64(1), g.Stats().Merges)

	_, ok = g.Area(1)
	require.False(t, ok, "merged area id must not come back")
}

func TestNonSplittingWallLeavesGraphAlone(t *testing.T) {
	walls := newFakeWalls()
	g := newGraph(t, 4, 4, grid.T(0, 0), walls)
	var changes []Change
	g.Subscribe(func(c Change) { changes = append(changes, c) })

	addWall(t, g, walls, vEdge(1, 1), false)
	addWall(t, g, walls, hEdge(2, 2), false)

	require.Len(t, g.Areas(), 1)
	require.Empty(t, changes)
	require.Zero(t, g.Stats().Splits)
}

func TestLargerFragmentKeepsIdentity(t *testing.T) {
	walls := newFakeWalls()
	g := newGraph(t, 6, 1, grid.T(0, 0), walls)

	addWall(t, g, walls, vEdge(1, 0), false)

	right, ok := g.AreaAt(grid.T(5, 0))
	require.True(t, ok)
	require.Equal(t, MainAreaID, right.ID)
	require.Equal(t, 4, right.Size())
	left, ok := g.AreaAt(grid.T(0, 0))
	require.True(t, ok)
	require.Equal(t, AreaID(1), left.ID)
}

func TestMergeKeepsMainIdentity(t *testing.T) {
	walls := newFakeWalls()
	walls.walls[vEdge(0, 0)] = false
	g := newGraph(t, 6, 1, grid.T(0, 0), walls)
	require.Len(t, g.Areas(), 2)
	main, _ := g.AreaAt(grid.T(0, 0))
	require.Equal(t, MainAreaID, main.ID)
	require.Equal(t, 1, main.Size())

	removeWall(t, g, walls, vEdge(0, 0))
	merged, ok := g.AreaAt(grid.T(5, 0))
	require.True(t, ok)
	require.Equal(t, MainAreaID, merged.ID)
	require.Equal(t, 6, merged.Size())
}

func TestShortestAreaPathAlongChain(t *testing.T) {
	walls := newFakeWalls()
	for y := 0; y < 3; y++ {
		walls.walls[vEdge(2, y)] = y == 1
		walls.walls[vEdge(5, y)] = y == 1
	}
	g := newGraph(t, 9, 3, grid.T(0, 1), walls)
	require.Len(t, g.Areas(), 3)

	a, _ := g.AreaAt(grid.T(0, 0))
	b, _ := g.AreaAt(grid.T(4, 1))
	c, _ := g.AreaAt(grid.T(8, 2))
	require.Equal(t, []AreaID{0, 1, 2}, []AreaID{a.ID, b.ID, c.ID})

	path := g.ShortestAreaPath(a.ID, c.ID)
	require.Equal(t, []*Area{a, b, c}, path)
	require.True(t, g.Reachable(a.ID, c.ID))

	walls.walls[vEdge(5, 1)] = false
	g.OnDoorToggled(vEdge(5, 1), false)
	require.False(t, g.Reachable(a.ID, c.ID))
	require.Nil(t, g.ShortestAreaPath(a.ID, c.ID))
	require.Equal(t, []*Area{a, b}, g.ShortestAreaPath(a.ID, b.ID))

	// toggling an already closed door is a no-op
	g.OnDoorToggled(vEdge(5, 1), false)
	require.NoError(t, g.CheckPartition())
}

func TestSplitMovesDoorLinksToNewArea(t *testing.T) {
	walls := newFakeWalls()
	for y := 0; y < 4; y++ {
		walls.walls[vEdge(1, y)] = y == 3
	}
	g := newGraph(t, 6, 4, grid.T(0, 0), walls)
	left, _ := g.AreaAt(grid.T(0, 0))
	right, _ := g.AreaAt(grid.T(4, 0))
	require.Equal(t, []AreaID{right.ID}, left.Neighbours())

	// cut the bottom row of the right side off; the door lands in the new area
	for x := 2; x < 6; x++ {
		addWall(t, g, walls, hEdge(x, 2), false)
	}
	bottom, ok := g.AreaAt(grid.T(3, 3))
	require.True(t, ok)
	require.NotEqual(t, right.ID, bottom.ID)
	require.Equal(t, []grid.Edge{vEdge(1, 3)}, left.Doors(bottom.ID))
	require.Empty(t, left.Doors(right.ID))
	require.Equal(t, []AreaID{left.ID}, bottom.Neighbours())
	require.Empty(t, right.Neighbours())
}

func TestMergeRejectsInconsistentTopology(t *testing.T) {
	if debugAssertions {
		t.Skip("topology failures panic in debug builds")
	}
	memory := sinks.NewMemorySink()
	walls := newFakeWalls()
	walls.walls[vEdge(0, 0)] = false
	walls.walls[vEdge(1, 0)] = false
	g := newGraph(t, 3, 1, grid.T(0, 0), walls, Deps{Publisher: memory})
	require.Len(t, g.Areas(), 3)

	// the first wall disappears without the graph being told
	delete(walls.walls, vEdge(0, 0))
	delete(walls.walls, vEdge(1, 0))
	err := g.OnWallRemoved(vEdge(1, 0))
	require.ErrorIs(t, err, ErrInvalidTopology)
	require.Len(t, g.Areas(), 3)
	require.Equal(t, uint64(1), g.Stats().TopologyFailures)
	require.Len(t, memory.EventsOfType(loggingregions.EventTopologyRejected), 1)
}

func TestRestoreMembership(t *testing.T) {
	walls := newFakeWalls()
	g := newGraph(t, 10, 10, grid.T(1, 1), walls)
	door := vEdge(2, 4)
	for _, e := range enclosure() {
		addWall(t, g, walls, e, e == door)
	}
	membership := g.Membership()

	restored, err := New(Config{Bounds: grid.Bounds{Width: 10, Height: 10}, Entrance: grid.T(1, 1), Seed: 7}, Deps{Walkable: walls, Walls: walls})
	require.NoError(t, err)
	require.NoError(t, restored.RestoreMembership(membership))
	require.NoError(t, restored.CheckPartition())
	require.Len(t, restored.Areas(), 2)
	inner, _ := restored.AreaAt(grid.T(4, 4))
	require.Equal(t, []grid.Edge{door}, inner.Doors(MainAreaID))

	corrupt := slices.Clone(membership)
	corrupt[grid.Bounds{Width: 10, Height: 10}.Index(grid.T(4, 4))] = MainAreaID
	require.ErrorIs(t, restored.RestoreMembership(corrupt), ErrMembershipMismatch)
	require.ErrorIs(t, restored.RestoreMembership(membership[:5]), ErrMembershipSize)
	require.Len(t, restored.Areas(), 2)
}

func TestRestoreMembershipWithFencedEntrance(t *testing.T) {
	walls := newFakeWalls()
	g := newGraph(t, 10, 10, grid.T(1, 1), walls)
	for i := 1; i <= 2; i++ {
		addWall(t, g, walls, hEdge(i, 0), false)
		addWall(t, g, walls, hEdge(i, 2), false)
		addWall(t, g, walls, vEdge(0, i), false)
		addWall(t, g, walls, vEdge(2, i), false)
	}
	pen, ok := g.AreaAt(grid.T(1, 1))
	require.True(t, ok)
	require.Equal(t, 4, pen.Size())
	membership := g.Membership()

	restored, err := New(Config{Bounds: grid.Bounds{Width: 10, Height: 10}, Entrance: grid.T(1, 1), Seed: 7}, Deps{Walkable: walls, Walls: walls})
	require.NoError(t, err)
	require.NoError(t, restored.RestoreMembership(membership))
	require.NoError(t, restored.CheckPartition())
	require.Equal(t, membership, restored.Membership())
	entrance, ok := restored.AreaAt(grid.T(1, 1))
	require.True(t, ok)
	require.Equal(t, pen.ID, entrance.ID)
	require.Equal(t, 4, entrance.Size())
}

func TestBlockedTilesStayOutsidePartition(t *testing.T) {
	walls := newFakeWalls()
	for y := 0; y < 3; y++ {
		walls.blocked[grid.T(1, y)] = true
	}
	g := newGraph(t, 3, 3, grid.T(0, 0), walls)
	require.Len(t, g.Areas(), 2)
	_, ok := g.AreaAt(grid.T(1, 1))
	require.False(t, ok)
	_, ok = g.AreaAt(grid.T(-1, 0))
	require.False(t, ok)
}

func TestIncrementalEditsMatchFullRebuild(t *testing.T) {
	const size = 8
	rng := rand.New(rand.NewSource(42))
	walls := newFakeWalls()
	g := newGraph(t, size, size, grid.T(0, 0), walls)
	bounds := grid.Bounds{Width: size, Height: size}

	var candidates []grid.Edge
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			for _, e := range []grid.Edge{vEdge(x, y), hEdge(x, y)} {
				if e.InBounds(bounds) {
					candidates = append(candidates, e)
				}
			}
		}
	}

	for step := 0; step < 400; step++ {
		e := candidates[rng.Intn(len(candidates))]
		if _, exists := walls.walls[e]; exists {
			removeWall(t, g, walls, e)
		} else {
			addWall(t, g, walls, e, rng.Intn(4) == 0)
		}

		fresh := newGraph(t, size, size, grid.T(0, 0), walls)
		require.Len(t, g.Areas(), len(fresh.Areas()), "step %d", step)
		for idx := range g.tileArea {
			for other := idx + 1; other < len(g.tileArea); other += 7 {
				same := g.tileArea[idx] == g.tileArea[other]
				freshSame := fresh.tileArea[idx] == fresh.tileArea[other]
				require.Equal(t, freshSame, same, "step %d tiles %d/%d", step, idx, other)
			}
		}
		for _, door := range walls.Doors() {
			t1, t2 := door.Tiles()
			a, b := g.areaIDAt(t1), g.areaIDAt(t2)
			if a != b {
				require.Contains(t, g.areas[a].Doors(b), door, "step %d", step)
			}
		}
	}
}
