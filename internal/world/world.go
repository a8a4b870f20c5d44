// Package world wires the height field, region graph and pathfinder of one
// map together and owns the wall, object and footpath tables they read.
package world

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"menagerie/server/internal/grid"
	"menagerie/server/internal/nav"
	"menagerie/server/internal/regions"
	"menagerie/server/internal/telemetry"
	"menagerie/server/internal/terrain"
	"menagerie/server/logging"
)

var (
	ErrOutOfBounds = errors.New("world: out of bounds")
	ErrOccupied    = errors.New("world: tile or edge occupied")
	ErrSurface     = errors.New("world: surface does not allow placement")
	ErrNoWall      = errors.New("world: no wall on edge")
	ErrNoObject    = errors.New("world: no object on tile")
	ErrNoFootpath  = errors.New("world: no footpath on tile")
)

// Object is a tile occupant such as a fence post, tree or shelter.
type Object struct {
	Name         string `json:"name" msgpack:"name"`
	Solid        bool   `json:"solid" msgpack:"solid"`
	CanSlope     bool   `json:"canSlope" msgpack:"canSlope"`
	CanBeInWater bool   `json:"canBeInWater" msgpack:"canBeInWater"`
}

// Deps bundles runtime dependencies required to construct a World.
type Deps struct {
	Publisher logging.Publisher
	Logger    telemetry.Logger
}

// World is mutated only from the update thread. Path searches run on the
// pathfinder's workers against snapshots the world publishes.
type World struct {
	config Config
	bounds grid.Bounds

	publisher logging.Publisher
	logger    telemetry.Logger
	tick      uint64

	walls     map[grid.Edge]bool
	objects   map[grid.Tile]Object
	footpaths map[grid.Tile]struct{}

	terrain *terrain.HeightField
	regions *regions.Graph
	paths   *nav.Pathfinder

	generation uint64
	navDirty   bool
}

// New constructs a world with flat terrain, no walls and a single area.
func New(cfg Config, deps Deps) (*World, error) {
	normalized := cfg.normalized()

	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}

	w := &World{
		config:    normalized,
		bounds:    normalized.Bounds(),
		publisher: publisher,
		logger:    logger,
		walls:     make(map[grid.Edge]bool),
		objects:   make(map[grid.Tile]Object),
		footpaths: make(map[grid.Tile]struct{}),
		navDirty:  true,
	}
	tick := func() uint64 { return w.tick }

	w.terrain = terrain.New(terrain.Config{
		Bounds:     w.bounds,
		MinLevel:   normalized.MinLevel,
		MaxLevel:   normalized.MaxLevel,
		StepHeight: normalized.StepHeight,
	}, terrain.Deps{
		Surface:   surfaceOracle{w},
		Publisher: publisher,
		Tick:      tick,
	})
	w.terrain.Subscribe(func(terrain.ElevationChange) { w.navDirty = true })

	graph, err := regions.New(regions.Config{
		Bounds:   w.bounds,
		Entrance: normalized.Entrance(),
		Seed:     normalized.Seed,
	}, regions.Deps{
		Walkable:  regionOracle{w},
		Walls:     regionOracle{w},
		Publisher: publisher,
		Tick:      tick,
	})
	if err != nil {
		return nil, fmt.Errorf("world: build regions: %w", err)
	}
	w.regions = graph
	w.regions.RebuildAll()

	w.paths = nav.New(nav.Config{
		Workers:   normalized.PathWorkers,
		QueueSize: normalized.PathQueue,
	}, nav.Deps{
		Areas:     areaOracle{w},
		Publisher: publisher,
	})
	w.refreshNav()
	return w, nil
}

// Start launches the pathfinder workers.
func (w *World) Start(ctx context.Context) {
	w.paths.Start(ctx)
}

// Close stops the pathfinder workers.
func (w *World) Close() {
	w.paths.Close()
}

func (w *World) Config() Config { return w.config }
func (w *World) Bounds() grid.Bounds { return w.bounds }
func (w *World) Terrain() *terrain.HeightField { return w.terrain }
func (w *World) Regions() *regions.Graph { return w.regions }
func (w *World) Pathfinder() *nav.Pathfinder { return w.paths }
func (w *World) Tick() uint64 { return w.tick }
func (w *World) SetTick(tick uint64) { w.tick = tick }
func (w *World) Publisher() logging.Publisher { return w.publisher }
func (w *World) NavGeneration() uint64 { return w.generation }

// Wall reports whether e carries a wall and whether that wall is a door.
func (w *World) Wall(e grid.Edge) (exists, door bool) {
	door, exists = w.walls[e]
	return exists, door
}

// Walls lists every wall edge in row-major order.
func (w *World) Walls() []grid.Edge {
	edges := make([]grid.Edge, 0, len(w.walls))
	for e := range w.walls {
		edges = append(edges, e)
	}
	sortEdges(edges)
	return edges
}

// Object returns the occupant of t.
func (w *World) Object(t grid.Tile) (Object, bool) {
	obj, ok := w.objects[t]
	return obj, ok
}

// HasFootpath reports whether t carries a footpath.
func (w *World) HasFootpath(t grid.Tile) bool {
	_, ok := w.footpaths[t]
	return ok
}

// RequestPath asks the pathfinder for a route. The nav snapshot is rebuilt
// first if anything changed since the last request.
func (w *World) RequestPath(start, end grid.Tile, access nav.AccessibilityType) *nav.Handle {
	w.refreshNav()
	return w.paths.RequestPath(start, end, access)
}

// CancelPath drops interest in a route.
func (w *World) CancelPath(h *nav.Handle) {
	w.paths.Cancel(h)
}

// Nearest finds the closest tile access can stand on.
func (w *World) Nearest(t grid.Tile, access nav.AccessibilityType) (grid.Tile, bool) {
	w.refreshNav()
	return w.paths.Nearest(t, access)
}

// Summary describes one area for inspectors.
type Summary struct {
	ID         int            `json:"id"`
	Tiles      int            `json:"tiles"`
	Color      regions.Color  `json:"color"`
	Neighbours []int          `json:"neighbours"`
	Doors      map[int]string `json:"doors,omitempty"`
}

// AreaSummaries lists every area with its links.
func (w *World) AreaSummaries() []Summary {
	areas := w.regions.Areas()
	out := make([]Summary, 0, len(areas))
	for _, area := range areas {
		summary := Summary{ID: int(area.ID), Tiles: area.Size(), Color: area.Color}
		for _, id := range area.Neighbours() {
			summary.Neighbours = append(summary.Neighbours, int(id))
			if summary.Doors == nil {
				summary.Doors = make(map[int]string)
			}
			summary.Doors[int(id)] = fmt.Sprint(area.Doors(id))
		}
		out = append(out, summary)
	}
	return out
}

func (w *World) refreshNav() {
	if !w.navDirty {
		return
	}
	builder := nav.NewBuilder(w.bounds)
	for idx := 0; idx < w.bounds.Size(); idx++ {
		t := w.bounds.TileAt(idx)
		var flags nav.TileFlags
		if obj, ok := w.objects[t]; !ok || !obj.Solid {
			flags |= nav.FlagWalkable
		}
		if w.terrain.IsWater(t) {
			flags |= nav.FlagWater
		}
		if _, ok := w.footpaths[t]; ok {
			flags |= nav.FlagFootpath
		}
		builder.SetFlags(t, flags)
	}
	for e, door := range w.walls {
		if !door {
			builder.BlockEdge(e)
		}
	}
	w.generation++
	w.paths.SetGrid(builder.Build(w.generation))
	w.navDirty = false
}

func (w *World) topologyFallback(op string, e grid.Edge, err error) {
	w.logger.Printf("world: %s %s: %v; rebuilding areas", op, e, err)
	w.regions.RebuildAll()
}

func sortEdges(edges []grid.Edge) {
	slices.SortFunc(edges, func(a, b grid.Edge) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
}
