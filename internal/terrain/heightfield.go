// Package terrain stores the per-vertex elevation lattice of the map and
// derives slope shapes, water state and surface heights from it.
package terrain

import (
	"context"
	"errors"
	"fmt"
	"math"

	"menagerie/server/internal/grid"
	"menagerie/server/logging"
	loggingterrain "menagerie/server/logging/terrain"
)

const (
	// LevelWater floods every tile touching the vertex.
	LevelWater = -1
	// LevelFlat is the ground level of a fresh map.
	LevelFlat = 0
	// LevelHill is one step above ground.
	LevelHill = 1

	DefaultStepHeight = 0.5
)

var (
	ErrLevelCount  = errors.New("terrain: level count does not match map size")
	ErrLevelRange  = errors.New("terrain: level outside configured range")
	ErrUndoRefused = errors.New("terrain: undo would break the surface")
)

// Config bounds the elevation range and scales steps into world height.
type Config struct {
	Bounds     grid.Bounds
	MinLevel   int
	MaxLevel   int
	StepHeight float64
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.MinLevel == 0 && normalized.MaxLevel == 0 {
		normalized.MinLevel = LevelWater
		normalized.MaxLevel = LevelHill
	}
	if normalized.MaxLevel < normalized.MinLevel {
		normalized.MinLevel, normalized.MaxLevel = normalized.MaxLevel, normalized.MinLevel
	}
	if normalized.StepHeight <= 0 {
		normalized.StepHeight = DefaultStepHeight
	}
	return normalized
}

// SurfaceOracle answers whether whatever occupies a tile (objects, footpaths)
// tolerates the tile taking on a new shape and water state.
type SurfaceOracle interface {
	AllowsSurface(t grid.Tile, variant SlopeVariant, water bool) bool
}

// SurfaceFunc adapts a function into a SurfaceOracle.
type SurfaceFunc func(t grid.Tile, variant SlopeVariant, water bool) bool

func (f SurfaceFunc) AllowsSurface(t grid.Tile, variant SlopeVariant, water bool) bool {
	if f == nil {
		return true
	}
	return f(t, variant, water)
}

// Deps carries the collaborators of a HeightField.
type Deps struct {
	Surface   SurfaceOracle
	Publisher logging.Publisher
	Tick      func() uint64
}

// VertexChange records the level a vertex held before an edit.
type VertexChange struct {
	Vertex   grid.Vertex `json:"vertex" msgpack:"v"`
	Previous int         `json:"previous" msgpack:"p"`
}

// ElevationChange is delivered once per stroke so terrain chunks and
// walkability caches can refresh the affected region.
type ElevationChange struct {
	Center   grid.Vec2
	Radius   float64
	Min      grid.Vertex
	Max      grid.Vertex
	Vertices int
}

// HeightField is a (W+1)×(H+1) lattice of integer elevation levels. It is
// mutated only from the update thread.
type HeightField struct {
	cfg       Config
	bounds    grid.Bounds
	levels    []int
	surface   SurfaceOracle
	publisher logging.Publisher
	tick      func() uint64
	listeners []func(ElevationChange)
}

// New builds a flat height field.
func New(cfg Config, deps Deps) *HeightField {
	normalized := cfg.normalized()
	surface := deps.Surface
	if surface == nil {
		surface = SurfaceFunc(nil)
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	tick := deps.Tick
	if tick == nil {
		tick = func() uint64 { return 0 }
	}
	levels := make([]int, normalized.Bounds.VertexCount())
	if LevelFlat >= normalized.MinLevel && LevelFlat <= normalized.MaxLevel {
		for i := range levels {
			levels[i] = LevelFlat
		}
	} else {
		for i := range levels {
			levels[i] = normalized.MinLevel
		}
	}
	return &HeightField{
		cfg:       normalized,
		bounds:    normalized.Bounds,
		levels:    levels,
		surface:   surface,
		publisher: publisher,
		tick:      tick,
	}
}

// Bounds returns the tile dimensions of the field.
func (h *HeightField) Bounds() grid.Bounds { return h.bounds }

// Subscribe registers a callback for elevation change notifications.
func (h *HeightField) Subscribe(fn func(ElevationChange)) {
	if fn != nil {
		h.listeners = append(h.listeners, fn)
	}
}

// Level returns the elevation of v.
func (h *HeightField) Level(v grid.Vertex) (int, bool) {
	if !h.bounds.ContainsVertex(v) {
		return 0, false
	}
	return h.levels[h.bounds.VertexIndex(v)], true
}

func (h *HeightField) corners(t grid.Tile) (nw, ne, sw, se int) {
	vnw, vne, vsw, vse := grid.Corners(t)
	return h.levels[h.bounds.VertexIndex(vnw)], h.levels[h.bounds.VertexIndex(vne)],
		h.levels[h.bounds.VertexIndex(vsw)], h.levels[h.bounds.VertexIndex(vse)]
}

// SlopeVariant classifies t; out of map tiles are Flat.
func (h *HeightField) SlopeVariant(t grid.Tile) SlopeVariant {
	if !h.bounds.Contains(t) {
		return Flat
	}
	return Classify(h.corners(t))
}

// BaseElevation returns the world height of the lowest corner of t.
func (h *HeightField) BaseElevation(t grid.Tile) float64 {
	if !h.bounds.Contains(t) {
		return 0
	}
	return float64(min(h.corners(t))) * h.cfg.StepHeight
}

// IsWater reports whether any corner of t lies below ground.
func (h *HeightField) IsWater(t grid.Tile) bool {
	if !h.bounds.Contains(t) {
		return false
	}
	return min(h.corners(t)) < 0
}

// IsSlopeCorner reports whether t has a non-orthogonal slope.
func (h *HeightField) IsSlopeCorner(t grid.Tile) bool {
	return h.SlopeVariant(t).IsCorner()
}

// HeightAt returns the surface height at a map point. Points on the far map
// border resolve against the last tile; points outside the map return 0.
func (h *HeightField) HeightAt(p grid.Vec2) float64 {
	if p.X < 0 || p.Y < 0 || p.X > float64(h.bounds.Width) || p.Y > float64(h.bounds.Height) {
		return 0
	}
	tx := min(int(math.Floor(p.X)), h.bounds.Width-1)
	ty := min(int(math.Floor(p.Y)), h.bounds.Height-1)
	t := grid.T(tx, ty)
	if !h.bounds.Contains(t) {
		return 0
	}
	nw, ne, sw, se := h.corners(t)
	base := min(nw, ne, sw, se)
	shape := Classify(nw, ne, sw, se)
	return (float64(base) + shape.Height(p.X-float64(tx), p.Y-float64(ty))) * h.cfg.StepHeight
}

// SetElevation moves v to level, flattening neighbours as needed so no two
// adjacent vertices differ by more than one step. The whole cascade commits
// or nothing does.
func (h *HeightField) SetElevation(v grid.Vertex, level int) bool {
	changes, ok := h.apply(v, level)
	if !ok {
		return false
	}
	if len(changes) > 0 {
		h.notify(grid.Vec2{X: float64(v.X), Y: float64(v.Y)}, 0, changes)
	}
	return true
}

// SetElevationInRadius applies SetElevation to every vertex inside the
// circular brush in row-major order and returns the undo set. Vertices whose
// edit is refused are skipped. A single notification covers the stroke.
func (h *HeightField) SetElevationInRadius(center grid.Vec2, radius float64, level int) []VertexChange {
	if radius < 0 {
		return nil
	}
	minX := max(int(math.Ceil(center.X-radius)), 0)
	maxX := min(int(math.Floor(center.X+radius)), h.bounds.Width)
	minY := max(int(math.Ceil(center.Y-radius)), 0)
	maxY := min(int(math.Floor(center.Y+radius)), h.bounds.Height)
	r2 := radius * radius

	var undo []VertexChange
	seen := make(map[grid.Vertex]struct{})
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := float64(x) - center.X
			dy := float64(y) - center.Y
			if dx*dx+dy*dy > r2 {
				continue
			}
			changes, ok := h.apply(grid.V(x, y), level)
			if !ok {
				continue
			}
			for _, change := range changes {
				if _, dup := seen[change.Vertex]; dup {
					continue
				}
				seen[change.Vertex] = struct{}{}
				undo = append(undo, change)
			}
		}
	}
	if len(undo) > 0 {
		h.notify(center, radius, undo)
	}
	return undo
}

// Undo restores the levels recorded in an undo set as one edit. The
// restored lattice must keep adjacent vertices within one step and pass the
// surface oracle; otherwise nothing changes and ErrUndoRefused is returned.
func (h *HeightField) Undo(changes []VertexChange) error {
	pending := make(map[int]int, len(changes))
	for i := len(changes) - 1; i >= 0; i-- {
		change := changes[i]
		if !h.bounds.ContainsVertex(change.Vertex) {
			continue
		}
		pending[h.bounds.VertexIndex(change.Vertex)] = change.Previous
	}
	levelOf := func(v grid.Vertex) int {
		idx := h.bounds.VertexIndex(v)
		if value, ok := pending[idx]; ok {
			return value
		}
		return h.levels[idx]
	}

	var order []grid.Vertex
	seen := make(map[int]struct{}, len(pending))
	for _, change := range changes {
		if !h.bounds.ContainsVertex(change.Vertex) {
			continue
		}
		idx := h.bounds.VertexIndex(change.Vertex)
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		if pending[idx] != h.levels[idx] {
			order = append(order, change.Vertex)
		}
	}
	if len(order) == 0 {
		return nil
	}

	for _, vertex := range order {
		level := levelOf(vertex)
		for _, dir := range grid.All {
			dx, dy := dir.Offset()
			n := grid.V(vertex.X+dx, vertex.Y+dy)
			if !h.bounds.ContainsVertex(n) {
				continue
			}
			if diff := levelOf(n) - level; diff > 1 || diff < -1 {
				return h.refuseUndo(vertex, level, fmt.Sprintf("vertex (%d,%d) would differ from (%d,%d) by %d", vertex.X, vertex.Y, n.X, n.Y, diff))
			}
		}
	}
	if reason, ok := h.validate(pending, order); !ok {
		return h.refuseUndo(order[0], levelOf(order[0]), reason)
	}

	restored := make([]VertexChange, 0, len(order))
	for _, vertex := range order {
		idx := h.bounds.VertexIndex(vertex)
		restored = append(restored, VertexChange{Vertex: vertex, Previous: h.levels[idx]})
		h.levels[idx] = pending[idx]
	}
	mn, mx := vertexRect(restored)
	center := grid.Vec2{X: float64(mn.X+mx.X) / 2, Y: float64(mn.Y+mx.Y) / 2}
	radius := math.Hypot(float64(mx.X-mn.X), float64(mx.Y-mn.Y)) / 2
	h.notify(center, radius, restored)
	return nil
}

func (h *HeightField) refuseUndo(v grid.Vertex, level int, reason string) error {
	loggingterrain.ElevationRejected(context.Background(), h.publisher, h.tick(), loggingterrain.ElevationRejectedPayload{
		X:      v.X,
		Y:      v.Y,
		Level:  level,
		Reason: "undo: " + reason,
	})
	return fmt.Errorf("%w: %s", ErrUndoRefused, reason)
}

// Levels returns a copy of the raw lattice in row-major vertex order.
func (h *HeightField) Levels() []int {
	return append([]int(nil), h.levels...)
}

// Load replaces the lattice wholesale. No notification is sent.
func (h *HeightField) Load(levels []int) error {
	if len(levels) != len(h.levels) {
		return fmt.Errorf("%w: got %d want %d", ErrLevelCount, len(levels), len(h.levels))
	}
	for i, level := range levels {
		if level < h.cfg.MinLevel || level > h.cfg.MaxLevel {
			return fmt.Errorf("%w: vertex %d level %d", ErrLevelRange, i, level)
		}
	}
	copy(h.levels, levels)
	return nil
}

func (h *HeightField) apply(v grid.Vertex, level int) ([]VertexChange, bool) {
	if !h.bounds.ContainsVertex(v) {
		return nil, false
	}
	if level < h.cfg.MinLevel || level > h.cfg.MaxLevel {
		return nil, false
	}
	pending, order, ok := h.plan(v, level)
	if !ok {
		return nil, false
	}
	if len(order) == 0 {
		return nil, true
	}
	if reason, ok := h.validate(pending, order); !ok {
		loggingterrain.ElevationRejected(context.Background(), h.publisher, h.tick(), loggingterrain.ElevationRejectedPayload{
			X:      v.X,
			Y:      v.Y,
			Level:  level,
			Reason: reason,
		})
		return nil, false
	}
	changes := make([]VertexChange, 0, len(order))
	for _, vertex := range order {
		idx := h.bounds.VertexIndex(vertex)
		changes = append(changes, VertexChange{Vertex: vertex, Previous: h.levels[idx]})
		h.levels[idx] = pending[idx]
	}
	return changes, true
}

// plan computes the cascade for moving v to level without touching the
// lattice. order lists the vertices whose level actually changes.
func (h *HeightField) plan(v grid.Vertex, level int) (map[int]int, []grid.Vertex, bool) {
	startIdx := h.bounds.VertexIndex(v)
	pending := map[int]int{startIdx: level}
	var order []grid.Vertex
	if h.levels[startIdx] != level {
		order = append(order, v)
	}
	queued := map[int]bool{startIdx: true}
	queue := []grid.Vertex{v}
	budget := 8 * (h.bounds.VertexCount() + 1)
	for len(queue) > 0 {
		budget--
		if budget < 0 {
			return nil, nil, false
		}
		cur := queue[0]
		queue = queue[1:]
		target := pending[h.bounds.VertexIndex(cur)]
		for _, dir := range grid.All {
			dx, dy := dir.Offset()
			n := grid.V(cur.X+dx, cur.Y+dy)
			if !h.bounds.ContainsVertex(n) {
				continue
			}
			ni := h.bounds.VertexIndex(n)
			value, planned := pending[ni]
			if !planned {
				value = h.levels[ni]
			}
			switch {
			case value > target+1:
				value = target + 1
			case value < target-1:
				value = target - 1
			default:
				continue
			}
			if !planned && !queued[ni] {
				order = append(order, n)
			}
			pending[ni] = value
			queued[ni] = true
			queue = append(queue, n)
		}
	}
	filtered := order[:0]
	for _, vertex := range order {
		idx := h.bounds.VertexIndex(vertex)
		if pending[idx] != h.levels[idx] {
			filtered = append(filtered, vertex)
		}
	}
	return pending, filtered, true
}

func (h *HeightField) validate(pending map[int]int, order []grid.Vertex) (string, bool) {
	levelOf := func(v grid.Vertex) int {
		idx := h.bounds.VertexIndex(v)
		if value, ok := pending[idx]; ok {
			return value
		}
		return h.levels[idx]
	}
	checked := make(map[grid.Tile]struct{})
	for _, vertex := range order {
		for _, t := range h.bounds.TilesAround(vertex) {
			if _, done := checked[t]; done {
				continue
			}
			checked[t] = struct{}{}
			vnw, vne, vsw, vse := grid.Corners(t)
			nw, ne, sw, se := levelOf(vnw), levelOf(vne), levelOf(vsw), levelOf(vse)
			variant := Classify(nw, ne, sw, se)
			water := min(nw, ne, sw, se) < 0
			if variant == h.SlopeVariant(t) && water == h.IsWater(t) {
				continue
			}
			if !h.surface.AllowsSurface(t, variant, water) {
				return fmt.Sprintf("tile (%d,%d) cannot become %s water=%t", t.X, t.Y, variant, water), false
			}
		}
	}
	return "", true
}

func (h *HeightField) notify(center grid.Vec2, radius float64, changes []VertexChange) {
	mn, mx := vertexRect(changes)
	change := ElevationChange{
		Center:   center,
		Radius:   radius,
		Min:      mn,
		Max:      mx,
		Vertices: len(changes),
	}
	for _, fn := range h.listeners {
		fn(change)
	}
	loggingterrain.ElevationChanged(context.Background(), h.publisher, h.tick(), loggingterrain.ElevationChangedPayload{
		CenterX:  center.X,
		CenterY:  center.Y,
		Radius:   radius,
		MinX:     mn.X,
		MinY:     mn.Y,
		MaxX:     mx.X,
		MaxY:     mx.Y,
		Vertices: len(changes),
	})
}

func vertexRect(changes []VertexChange) (grid.Vertex, grid.Vertex) {
	if len(changes) == 0 {
		return grid.Vertex{}, grid.Vertex{}
	}
	mn, mx := changes[0].Vertex, changes[0].Vertex
	for _, change := range changes[1:] {
		mn.X = min(mn.X, change.Vertex.X)
		mn.Y = min(mn.Y, change.Vertex.Y)
		mx.X = max(mx.X, change.Vertex.X)
		mx.Y = max(mx.Y, change.Vertex.Y)
	}
	return mn, mx
}
