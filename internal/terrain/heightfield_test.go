package terrain

import (
	"errors"
	"testing"

	"menagerie/server/internal/grid"
	loggingterrain "menagerie/server/logging/terrain"
	"menagerie/server/logging/sinks"
)

func newField(w, h int, deps Deps) *HeightField {
	return New(Config{Bounds: grid.Bounds{Width: w, Height: h}, MinLevel: -2, MaxLevel: 2}, deps)
}

func mustLevel(t *testing.T, field *HeightField, v grid.Vertex) int {
	t.Helper()
	level, ok := field.Level(v)
	if !ok {
		t.Fatalf("vertex %v out of bounds", v)
	}
	return level
}

func TestSetElevationCascadesToNeighbours(t *testing.T) {
	field := newField(4, 4, Deps{})
	if !field.SetElevation(grid.V(2, 2), 2) {
		t.Fatalf("expected elevation edit to succeed")
	}
	expectations := map[grid.Vertex]int{
		grid.V(2, 2): 2,
		grid.V(1, 1): 1,
		grid.V(3, 2): 1,
		grid.V(3, 3): 1,
		grid.V(0, 0): 0,
		grid.V(4, 4): 0,
		grid.V(4, 2): 0,
	}
	for v, want := range expectations {
		if got := mustLevel(t, field, v); got != want {
			t.Fatalf("vertex %v: expected level %d, got %d", v, want, got)
		}
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			nw, ne, sw, se := field.corners(grid.T(x, y))
			if max(nw, ne, sw, se)-min(nw, ne, sw, se) > 1 {
				t.Fatalf("tile (%d,%d) spans more than one level: %d %d %d %d", x, y, nw, ne, sw, se)
			}
		}
	}
}

func TestSetElevationRejectsOutOfRange(t *testing.T) {
	field := newField(2, 2, Deps{})
	if field.SetElevation(grid.V(0, 0), 3) {
		t.Fatalf("expected level above max to be rejected")
	}
	if field.SetElevation(grid.V(-1, 0), 1) {
		t.Fatalf("expected vertex outside lattice to be rejected")
	}
	if field.SetElevation(grid.V(3, 0), 1) {
		t.Fatalf("expected vertex outside lattice to be rejected")
	}
}

func TestSetElevationIsAtomicWhenSurfaceRefuses(t *testing.T) {
	memory := sinks.NewMemorySink()
	refused := grid.T(3, 3)
	field := newField(4, 4, Deps{
		Publisher: memory,
		Surface: SurfaceFunc(func(tile grid.Tile, _ SlopeVariant, _ bool) bool {
			return tile != refused
		}),
	})
	before := field.Levels()
	if field.SetElevation(grid.V(2, 2), 2) {
		t.Fatalf("expected cascade touching a protected tile to be rejected")
	}
	after := field.Levels()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("vertex %d changed from %d to %d after rejected edit", i, before[i], after[i])
		}
	}
	if got := len(memory.EventsOfType(loggingterrain.EventElevationRejected)); got != 1 {
		t.Fatalf("expected one rejection event, got %d", got)
	}
	if got := len(memory.EventsOfType(loggingterrain.EventElevationChanged)); got != 0 {
		t.Fatalf("expected no change events, got %d", got)
	}
}

func TestWaterRespectsSurfaceOracle(t *testing.T) {
	field := newField(3, 3, Deps{
		Surface: SurfaceFunc(func(_ grid.Tile, _ SlopeVariant, water bool) bool {
			return !water
		}),
	})
	if field.SetElevation(grid.V(1, 1), -1) {
		t.Fatalf("expected flooding to be refused")
	}
	if !field.SetElevation(grid.V(1, 1), 1) {
		t.Fatalf("expected raising to succeed")
	}
}

func TestSetElevationInRadiusReturnsUndoSet(t *testing.T) {
	field := newField(8, 8, Deps{})
	var notifications []ElevationChange
	field.Subscribe(func(change ElevationChange) {
		notifications = append(notifications, change)
	})

	undo := field.SetElevationInRadius(grid.Vec2{X: 4, Y: 4}, 1.5, 1)
	if len(undo) != 9 {
		t.Fatalf("expected 9 vertices in undo set, got %d", len(undo))
	}
	if undo[0].Vertex != grid.V(3, 3) {
		t.Fatalf("expected row-major order starting at (3,3), got %v", undo[0].Vertex)
	}
	for _, change := range undo {
		if change.Previous != 0 {
			t.Fatalf("expected previous level 0 for %v, got %d", change.Vertex, change.Previous)
		}
		if got := mustLevel(t, field, change.Vertex); got != 1 {
			t.Fatalf("expected %v raised to 1, got %d", change.Vertex, got)
		}
	}
	if len(notifications) != 1 {
		t.Fatalf("expected a single notification per stroke, got %d", len(notifications))
	}
	if notifications[0].Min != grid.V(3, 3) || notifications[0].Max != grid.V(5, 5) {
		t.Fatalf("expected rect (3,3)-(5,5), got %v-%v", notifications[0].Min, notifications[0].Max)
	}

	if err := field.Undo(undo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, level := range field.Levels() {
		if level != 0 {
			t.Fatalf("expected undo to restore flat terrain, found level %d", level)
		}
	}
	if len(notifications) != 2 {
		t.Fatalf("expected undo to notify once, got %d notifications", len(notifications))
	}
}

func TestSetElevationInRadiusKeepsFirstPrevious(t *testing.T) {
	field := newField(6, 6, Deps{})
	undo := field.SetElevationInRadius(grid.Vec2{X: 3, Y: 3}, 1, 2)
	seen := make(map[grid.Vertex]bool)
	for _, change := range undo {
		if seen[change.Vertex] {
			t.Fatalf("vertex %v recorded twice", change.Vertex)
		}
		seen[change.Vertex] = true
	}
	if !seen[grid.V(2, 2)] {
		t.Fatalf("expected cascaded diagonal vertex in undo set")
	}
	if err := field.Undo(undo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, level := range field.Levels() {
		if level != 0 {
			t.Fatalf("expected undo to restore flat terrain, found level %d", level)
		}
	}
}

func TestUndoOutOfOrderRefusesCliff(t *testing.T) {
	memory := sinks.NewMemorySink()
	field := newField(6, 6, Deps{Publisher: memory})
	var notifications int
	field.Subscribe(func(ElevationChange) { notifications++ })

	raise := field.SetElevationInRadius(grid.Vec2{X: 2, Y: 2}, 0, 1)
	lower := field.SetElevationInRadius(grid.Vec2{X: 2, Y: 2}, 0, 0)
	flood := field.SetElevationInRadius(grid.Vec2{X: 3, Y: 2}, 0, -1)
	if len(raise) != 1 || len(lower) != 1 || len(flood) != 1 {
		t.Fatalf("expected single vertex strokes, got %v %v %v", raise, lower, flood)
	}
	before := field.Levels()
	notified := notifications

	if err := field.Undo(lower); !errors.Is(err, ErrUndoRefused) {
		t.Fatalf("expected ErrUndoRefused, got %v", err)
	}
	after := field.Levels()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("expected refused undo to leave levels untouched, vertex %d went %d -> %d", i, before[i], after[i])
		}
	}
	if notifications != notified {
		t.Fatalf("expected no notification for a refused undo")
	}
	if got := len(memory.EventsOfType(loggingterrain.EventElevationRejected)); got != 1 {
		t.Fatalf("expected one rejection event, got %d", got)
	}

	for _, undo := range [][]VertexChange{flood, lower, raise} {
		if err := field.Undo(undo); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for _, level := range field.Levels() {
		if level != 0 {
			t.Fatalf("expected in-order undo to restore flat terrain, found level %d", level)
		}
	}
}

func TestUndoConsultsSurfaceOracle(t *testing.T) {
	frozen := false
	field := newField(4, 4, Deps{
		Surface: SurfaceFunc(func(grid.Tile, SlopeVariant, bool) bool { return !frozen }),
	})
	field.SetElevationInRadius(grid.Vec2{X: 0, Y: 0}, 0, 1)
	lower := field.SetElevationInRadius(grid.Vec2{X: 0, Y: 0}, 0, -1)
	if len(lower) != 1 || lower[0].Previous != 1 {
		t.Fatalf("expected one vertex lowered from 1, got %v", lower)
	}

	frozen = true
	if err := field.Undo(lower); !errors.Is(err, ErrUndoRefused) {
		t.Fatalf("expected ErrUndoRefused, got %v", err)
	}
	if got := mustLevel(t, field, grid.V(0, 0)); got != -1 {
		t.Fatalf("expected vertex to stay at -1, got %d", got)
	}

	frozen = false
	if err := field.Undo(lower); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mustLevel(t, field, grid.V(0, 0)); got != 1 {
		t.Fatalf("expected vertex restored to 1, got %d", got)
	}
}

func TestHeightQueries(t *testing.T) {
	field := New(Config{Bounds: grid.Bounds{Width: 3, Height: 3}}, Deps{})
	if !field.SetElevation(grid.V(1, 1), 1) {
		t.Fatalf("expected raise to succeed")
	}
	if got := field.SlopeVariant(grid.T(0, 0)); got != CornerSE {
		t.Fatalf("expected corner_se, got %s", got)
	}
	if !field.IsSlopeCorner(grid.T(1, 1)) {
		t.Fatalf("expected tile (1,1) to be a slope corner")
	}
	if got := field.HeightAt(grid.Vec2{X: 1, Y: 1}); got != DefaultStepHeight {
		t.Fatalf("expected peak height %.2f, got %.2f", DefaultStepHeight, got)
	}
	if got := field.HeightAt(grid.Vec2{X: 0.5, Y: 0.5}); got != 0 {
		t.Fatalf("expected diagonal height 0, got %.2f", got)
	}
	if got := field.HeightAt(grid.Vec2{X: -1, Y: 0}); got != 0 {
		t.Fatalf("expected 0 outside the map, got %.2f", got)
	}
	if got := field.HeightAt(grid.Vec2{X: 3, Y: 3}); got != 0 {
		t.Fatalf("expected border point to resolve, got %.2f", got)
	}

	if !field.SetElevation(grid.V(2, 2), -1) {
		t.Fatalf("expected flood to succeed")
	}
	if !field.IsWater(grid.T(2, 2)) {
		t.Fatalf("expected tile (2,2) to be water")
	}
	if got := field.BaseElevation(grid.T(2, 2)); got != -DefaultStepHeight {
		t.Fatalf("expected base %.2f, got %.2f", -DefaultStepHeight, got)
	}
	if field.IsWater(grid.T(0, 0)) {
		t.Fatalf("expected tile (0,0) to stay dry")
	}
}

func TestLoadValidatesShape(t *testing.T) {
	field := newField(2, 2, Deps{})
	if err := field.Load(make([]int, 4)); !errors.Is(err, ErrLevelCount) {
		t.Fatalf("expected ErrLevelCount, got %v", err)
	}
	levels := make([]int, 9)
	levels[4] = 9
	if err := field.Load(levels); !errors.Is(err, ErrLevelRange) {
		t.Fatalf("expected ErrLevelRange, got %v", err)
	}
	levels[4] = 1
	if err := field.Load(levels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mustLevel(t, field, grid.V(1, 1)); got != 1 {
		t.Fatalf("expected loaded level 1, got %d", got)
	}
}
