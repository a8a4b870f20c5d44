package grid

import "fmt"

// Orientation distinguishes the two kinds of tile edge.
type Orientation uint8

const (
	// Vertical edges separate horizontally adjacent tiles.
	Vertical Orientation = iota
	// Horizontal edges separate vertically adjacent tiles.
	Horizontal
)

// Edge is the boundary between two orthogonally adjacent tiles. A Vertical
// edge at (x,y) separates (x,y) from (x+1,y); a Horizontal edge at (x,y)
// separates (x,y) from (x,y+1).
type Edge struct {
	X           int         `json:"x" msgpack:"x"`
	Y           int         `json:"y" msgpack:"y"`
	Orientation Orientation `json:"orientation" msgpack:"o"`
}

// Tiles returns the two tiles on either side of e, west/north first.
func (e Edge) Tiles() (Tile, Tile) {
	a := Tile{X: e.X, Y: e.Y}
	if e.Orientation == Vertical {
		return a, Tile{X: e.X + 1, Y: e.Y}
	}
	return a, Tile{X: e.X, Y: e.Y + 1}
}

// EdgeBetween returns the edge shared by two orthogonally adjacent tiles.
func EdgeBetween(a, b Tile) (Edge, bool) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	switch {
	case dx == 1 && dy == 0:
		return Edge{X: a.X, Y: a.Y, Orientation: Vertical}, true
	case dx == -1 && dy == 0:
		return Edge{X: b.X, Y: b.Y, Orientation: Vertical}, true
	case dx == 0 && dy == 1:
		return Edge{X: a.X, Y: a.Y, Orientation: Horizontal}, true
	case dx == 0 && dy == -1:
		return Edge{X: b.X, Y: b.Y, Orientation: Horizontal}, true
	default:
		return Edge{}, false
	}
}

// EdgeToward returns the edge crossed when stepping from t in cardinal
// direction d.
func EdgeToward(t Tile, d Direction) (Edge, bool) {
	if d.Diagonal() {
		return Edge{}, false
	}
	return EdgeBetween(t, t.Add(d))
}

// Less orders edges row-major with vertical edges first.
func (e Edge) Less(o Edge) bool {
	if e.Y != o.Y {
		return e.Y < o.Y
	}
	if e.X != o.X {
		return e.X < o.X
	}
	return e.Orientation < o.Orientation
}

// InBounds reports whether both sides of e are inside b.
func (e Edge) InBounds(b Bounds) bool {
	t1, t2 := e.Tiles()
	return b.Contains(t1) && b.Contains(t2)
}

func (e Edge) String() string {
	if e.Orientation == Vertical {
		return fmt.Sprintf("v(%d,%d)", e.X, e.Y)
	}
	return fmt.Sprintf("h(%d,%d)", e.X, e.Y)
}
