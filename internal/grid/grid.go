// Package grid holds the tile, vertex and edge addressing shared by the
// terrain, region and navigation layers.
package grid

import "math"

// Tile addresses one cell of the map.
type Tile struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// T is a convenience constructor for Tile.
func T(x, y int) Tile { return Tile{X: x, Y: y} }

// Add offsets the tile by d.
func (t Tile) Add(d Direction) Tile {
	off := offsets[d]
	return Tile{X: t.X + off.X, Y: t.Y + off.Y}
}

// Vertex addresses a tile corner. Vertex (x,y) is the NW corner of tile (x,y).
type Vertex struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// V is a convenience constructor for Vertex.
func V(x, y int) Vertex { return Vertex{X: x, Y: y} }

// Vec2 is a point in continuous map space measured in tiles.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TileOf returns the tile containing the point.
func (v Vec2) TileOf() Tile {
	return Tile{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y))}
}

// Center returns the midpoint of a tile.
func (t Tile) Center() Vec2 {
	return Vec2{X: float64(t.X) + 0.5, Y: float64(t.Y) + 0.5}
}

// Bounds describes a width × height tile map.
type Bounds struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether t lies inside the map.
func (b Bounds) Contains(t Tile) bool {
	return t.X >= 0 && t.Y >= 0 && t.X < b.Width && t.Y < b.Height
}

// ContainsVertex reports whether v is one of the (W+1)×(H+1) corners.
func (b Bounds) ContainsVertex(v Vertex) bool {
	return v.X >= 0 && v.Y >= 0 && v.X <= b.Width && v.Y <= b.Height
}

// Size returns the tile count.
func (b Bounds) Size() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Index returns the row-major index of t. Callers check Contains first.
func (b Bounds) Index(t Tile) int {
	return t.Y*b.Width + t.X
}

// TileAt inverts Index.
func (b Bounds) TileAt(idx int) Tile {
	return Tile{X: idx % b.Width, Y: idx / b.Width}
}

// VertexIndex returns the row-major index of v in the corner lattice.
func (b Bounds) VertexIndex(v Vertex) int {
	return v.Y*(b.Width+1) + v.X
}

// VertexCount returns the number of corners in the lattice.
func (b Bounds) VertexCount() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return (b.Width + 1) * (b.Height + 1)
}

// Corners returns the NW, NE, SW and SE vertices of t.
func Corners(t Tile) (nw, ne, sw, se Vertex) {
	return Vertex{t.X, t.Y}, Vertex{t.X + 1, t.Y}, Vertex{t.X, t.Y + 1}, Vertex{t.X + 1, t.Y + 1}
}

// TilesAround returns the up to four tiles sharing vertex v that lie inside b.
func (b Bounds) TilesAround(v Vertex) []Tile {
	candidates := [4]Tile{{v.X - 1, v.Y - 1}, {v.X, v.Y - 1}, {v.X - 1, v.Y}, {v.X, v.Y}}
	out := make([]Tile, 0, 4)
	for _, t := range candidates {
		if b.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
