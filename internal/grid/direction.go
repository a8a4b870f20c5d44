package grid

// Direction is one of the eight compass neighbours of a tile.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
	NorthEast
	SouthEast
	SouthWest
	NorthWest
	DirCount
)

var offsets = [DirCount]Tile{
	North:     {0, -1},
	East:      {1, 0},
	South:     {0, 1},
	West:      {-1, 0},
	NorthEast: {1, -1},
	SouthEast: {1, 1},
	SouthWest: {-1, 1},
	NorthWest: {-1, -1},
}

// Cardinals lists the orthogonal directions in expansion order.
var Cardinals = [...]Direction{North, East, South, West}

// All lists every direction, orthogonals first.
var All = [...]Direction{North, East, South, West, NorthEast, SouthEast, SouthWest, NorthWest}

// Offset returns the tile delta for d.
func (d Direction) Offset() (dx, dy int) {
	off := offsets[d]
	return off.X, off.Y
}

// Diagonal reports whether d is one of the four corner directions.
func (d Direction) Diagonal() bool {
	return d >= NorthEast && d < DirCount
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case East:
		return West
	case South:
		return North
	case West:
		return East
	case NorthEast:
		return SouthWest
	case SouthEast:
		return NorthWest
	case SouthWest:
		return NorthEast
	default:
		return SouthEast
	}
}

// Components splits a diagonal into its vertical and horizontal parts.
func (d Direction) Components() (vertical, horizontal Direction) {
	switch d {
	case NorthEast:
		return North, East
	case SouthEast:
		return South, East
	case SouthWest:
		return South, West
	case NorthWest:
		return North, West
	default:
		return d, d
	}
}

func (d Direction) String() string {
	switch d {
	case North:
		return "N"
	case East:
		return "E"
	case South:
		return "S"
	case West:
		return "W"
	case NorthEast:
		return "NE"
	case SouthEast:
		return "SE"
	case SouthWest:
		return "SW"
	case NorthWest:
		return "NW"
	default:
		return "?"
	}
}
