package sim

import (
	"fmt"
	"time"

	"menagerie/server/internal/grid"
	"menagerie/server/internal/nav"
	"menagerie/server/internal/world"
)

// CommandType enumerates the supported edit and navigation commands.
type CommandType string

const (
	CommandElevate        CommandType = "elevate"
	CommandUndo           CommandType = "undo"
	CommandWallAdd        CommandType = "wall_add"
	CommandWallRemove     CommandType = "wall_remove"
	CommandDoor           CommandType = "door"
	CommandObjectPlace    CommandType = "object_place"
	CommandObjectRemove   CommandType = "object_remove"
	CommandFootpathPlace  CommandType = "footpath_place"
	CommandFootpathRemove CommandType = "footpath_remove"
	CommandPathRequest    CommandType = "path_request"
	CommandPathCancel     CommandType = "path_cancel"
)

// ElevateCommand runs the radius brush around a continuous point.
type ElevateCommand struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Level  int     `json:"level"`
}

// EdgeCommand addresses a wall edge. Orientation is "v" or "h".
type EdgeCommand struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Orientation string `json:"orientation"`
	Door        bool   `json:"door,omitempty"`
}

// Edge converts the command into a grid edge.
func (c EdgeCommand) Edge() (grid.Edge, error) {
	e := grid.Edge{X: c.X, Y: c.Y}
	switch c.Orientation {
	case "v", "vertical":
		e.Orientation = grid.Vertical
	case "h", "horizontal":
		e.Orientation = grid.Horizontal
	default:
		return grid.Edge{}, fmt.Errorf("unknown edge orientation %q", c.Orientation)
	}
	return e, nil
}

// TileCommand addresses a tile, optionally carrying an object to place.
type TileCommand struct {
	X      int           `json:"x"`
	Y      int           `json:"y"`
	Object *world.Object `json:"object,omitempty"`
}

// Tile returns the addressed tile.
func (c TileCommand) Tile() grid.Tile { return grid.T(c.X, c.Y) }

// PathCommand asks for a route on behalf of the issuing agent.
type PathCommand struct {
	FromX  int    `json:"fromX"`
	FromY  int    `json:"fromY"`
	ToX    int    `json:"toX"`
	ToY    int    `json:"toY"`
	Access string `json:"access,omitempty"`
}

// Accessibility parses the requested profile, defaulting to avoid_water.
func (c PathCommand) Accessibility() (nav.AccessibilityType, error) {
	if c.Access == "" {
		return nav.AvoidWater, nil
	}
	access, ok := nav.ParseAccessibility(c.Access)
	if !ok {
		return access, fmt.Errorf("unknown accessibility %q", c.Access)
	}
	return access, nil
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	ID         string          `json:"id,omitempty"`
	OriginTick uint64          `json:"originTick"`
	ActorID    string          `json:"actorId"`
	Type       CommandType     `json:"type"`
	IssuedAt   time.Time       `json:"issuedAt"`
	Elevate    *ElevateCommand `json:"elevate,omitempty"`
	Edge       *EdgeCommand    `json:"edge,omitempty"`
	Tile       *TileCommand    `json:"tile,omitempty"`
	Path       *PathCommand    `json:"path,omitempty"`
}
