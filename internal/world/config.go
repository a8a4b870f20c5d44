package world

import (
	"menagerie/server/internal/grid"
	"menagerie/server/internal/terrain"
)

const (
	DefaultWidth  = 64
	DefaultHeight = 64
	DefaultSeed   = 1
)

// Config sizes the map and tunes the spatial subsystems.
type Config struct {
	Width       int     `json:"width" jsonschema:"minimum=1,description=Map width in tiles"`
	Height      int     `json:"height" jsonschema:"minimum=1,description=Map height in tiles"`
	EntranceX   int     `json:"entranceX" jsonschema:"description=Column of the zoo entrance tile"`
	EntranceY   int     `json:"entranceY" jsonschema:"description=Row of the zoo entrance tile"`
	Seed        uint64  `json:"seed" jsonschema:"description=Seed for area colours"`
	MinLevel    int     `json:"minLevel" jsonschema:"description=Lowest elevation level (water below zero)"`
	MaxLevel    int     `json:"maxLevel" jsonschema:"description=Highest elevation level"`
	StepHeight  float64 `json:"stepHeight" jsonschema:"description=World height of one elevation level"`
	PathWorkers int     `json:"pathWorkers" jsonschema:"description=Pathfinder worker goroutines"`
	PathQueue   int     `json:"pathQueue" jsonschema:"description=Pending path request capacity"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.Width <= 0 {
		normalized.Width = DefaultWidth
	}
	if normalized.Height <= 0 {
		normalized.Height = DefaultHeight
	}
	if normalized.MinLevel == 0 && normalized.MaxLevel == 0 {
		normalized.MinLevel = terrain.LevelWater
		normalized.MaxLevel = terrain.LevelHill
	}
	if normalized.StepHeight <= 0 {
		normalized.StepHeight = terrain.DefaultStepHeight
	}
	entrance := grid.Bounds{Width: normalized.Width, Height: normalized.Height}
	if !entrance.Contains(grid.T(normalized.EntranceX, normalized.EntranceY)) {
		normalized.EntranceX = 0
		normalized.EntranceY = 0
	}
	return normalized
}

func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

// Bounds returns the map size.
func (cfg Config) Bounds() grid.Bounds {
	return grid.Bounds{Width: cfg.Width, Height: cfg.Height}
}

// Entrance returns the tile anchoring the main area.
func (cfg Config) Entrance() grid.Tile {
	return grid.T(cfg.EntranceX, cfg.EntranceY)
}

func DefaultConfig() Config {
	return Config{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		EntranceX:  1,
		EntranceY:  1,
		Seed:       DefaultSeed,
		MinLevel:   terrain.LevelWater,
		MaxLevel:   terrain.LevelHill,
		StepHeight: terrain.DefaultStepHeight,
	}
}
