package nav

import "fmt"

// AccessibilityType selects the traversal rules of a request.
type AccessibilityType uint8

const (
	// AvoidWater is the default walker: land only, footpaths are cheaper.
	AvoidWater AccessibilityType = iota
	// IgnorePaths treats footpaths like any other land tile.
	IgnorePaths
	// CanSwim may cross water.
	CanSwim
	// PathsOnly keeps guests on the footpath network.
	PathsOnly
)

func (a AccessibilityType) String() string {
	switch a {
	case AvoidWater:
		return "avoid_water"
	case IgnorePaths:
		return "ignore_paths"
	case CanSwim:
		return "can_swim"
	case PathsOnly:
		return "paths_only"
	default:
		return fmt.Sprintf("profile_%d", uint8(a))
	}
}

// ParseAccessibility resolves a profile name.
func ParseAccessibility(name string) (AccessibilityType, bool) {
	for _, a := range []AccessibilityType{AvoidWater, IgnorePaths, CanSwim, PathsOnly} {
		if a.String() == name {
			return a, true
		}
	}
	return AvoidWater, false
}

// CostFunc prices entering a tile. A cost of zero or less is impassable.
type CostFunc func(flags TileFlags) float64

// Profile is the request-scoped interpretation of the grid.
type Profile struct {
	Cost     CostFunc
	Diagonal bool
}

func (p Profile) cost(flags TileFlags) float64 {
	if p.Cost == nil {
		return 0
	}
	return p.Cost(flags)
}

const footpathCost = 0.5

// DefaultProfiles returns the built-in profile table. Costs stay at or
// below one per step so the squared-distance heuristic keeps the search
// greedy towards the goal.
func DefaultProfiles() map[AccessibilityType]Profile {
	return map[AccessibilityType]Profile{
		AvoidWater: {
			Cost: func(flags TileFlags) float64 {
				switch {
				case !flags.Has(FlagWalkable), flags.Has(FlagWater):
					return 0
				case flags.Has(FlagFootpath):
					return footpathCost
				default:
					return 1
				}
			},
			Diagonal: true,
		},
		IgnorePaths: {
			Cost: func(flags TileFlags) float64 {
				if !flags.Has(FlagWalkable) || flags.Has(FlagWater) {
					return 0
				}
				return 1
			},
			Diagonal: true,
		},
		CanSwim: {
			Cost: func(flags TileFlags) float64 {
				if !flags.Has(FlagWalkable) {
					return 0
				}
				return 1
			},
			Diagonal: true,
		},
		PathsOnly: {
			Cost: func(flags TileFlags) float64 {
				if !flags.Has(FlagWalkable) || !flags.Has(FlagFootpath) {
					return 0
				}
				return 1
			},
		},
	}
}
