package terrain

import "math"

// SlopeVariant is the discrete shape of a tile derived from its four corner
// elevations.
type SlopeVariant uint8

const (
	Flat SlopeVariant = iota
	// Single-edge ramps, named by the raised edge.
	SlopeN
	SlopeE
	SlopeS
	SlopeW
	// Outer corners: one raised corner.
	CornerNE
	CornerNW
	CornerSE
	CornerSW
	// Inner corners: three raised corners, named by the corner opposite the low one.
	InnerNE
	InnerNW
	InnerSE
	InnerSW
	// Diagonal twists: two opposite raised corners.
	TwistNWSE
	TwistNESW
	variantCount
)

const (
	maskNW = 1 << iota
	maskNE
	maskSW
	maskSE
)

var variantByMask = [16]SlopeVariant{
	0:                                 Flat,
	maskNW:                            CornerNW,
	maskNE:                            CornerNE,
	maskSW:                            CornerSW,
	maskSE:                            CornerSE,
	maskNW | maskNE:                   SlopeN,
	maskNE | maskSE:                   SlopeE,
	maskSW | maskSE:                   SlopeS,
	maskNW | maskSW:                   SlopeW,
	maskNW | maskSE:                   TwistNWSE,
	maskNE | maskSW:                   TwistNESW,
	maskNW | maskNE | maskSW:          InnerNW,
	maskNW | maskNE | maskSE:          InnerNE,
	maskNW | maskSW | maskSE:          InnerSW,
	maskNE | maskSW | maskSE:          InnerSE,
	maskNW | maskNE | maskSW | maskSE: Flat,
}

var variantNames = [variantCount]string{
	Flat:      "flat",
	SlopeN:    "n",
	SlopeE:    "e",
	SlopeS:    "s",
	SlopeW:    "w",
	CornerNE:  "ne",
	CornerNW:  "nw",
	CornerSE:  "se",
	CornerSW:  "sw",
	InnerNE:   "inner_ne",
	InnerNW:   "inner_nw",
	InnerSE:   "inner_se",
	InnerSW:   "inner_sw",
	TwistNWSE: "twist_nw_se",
	TwistNESW: "twist_ne_sw",
}

// Classify maps four corner elevations onto a shape. Only the corners above
// the minimum count as raised, so the result depends on the relative pattern
// alone.
func Classify(nw, ne, sw, se int) SlopeVariant {
	base := min(nw, ne, sw, se)
	mask := 0
	if nw > base {
		mask |= maskNW
	}
	if ne > base {
		mask |= maskNE
	}
	if sw > base {
		mask |= maskSW
	}
	if se > base {
		mask |= maskSE
	}
	return variantByMask[mask]
}

// IsCorner reports whether the shape is anything other than flat or a
// single-edge ramp. Footpaths cannot be laid on corner shapes.
func (v SlopeVariant) IsCorner() bool {
	switch v {
	case Flat, SlopeN, SlopeE, SlopeS, SlopeW:
		return false
	default:
		return true
	}
}

// Height returns the surface height above the tile base, in elevation steps,
// at fractional in-tile coordinates (fx east, fy south, both in [0,1]).
// Corner and twist shapes are two triangles split on a diagonal.
func (v SlopeVariant) Height(fx, fy float64) float64 {
	fx = clampUnit(fx)
	fy = clampUnit(fy)
	switch v {
	case SlopeN:
		return 1 - fy
	case SlopeS:
		return fy
	case SlopeE:
		return fx
	case SlopeW:
		return 1 - fx
	case CornerNW:
		return math.Max(0, 1-fx-fy)
	case CornerNE:
		return math.Max(0, fx-fy)
	case CornerSW:
		return math.Max(0, fy-fx)
	case CornerSE:
		return math.Max(0, fx+fy-1)
	case InnerNW:
		return math.Min(1, 2-fx-fy)
	case InnerNE:
		return math.Min(1, 1+fx-fy)
	case InnerSW:
		return math.Min(1, 1-fx+fy)
	case InnerSE:
		return math.Min(1, fx+fy)
	case TwistNWSE:
		return 1 - math.Abs(fx-fy)
	case TwistNESW:
		return 1 - math.Abs(fx+fy-1)
	default:
		return 0
	}
}

func (v SlopeVariant) String() string {
	if v >= variantCount {
		return "unknown"
	}
	return variantNames[v]
}

func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
