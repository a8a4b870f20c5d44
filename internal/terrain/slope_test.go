package terrain

import "testing"

func cornersForMask(mask, base int) (nw, ne, sw, se int) {
	raise := func(bit int) int {
		if mask&bit != 0 {
			return base + 1
		}
		return base
	}
	return raise(maskNW), raise(maskNE), raise(maskSW), raise(maskSE)
}

func TestClassifyDependsOnRelativePatternOnly(t *testing.T) {
	for mask := 0; mask < 16; mask++ {
		want := Classify(cornersForMask(mask, 0))
		for _, base := range []int{-1, 1, 5} {
			if got := Classify(cornersForMask(mask, base)); got != want {
				t.Fatalf("mask %04b base %d: expected %s, got %s", mask, base, want, got)
			}
		}
	}
}

func TestClassifyCoversEveryShape(t *testing.T) {
	seen := make(map[SlopeVariant]int)
	for mask := 0; mask < 16; mask++ {
		seen[Classify(cornersForMask(mask, 0))]++
	}
	if len(seen) != int(variantCount) {
		t.Fatalf("expected %d distinct shapes, got %d", variantCount, len(seen))
	}
	cases := []struct {
		nw, ne, sw, se int
		want           SlopeVariant
	}{
		{0, 0, 0, 0, Flat},
		{1, 1, 0, 0, SlopeN},
		{0, 0, 1, 1, SlopeS},
		{0, 1, 0, 1, SlopeE},
		{1, 0, 1, 0, SlopeW},
		{0, 0, 0, 1, CornerSE},
		{1, 1, 1, 0, InnerNW},
		{0, 1, 1, 1, InnerSE},
		{1, 0, 0, 1, TwistNWSE},
		{0, 1, 1, 0, TwistNESW},
		{-1, 0, 0, 0, InnerSE},
	}
	for _, tc := range cases {
		if got := Classify(tc.nw, tc.ne, tc.sw, tc.se); got != tc.want {
			t.Fatalf("corners %d,%d,%d,%d: expected %s, got %s", tc.nw, tc.ne, tc.sw, tc.se, tc.want, got)
		}
	}
}

func TestHeightMatchesCornersForEveryShape(t *testing.T) {
	points := []struct {
		fx, fy float64
		bit    int
	}{
		{0, 0, maskNW},
		{1, 0, maskNE},
		{0, 1, maskSW},
		{1, 1, maskSE},
	}
	for mask := 0; mask < 15; mask++ {
		variant := Classify(cornersForMask(mask, 0))
		for _, p := range points {
			want := 0.0
			if mask&p.bit != 0 {
				want = 1
			}
			if got := variant.Height(p.fx, p.fy); got != want {
				t.Fatalf("%s at (%.0f,%.0f): expected %.1f, got %.1f", variant, p.fx, p.fy, want, got)
			}
		}
	}
}

func TestIsCorner(t *testing.T) {
	for _, v := range []SlopeVariant{Flat, SlopeN, SlopeE, SlopeS, SlopeW} {
		if v.IsCorner() {
			t.Fatalf("expected %s not to be a corner", v)
		}
	}
	for _, v := range []SlopeVariant{CornerNE, InnerSW, TwistNESW} {
		if !v.IsCorner() {
			t.Fatalf("expected %s to be a corner", v)
		}
	}
}
