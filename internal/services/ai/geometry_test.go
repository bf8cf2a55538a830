package ai

import (
	"math"
	"testing"

	"camtrap/internal/models"
)

const epsilon = 1e-9

func box(x, y, w, h float64) models.Detection {
	return models.Detection{X: x, Y: y, Width: w, Height: h}
}

func TestIOU(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Detection
		want float64
	}{
		{"identical", box(0.1, 0.1, 0.3, 0.3), box(0.1, 0.1, 0.3, 0.3), 1},
		{"half height", box(0, 0, 1, 1), box(0, 0, 1, 0.5), 0.5},
		{"shifted", box(0, 0, 3, 3), box(2, 0, 3, 3), 0.2},
		{"disjoint", box(0, 0, 0.1, 0.1), box(0.5, 0.5, 0.1, 0.1), 0},
		{"touching edges", box(0, 0, 0.5, 0.5), box(0.5, 0, 0.5, 0.5), 0},
		{"zero area", box(0.2, 0.2, 0, 0), box(0.2, 0.2, 0, 0), 0},
		{"contained", box(0, 0, 1, 1), box(0.25, 0.25, 0.5, 0.5), 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IOU(tt.a, tt.b)
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("IOU() = %v, want %v", got, tt.want)
			}
			if sym := IOU(tt.b, tt.a); math.Abs(sym-got) > epsilon {
				t.Errorf("IOU not symmetric: %v vs %v", got, sym)
			}
		})
	}
}

func TestLegacyIOUDiffersForOffsetBoxes(t *testing.T) {
	a := box(0, 0, 3, 3)
	b := box(2, 0, 3, 3)

	// Far corner at a.X+min(3,3)=3, so intersection is [2,3]x[0,3] as in the true formula.
	if got := LegacyIOU(a, b); math.Abs(got-0.2) > epsilon {
		t.Errorf("LegacyIOU() = %v, want 0.2", got)
	}

	small := box(0.5, 0.5, 0.1, 0.1)
	big := box(0, 0, 1, 1)
	if IOU(big, small) == LegacyIOU(big, small) {
		t.Errorf("Expected legacy formula to differ for nested boxes at different origins")
	}
}

func TestArea(t *testing.T) {
	if got := Area(box(0, 0, 0.5, 0.25)); got != 0.125 {
		t.Errorf("Area() = %v, want 0.125", got)
	}
}
