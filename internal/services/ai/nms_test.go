package ai

import (
	"reflect"
	"testing"

	"camtrap/internal/models"
)

func det(x, y, w, h float64, class int, conf float64) models.Detection {
	return models.Detection{X: x, Y: y, Width: w, Height: h, ClassIndex: class, Confidence: conf}
}

func TestFilterByConfidence(t *testing.T) {
	input := []models.Detection{
		det(0, 0, 0.1, 0.1, 0, 0.1),
		det(0, 0, 0.1, 0.1, 0, 0.5),
		det(0, 0, 0.1, 0.1, 1, 0.2),
		det(0, 0, 0.1, 0.1, 2, 0.9),
	}

	got := FilterByConfidence(input, 0.2)
	if len(got) != 3 {
		t.Fatalf("Expected 3 detections, got %d", len(got))
	}
	if got[0].Confidence != 0.5 || got[1].Confidence != 0.2 || got[2].Confidence != 0.9 {
		t.Errorf("Order not preserved: %+v", got)
	}

	thresholds := []float64{0, 0.1, 0.2, 0.5, 0.9, 1}
	for i := 1; i < len(thresholds); i++ {
		low := FilterByConfidence(input, thresholds[i-1])
		high := FilterByConfidence(input, thresholds[i])
		if len(high) > len(low) {
			t.Errorf("Filter at %v kept more than at %v", thresholds[i], thresholds[i-1])
		}
	}
}

func TestNonMaxSuppression_SuppressesSameClass(t *testing.T) {
	input := []models.Detection{
		det(0.10, 0.10, 0.30, 0.30, 0, 0.80),
		det(0.11, 0.11, 0.30, 0.30, 0, 0.95),
		det(0.60, 0.60, 0.20, 0.20, 0, 0.50),
	}

	got := NonMaxSuppression(input, 0.45)
	if len(got) != 2 {
		t.Fatalf("Expected 2 detections, got %d: %+v", len(got), got)
	}
	if got[0].Confidence != 0.95 {
		t.Errorf("Highest confidence box should come first, got %v", got[0].Confidence)
	}
	if got[1].Confidence != 0.50 {
		t.Errorf("Disjoint box should survive, got %v", got[1].Confidence)
	}
}

func TestNonMaxSuppression_KeepsCrossClassOverlap(t *testing.T) {
	person := det(0.2, 0.2, 0.4, 0.4, 1, 0.7)
	vehicle := det(0.2, 0.2, 0.4, 0.4, 2, 0.9)
	animal := det(0.21, 0.2, 0.4, 0.4, 0, 0.6)

	got := NonMaxSuppression([]models.Detection{vehicle, person, animal}, 0.45)
	want := []models.Detection{animal, person, vehicle}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected one box per class in class order, got %+v", got)
	}
}

func TestNonMaxSuppression_StableTies(t *testing.T) {
	first := det(0.0, 0.0, 0.2, 0.2, 0, 0.5)
	second := det(0.5, 0.5, 0.2, 0.2, 0, 0.5)

	got := NonMaxSuppression([]models.Detection{first, second}, 0.45)
	if !reflect.DeepEqual(got, []models.Detection{first, second}) {
		t.Errorf("Ties should keep input order, got %+v", got)
	}
}

func TestNonMaxSuppression_Properties(t *testing.T) {
	input := []models.Detection{
		det(0.10, 0.10, 0.30, 0.30, 0, 0.40),
		det(0.12, 0.10, 0.30, 0.30, 0, 0.85),
		det(0.14, 0.12, 0.30, 0.30, 0, 0.60),
		det(0.50, 0.50, 0.30, 0.30, 1, 0.30),
		det(0.52, 0.50, 0.30, 0.30, 1, 0.35),
		det(0.80, 0.10, 0.10, 0.10, 2, 0.99),
	}

	once := NonMaxSuppression(input, 0.45)
	twice := NonMaxSuppression(once, 0.45)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("NMS not idempotent:\n once: %+v\ntwice: %+v", once, twice)
	}

	best := map[int]float64{}
	for _, d := range input {
		if d.Confidence > best[d.ClassIndex] {
			best[d.ClassIndex] = d.Confidence
		}
	}
	for class, conf := range best {
		found := false
		for _, d := range once {
			if d.ClassIndex == class && d.Confidence == conf {
				found = true
			}
		}
		if !found {
			t.Errorf("Top detection of class %d (%v) was discarded", class, conf)
		}
	}
}

func TestNonMaxSuppression_Empty(t *testing.T) {
	got := NonMaxSuppression(nil, 0.45)
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", got)
	}
}

func TestSuppressionConfig_Apply(t *testing.T) {
	input := []models.Detection{
		det(0.1, 0.1, 0.3, 0.3, 0, 0.9),
		det(0.1, 0.1, 0.3, 0.3, 0, 0.8),
		det(0.6, 0.6, 0.2, 0.2, 0, 0.1),
	}

	got := SuppressionConfig{ConfidenceThreshold: 0.2, IOUThreshold: 0.45}.Apply(input)
	if len(got) != 1 || got[0].Confidence != 0.9 {
		t.Errorf("Expected single 0.9 detection, got %+v", got)
	}

	legacy := SuppressionConfig{ConfidenceThreshold: 0.2, IOUThreshold: 0.45, LegacyOverlap: true}
	if got := legacy.Apply(input); len(got) != 1 {
		t.Errorf("Legacy overlap should also suppress identical boxes, got %+v", got)
	}
}
