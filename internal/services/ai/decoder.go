package ai

import (
	"math"
	"strings"

	"camtrap/internal/models"

	"github.com/pkg/errors"
)

// Layout is the arrangement of the model output tensor.
type Layout int

const (
	// LayoutRows is [1, N, 5+C]: one candidate per row.
	LayoutRows Layout = iota
	// LayoutTransposed is [1, 5+C, N]: one field per row.
	LayoutTransposed
)

func (l Layout) String() string {
	if l == LayoutTransposed {
		return "transposed"
	}
	return "rows"
}

// Scoring selects how a candidate's confidence is computed.
type Scoring int

const (
	// ScoreObjectness uses the objectness field as confidence.
	ScoreObjectness Scoring = iota
	// ScoreObjectnessTimesClass multiplies objectness by the best class score.
	ScoreObjectnessTimesClass
)

func (s Scoring) String() string {
	if s == ScoreObjectnessTimesClass {
		return "objectness_class"
	}
	return "objectness"
}

// ParseLayout maps a configuration value to a Layout.
func ParseLayout(value string) (Layout, error) {
	switch strings.ToLower(value) {
	case "", "rows":
		return LayoutRows, nil
	case "transposed":
		return LayoutTransposed, nil
	}
	return LayoutRows, errors.Errorf("unknown output layout %q", value)
}

// ParseScoring maps a configuration value to a Scoring.
func ParseScoring(value string) (Scoring, error) {
	switch strings.ToLower(value) {
	case "", "objectness":
		return ScoreObjectness, nil
	case "objectness_class":
		return ScoreObjectnessTimesClass, nil
	}
	return ScoreObjectness, errors.Errorf("unknown scoring mode %q", value)
}

const boxFields = 5 // cx, cy, w, h, objectness

// Decoder turns raw YOLO style output into candidate detections.
type Decoder struct {
	Layout    Layout
	Scoring   Scoring
	InputSize int
	Classes   int // expected class count, 0 accepts any
}

// Decode returns one detection per candidate row, unfiltered. Coordinates are
// corner-form fractions of the model input canvas, each field clamped to [0,1].
func (d Decoder) Decode(output Tensor) ([]models.Detection, error) {
	rows, fields, err := d.dims(output)
	if err != nil {
		return nil, err
	}

	at := func(row, field int) float64 {
		if d.Layout == LayoutTransposed {
			return float64(output.Data[field*rows+row])
		}
		return float64(output.Data[row*fields+field])
	}

	size := float64(d.InputSize)
	detections := make([]models.Detection, rows)
	for row := 0; row < rows; row++ {
		cx, cy := at(row, 0), at(row, 1)
		w, h := at(row, 2), at(row, 3)
		objectness := at(row, 4)

		classIndex, classScore := 0, at(row, boxFields)
		for c := 1; c < fields-boxFields; c++ {
			if score := at(row, boxFields+c); score > classScore {
				classIndex, classScore = c, score
			}
		}

		confidence := objectness
		if d.Scoring == ScoreObjectnessTimesClass {
			confidence = objectness * classScore
		}

		detections[row] = models.Detection{
			X:          clamp01((cx - w/2) / size),
			Y:          clamp01((cy - h/2) / size),
			Width:      clamp01(w / size),
			Height:     clamp01(h / size),
			ClassIndex: classIndex,
			Confidence: clamp01(confidence),
		}
	}

	return detections, nil
}

func (d Decoder) dims(output Tensor) (rows, fields int, err error) {
	if d.InputSize <= 0 {
		return 0, 0, errors.Errorf("decoder input size must be positive, got %d", d.InputSize)
	}
	if len(output.Shape) != 3 || output.Shape[0] != 1 {
		return 0, 0, errors.Wrapf(ErrMalformedTensor, "output shape %v, want [1 N F]", output.Shape)
	}
	if int64(len(output.Data)) != output.Elements() {
		return 0, 0, errors.Wrapf(ErrMalformedTensor, "output has %d values for shape %v", len(output.Data), output.Shape)
	}

	if d.Layout == LayoutTransposed {
		fields, rows = int(output.Shape[1]), int(output.Shape[2])
	} else {
		rows, fields = int(output.Shape[1]), int(output.Shape[2])
	}

	if fields < boxFields+1 {
		return 0, 0, errors.Wrapf(ErrMalformedTensor, "%d fields per candidate in %s layout, need at least %d", fields, d.Layout, boxFields+1)
	}
	if d.Classes > 0 && fields-boxFields != d.Classes {
		return 0, 0, errors.Wrapf(ErrMalformedTensor, "%d class scores, model configured for %d", fields-boxFields, d.Classes)
	}
	return rows, fields, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
