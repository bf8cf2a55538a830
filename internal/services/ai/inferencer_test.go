package ai

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestValidateInput(t *testing.T) {
	good := Tensor{Data: make([]float32, 3*32*32), Shape: []int64{1, 3, 32, 32}}
	if err := ValidateInput(good, 32); err != nil {
		t.Errorf("Expected valid input, got %v", err)
	}

	bad := []Tensor{
		{Data: make([]float32, 3*32*32), Shape: []int64{1, 3, 32, 32}},
		{Data: make([]float32, 3*32*32), Shape: []int64{3, 32, 32}},
		{Data: make([]float32, 10), Shape: []int64{1, 3, 64, 64}},
	}
	sizes := []int{64, 64, 64}
	for i, tensor := range bad {
		if err := ValidateInput(tensor, sizes[i]); !errors.Is(err, ErrMalformedTensor) {
			t.Errorf("case %d: expected ErrMalformedTensor, got %v", i, err)
		}
	}
}

func TestCheckOutput(t *testing.T) {
	if err := CheckOutput(Tensor{Data: []float32{0, 1, 2}, Shape: []int64{1, 1, 3}}); err != nil {
		t.Errorf("Expected finite output to pass, got %v", err)
	}
	if err := CheckOutput(Tensor{}); !errors.Is(err, ErrModelCorrupted) {
		t.Errorf("Expected ErrModelCorrupted for empty output, got %v", err)
	}
	nan := float32(math.NaN())
	if err := CheckOutput(Tensor{Data: []float32{0, nan}, Shape: []int64{1, 1, 2}}); !errors.Is(err, ErrModelCorrupted) {
		t.Errorf("Expected ErrModelCorrupted for NaN output, got %v", err)
	}
}

func TestTensorElements(t *testing.T) {
	if got := (Tensor{Shape: []int64{1, 3, 4}}).Elements(); got != 12 {
		t.Errorf("Elements() = %d, want 12", got)
	}
	if got := (Tensor{}).Elements(); got != 0 {
		t.Errorf("Elements() of scalar-less tensor = %d, want 0", got)
	}
}
