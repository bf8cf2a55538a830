package ai

import (
	"context"
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrModelNotLoaded is returned by an Inferencer whose model was never loaded or is closed.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrModelCorrupted marks an unrecoverable session state. A batch stops on it.
	ErrModelCorrupted = errors.New("model session corrupted")
	// ErrMalformedTensor is returned when a tensor does not have the expected shape.
	ErrMalformedTensor = errors.New("malformed tensor")
)

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Elements returns the product of the shape dimensions.
func (t Tensor) Elements() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, dim := range t.Shape {
		n *= dim
	}
	return n
}

// Inferencer runs the network forward pass on a [1,3,S,S] input.
// Implementations are not required to be safe for concurrent use.
type Inferencer interface {
	Infer(ctx context.Context, input Tensor) (Tensor, error)
	Close() error
}

// ValidateInput checks that t is a [1,3,size,size] tensor with matching data length.
func ValidateInput(t Tensor, size int) error {
	if len(t.Shape) != 4 || t.Shape[0] != 1 || t.Shape[1] != 3 ||
		t.Shape[2] != int64(size) || t.Shape[3] != int64(size) {
		return errors.Wrapf(ErrMalformedTensor, "input shape %v, want [1 3 %d %d]", t.Shape, size, size)
	}
	if int64(len(t.Data)) != t.Elements() {
		return errors.Wrapf(ErrMalformedTensor, "input has %d values for shape %v", len(t.Data), t.Shape)
	}
	return nil
}

// CheckOutput reports ErrModelCorrupted when the backend produced no data or
// non-finite values, which a healthy session never does for finite input.
func CheckOutput(t Tensor) error {
	if len(t.Data) == 0 {
		return errors.Wrap(ErrModelCorrupted, "empty output")
	}
	for i, v := range t.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return errors.Wrapf(ErrModelCorrupted, "non-finite output at index %d", i)
		}
	}
	return nil
}
