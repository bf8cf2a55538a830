// Package opencv runs ONNX detection models through the OpenCV DNN module.
package opencv

import (
	"context"
	"os"
	"sync"

	"camtrap/internal/logger"
	"camtrap/internal/services/ai"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Options configures the OpenCV backend.
type Options struct {
	ModelPath  string
	InputSize  int
	PreferCUDA bool
}

// Inferencer wraps a gocv.Net loaded once. Calls are serialized.
type Inferencer struct {
	net       gocv.Net
	inputSize int
	loaded    bool
	mu        sync.Mutex
	logger    *logger.Logger
}

// New loads the model and selects a backend/target.
func New(opts Options, logger *logger.Logger) (*Inferencer, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file %s", opts.ModelPath)
	}

	net := gocv.ReadNetFromONNX(opts.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load network from %s", opts.ModelPath)
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if opts.PreferCUDA {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	errBackend := net.SetPreferableBackend(backend)
	errTarget := net.SetPreferableTarget(target)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, errors.Errorf("failed to set preferable backend or target (cuda=%t)", opts.PreferCUDA)
	}

	logger.Info("OpenCV network loaded from %s (input %d, cuda=%t)", opts.ModelPath, opts.InputSize, opts.PreferCUDA)
	return &Inferencer{
		net:       net,
		inputSize: opts.InputSize,
		loaded:    true,
		logger:    logger,
	}, nil
}

// Infer runs one forward pass.
func (i *Inferencer) Infer(ctx context.Context, input ai.Tensor) (ai.Tensor, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.loaded {
		return ai.Tensor{}, ai.ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return ai.Tensor{}, err
	}
	if err := ai.ValidateInput(input, i.inputSize); err != nil {
		return ai.Tensor{}, err
	}

	blob := gocv.NewMatWithSizes([]int{1, 3, i.inputSize, i.inputSize}, gocv.MatTypeCV32F)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return ai.Tensor{}, errors.Wrap(err, "blob data")
	}
	copy(data, input.Data)

	i.net.SetInput(blob, "")
	output := i.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return ai.Tensor{}, errors.Wrap(ai.ErrModelCorrupted, "forward pass returned no output")
	}

	values, err := output.DataPtrFloat32()
	if err != nil {
		return ai.Tensor{}, errors.Wrap(err, "output data")
	}

	dims := output.Size()
	shape := make([]int64, len(dims))
	for k, d := range dims {
		shape[k] = int64(d)
	}

	result := ai.Tensor{
		Data:  append([]float32(nil), values...),
		Shape: shape,
	}
	if err := ai.CheckOutput(result); err != nil {
		return ai.Tensor{}, err
	}
	return result, nil
}

// Close releases the network.
func (i *Inferencer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.loaded {
		return nil
	}
	i.loaded = false
	return i.net.Close()
}
