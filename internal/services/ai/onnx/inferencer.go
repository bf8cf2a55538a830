// Package onnx runs detection models with ONNX Runtime.
package onnx

import (
	"context"
	"sync"

	"camtrap/internal/logger"
	"camtrap/internal/services/ai"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Options configures the ONNX Runtime backend.
type Options struct {
	ModelPath   string
	LibraryPath string // path to the onnxruntime shared library, default search when empty
	InputSize   int
	PreferCUDA  bool
}

// Inferencer owns one AdvancedSession with preallocated input and output tensors.
type Inferencer struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	inputSize int
	mu        sync.Mutex
	logger    *logger.Logger
}

var envMu sync.Mutex

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	return ort.InitializeEnvironment()
}

// New creates a session for the model. The output shape is read from the model and
// must be static.
func New(opts Options, logger *logger.Logger) (*Inferencer, error) {
	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, errors.Wrap(err, "initialize onnxruntime")
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read model info from %s", opts.ModelPath)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, errors.Errorf("model has %d inputs and %d outputs, want 1 and at least 1", len(inputs), len(outputs))
	}

	outputShape := outputs[0].Dimensions
	for _, dim := range outputShape {
		if dim <= 0 {
			return nil, errors.Errorf("dynamic output shape %v is not supported", outputShape)
		}
	}

	size := int64(opts.InputSize)
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, errors.Wrap(err, "allocate input tensor")
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "allocate output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "session options")
	}
	defer options.Destroy()

	if opts.PreferCUDA {
		if err := appendCUDA(options); err != nil {
			logger.Warning("CUDA execution provider unavailable, using CPU: %v", err)
		}
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "create session")
	}

	logger.Info("ONNX Runtime session created for %s (input %s, output %s %v)",
		opts.ModelPath, inputs[0].Name, outputs[0].Name, outputShape)

	return &Inferencer{
		session:   session,
		input:     inputTensor,
		output:    outputTensor,
		inputSize: opts.InputSize,
		logger:    logger,
	}, nil
}

func appendCUDA(options *ort.SessionOptions) error {
	cudaOptions, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cudaOptions.Destroy()
	return options.AppendExecutionProviderCUDA(cudaOptions)
}

// Infer copies input into the session tensor, runs it and returns a copy of the output.
func (i *Inferencer) Infer(ctx context.Context, input ai.Tensor) (ai.Tensor, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.session == nil {
		return ai.Tensor{}, ai.ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return ai.Tensor{}, err
	}
	if err := ai.ValidateInput(input, i.inputSize); err != nil {
		return ai.Tensor{}, err
	}

	copy(i.input.GetData(), input.Data)
	if err := i.session.Run(); err != nil {
		return ai.Tensor{}, errors.Wrap(err, "run session")
	}

	result := ai.Tensor{
		Data:  append([]float32(nil), i.output.GetData()...),
		Shape: append([]int64(nil), i.output.GetShape()...),
	}
	if err := ai.CheckOutput(result); err != nil {
		return ai.Tensor{}, err
	}
	return result, nil
}

// Close destroys the session and its tensors.
func (i *Inferencer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.session == nil {
		return nil
	}
	err := i.session.Destroy()
	i.input.Destroy()
	i.output.Destroy()
	i.session = nil
	return err
}
