// Package inference wraps ONNX Runtime behind a plain tensors-in,
// tensors-out session so the rest of the pipeline never touches
// runtime-specific types beyond the tensor values themselves.
package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/dudu/faceswap/internal/domain"
)

var (
	initialized bool
	initMu      sync.Mutex
)

// Init sets up the ONNX Runtime environment. Call once at startup, before
// any session is created. libraryPath may be empty to use the runtime's
// default shared-library location.
func Init(libraryPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil
	}

	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: initialize onnxruntime: %v", domain.ErrModelInference, err)
	}

	initialized = true
	return nil
}

// Shutdown tears down the ONNX Runtime environment.
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}

	initialized = false
	return nil
}

// Session wraps an ONNX Runtime inference session with fixed input and
// output names. Sessions hold read-only weights and are safe to share
// across requests; a single request must not interleave Run calls.
type Session struct {
	session     *ort.DynamicAdvancedSession
	modelPath   string
	inputNames  []string
	outputNames []string
}

// NewSession creates an inference session from an ONNX model file.
// When accelerated is true, hardware execution providers are attempted in
// order (CUDA, then CoreML) and the session silently falls back to CPU if
// none is available.
func NewSession(modelPath string, inputNames, outputNames []string, accelerated bool) (*Session, error) {
	if !initialized {
		return nil, fmt.Errorf("%w: onnxruntime not initialized, call Init first", domain.ErrModelInference)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: create session options: %v", domain.ErrModelInference, err)
	}
	defer options.Destroy()

	provider := "cpu"
	if accelerated {
		provider = appendAcceleratedProvider(options)
	}
	zap.L().Sugar().Debugw("inference session", "model", modelPath, "provider", provider)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", domain.ErrModelInference, modelPath, err)
	}

	return &Session{
		session:     session,
		modelPath:   modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// appendAcceleratedProvider tries hardware execution providers and reports
// which one was attached, or "cpu" if none could be.
func appendAcceleratedProvider(options *ort.SessionOptions) string {
	if cudaOpts, err := ort.NewCUDAProviderOptions(); err == nil {
		defer cudaOpts.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOpts); err == nil {
			return "cuda"
		}
	}
	if err := options.AppendExecutionProviderCoreML(0); err == nil {
		return "coreml"
	}
	return "cpu"
}

// Run executes inference with the given inputs, writing into outputs.
func (s *Session) Run(inputs []ort.Value, outputs []ort.Value) error {
	if err := s.session.Run(inputs, outputs); err != nil {
		return fmt.Errorf("%w: run %s: %v", domain.ErrModelInference, s.modelPath, err)
	}
	return nil
}

// Destroy releases session resources.
func (s *Session) Destroy() error {
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}

// CreateTensor creates a tensor with the given shape and data.
func CreateTensor[T ort.TensorData](shape []int64, data []T) (*ort.Tensor[T], error) {
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// CreateEmptyTensor creates a zero-filled tensor for model output.
func CreateEmptyTensor[T ort.TensorData](shape []int64) (*ort.Tensor[T], error) {
	size := int64(1)
	for _, dim := range shape {
		size *= dim
	}
	data := make([]T, size)
	return ort.NewTensor(ort.NewShape(shape...), data)
}
