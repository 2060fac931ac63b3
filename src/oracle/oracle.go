package oracle

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	ErrNoModel           = errors.New("oracle: model path is required")
	ErrFeatureCount      = errors.New("oracle: unexpected feature count")
	ErrOracleUnavailable = errors.New("oracle: session closed")
)

type Config struct {
	ModelPath   string `envconfig:"ORACLE_MODEL_PATH"`
	LibraryPath string `envconfig:"ORACLE_LIBRARY_PATH"`
	InputName   string `envconfig:"ORACLE_INPUT_NAME" default:"input"`
	OutputName  string `envconfig:"ORACLE_OUTPUT_NAME" default:"output"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process oracle config: %w", err)
	}
	return cfg, nil
}

// Func adapts a plain function to a scoring oracle.
type Func func(features []float64) (float64, error)

func (f Func) Score(features []float64) (float64, error) {
	return f(features)
}

func defaultLibraryPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "/usr/lib/libonnxruntime.so"
	}
}

var initOnce sync.Once
var initErr error

func initialize(libPath string) error {
	initOnce.Do(func() {
		if libPath == "" {
			libPath = defaultLibraryPath()
		}
		ort.SetSharedLibraryPath(libPath)
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// ONNXOracle scores feature vectors with an ONNX model of input shape
// (1, n) and output shape (1, 1). The session and its tensors are reused, so
// Score is serialized.
type ONNXOracle struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	n       int
}

func NewONNXOracle(cfg Config, featureCount int) (*ONNXOracle, error) {
	if cfg.ModelPath == "" {
		return nil, ErrNoModel
	}
	if err := initialize(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(featureCount)), make([]float32, featureCount))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session for %s: %w", cfg.ModelPath, err)
	}

	logger.WithFields(logger.Fields{
		"model":    cfg.ModelPath,
		"features": featureCount,
	}).Info("onnx oracle loaded")
	return &ONNXOracle{session: session, input: input, output: output, n: featureCount}, nil
}

func (o *ONNXOracle) Score(features []float64) (float64, error) {
	if len(features) != o.n {
		return 0, fmt.Errorf("%w: got %d want %d", ErrFeatureCount, len(features), o.n)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return 0, ErrOracleUnavailable
	}

	data := o.input.GetData()
	for i, f := range features {
		data[i] = float32(f)
	}
	if err := o.session.Run(); err != nil {
		return 0, fmt.Errorf("run onnx session: %w", err)
	}
	return float64(o.output.GetData()[0]), nil
}

func (o *ONNXOracle) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != nil {
		o.session.Destroy()
		o.session = nil
	}
	if o.input != nil {
		o.input.Destroy()
		o.input = nil
	}
	if o.output != nil {
		o.output.Destroy()
		o.output = nil
	}
}
