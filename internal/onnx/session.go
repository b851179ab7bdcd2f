package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/yalue/onnxruntime_go"
)

// SessionConfig describes one model session.
type SessionConfig struct {
	ModelPath   string
	InputNames  []string // empty selects every model input
	OutputNames []string // empty selects every model output
	NumThreads  int
	GPU         GPUConfig
}

// Session is a dynamic ONNX Runtime session plus the model's declared I/O.
type Session struct {
	path    string
	session *onnxruntime_go.DynamicAdvancedSession
	inputs  []onnxruntime_go.InputOutputInfo
	outputs []onnxruntime_go.InputOutputInfo
}

// NewSession validates the model file and opens a session. InitRuntime must
// have been called first.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path is empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}
	if err := ValidateGPUConfig(cfg.GPU); err != nil {
		return nil, err
	}

	inInfo, outInfo, err := onnxruntime_go.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	inputs, err := selectInfo(inInfo, cfg.InputNames)
	if err != nil {
		return nil, fmt.Errorf("model inputs: %w", err)
	}
	outputs, err := selectInfo(outInfo, cfg.OutputNames)
	if err != nil {
		return nil, fmt.Errorf("model outputs: %w", err)
	}

	options, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := options.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	if err := ConfigureSessionForGPU(options, cfg.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath,
		infoNames(inputs), infoNames(outputs), options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	slog.Debug("ONNX session created",
		"model_path", cfg.ModelPath,
		"inputs", infoNames(inputs),
		"outputs", infoNames(outputs),
		"gpu_enabled", cfg.GPU.UseGPU)

	return &Session{path: cfg.ModelPath, session: session, inputs: inputs, outputs: outputs}, nil
}

// Run executes the model. Output values are allocated by ONNX Runtime and
// must be released with DestroyValues.
func (s *Session) Run(inputs ...onnxruntime_go.Value) ([]onnxruntime_go.Value, error) {
	if s == nil || s.session == nil {
		return nil, errors.New("session is closed")
	}
	if len(inputs) != len(s.inputs) {
		return nil, fmt.Errorf("expected %d inputs, got %d", len(s.inputs), len(inputs))
	}
	outputs := make([]onnxruntime_go.Value, len(s.outputs))
	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return outputs, nil
}

// Inputs returns the declared model inputs.
func (s *Session) Inputs() []onnxruntime_go.InputOutputInfo { return s.inputs }

// Outputs returns the declared model outputs.
func (s *Session) Outputs() []onnxruntime_go.InputOutputInfo { return s.outputs }

// ModelPath returns the file the session was loaded from.
func (s *Session) ModelPath() string { return s.path }

// Close releases the session.
func (s *Session) Close() error {
	if s == nil || s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

// FloatData extracts the data and shape of a float32 output value.
func FloatData(v onnxruntime_go.Value) ([]float32, []int64, error) {
	t, ok := v.(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", v)
	}
	return t.GetData(), t.GetShape(), nil
}

// DestroyValues releases every non-nil value.
func DestroyValues(values ...onnxruntime_go.Value) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if err := v.Destroy(); err != nil {
			slog.Warn("failed to destroy ONNX value", "error", err)
		}
	}
}

func selectInfo(all []onnxruntime_go.InputOutputInfo, names []string) ([]onnxruntime_go.InputOutputInfo, error) {
	if len(names) == 0 {
		if len(all) == 0 {
			return nil, errors.New("model declares none")
		}
		return all, nil
	}
	out := make([]onnxruntime_go.InputOutputInfo, 0, len(names))
	for _, name := range names {
		found := false
		for _, info := range all {
			if info.Name == name {
				out = append(out, info)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("model has no %q (available: %v)", name, infoNames(all))
		}
	}
	return out, nil
}

func infoNames(infos []onnxruntime_go.InputOutputInfo) []string {
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}
