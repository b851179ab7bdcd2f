package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/tlpr/internal/mempool"
	"github.com/MeKo-Tech/tlpr/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

// Detector runs the plate/province YOLO model.
type Detector struct {
	config  Config
	session *onnx.Session
	mu      sync.RWMutex
}

// NewDetector loads the model and opens an inference session.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"input_size", config.InputSize,
		"score_floor", config.ScoreFloor,
		"iou_threshold", config.IoUThreshold,
		"gpu_enabled", config.GPU.UseGPU)

	if err := onnx.InitRuntime(config.LibraryPath, config.GPU.UseGPU); err != nil {
		return nil, err
	}

	session, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:  config.ModelPath,
		NumThreads: config.NumThreads,
		GPU:        config.GPU,
	})
	if err != nil {
		return nil, err
	}
	if n := len(session.Inputs()); n != 1 {
		_ = session.Close()
		return nil, fmt.Errorf("detector model must have 1 input, has %d", n)
	}

	slog.Debug("Detector initialized successfully")
	return &Detector{config: config, session: session}, nil
}

// Detect returns every region scoring at least the configured floor, after
// NMS, ordered by descending confidence.
func (d *Detector) Detect(img image.Image) ([]Region, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.New("input image is empty")
	}

	start := time.Now()
	lb := newLetterbox(b.Dx(), b.Dy(), d.config.InputSize)
	input := toTensorData(lb.apply(img))
	defer mempool.PutFloat32(input)
	tensor, err := onnx.NewImageTensor(input, 3, lb.size, lb.size)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	data, shape, err := d.infer(tensor)
	if err != nil {
		return nil, err
	}
	defer mempool.PutFloat32(data)

	candidates, err := decodeOutput(data, shape, NumClasses, d.config.ScoreFloor, lb)
	if err != nil {
		return nil, err
	}
	regions := NonMaxSuppression(dropEmpty(candidates), d.config.IoUThreshold)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		lo, hi, mean := onnx.TensorStats(input)
		slog.Debug("Detection complete",
			"input_min", lo, "input_max", hi, "input_mean", mean,
			"candidates", len(candidates),
			"regions", len(regions),
			"duration_ms", time.Since(start).Milliseconds())
	}
	return regions, nil
}

func (d *Detector) infer(tensor onnx.Tensor) ([]float32, []int64, error) {
	if err := onnx.VerifyImageTensor(tensor); err != nil {
		return nil, nil, fmt.Errorf("invalid input tensor: %w", err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session == nil {
		return nil, nil, errors.New("detector session is closed")
	}

	input, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer onnx.DestroyValues(input)

	outputs, err := d.session.Run(input)
	if err != nil {
		return nil, nil, err
	}
	defer onnx.DestroyValues(outputs...)

	data, shape, err := onnx.FloatData(outputs[0])
	if err != nil {
		return nil, nil, err
	}
	// GetData aliases memory owned by the output value.
	out := mempool.GetFloat32(len(data))
	copy(out, data)
	return out, shape, nil
}

// Close releases the session. The ONNX environment stays up.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	return err
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.config }

// dropEmpty removes boxes that collapsed to zero area after clamping.
func dropEmpty(regions []Region) []Region {
	out := regions[:0]
	for _, r := range regions {
		if !r.Box.Empty() {
			out = append(out, r)
		}
	}
	return out
}
