package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/tlpr/internal/models"
	"github.com/MeKo-Tech/tlpr/internal/onnx"
)

// Config holds detector settings.
type Config struct {
	ModelPath    string         // YOLO ONNX export
	LibraryPath  string         // ONNX Runtime shared library, empty to search
	InputSize    int            // square network input, 640 for YOLOv8
	ScoreFloor   float64        // candidates below this score never reach NMS
	IoUThreshold float64        // class-aware NMS overlap threshold
	NumThreads   int            // 0 lets ONNX Runtime decide
	GPU          onnx.GPUConfig // CUDA settings
}

// DefaultConfig returns the YOLO predictor defaults.
func DefaultConfig() Config {
	return Config{
		InputSize:    640,
		ScoreFloor:   0.25,
		IoUThreshold: 0.7,
		GPU:          onnx.DefaultGPUConfig(),
	}
}

// UpdateModelPath points an empty model path at the standard layout under dir.
func (c *Config) UpdateModelPath(dir string) {
	if c.ModelPath == "" {
		c.ModelPath = models.DetectorPath(dir)
	}
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("detector model path is empty")
	}
	if c.InputSize <= 0 || c.InputSize%32 != 0 {
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", c.InputSize)
	}
	if c.ScoreFloor < 0 || c.ScoreFloor > 1 {
		return fmt.Errorf("score floor must be in [0,1], got %f", c.ScoreFloor)
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("IoU threshold must be in (0,1], got %f", c.IoUThreshold)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num threads must be >= 0, got %d", c.NumThreads)
	}
	return onnx.ValidateGPUConfig(c.GPU)
}
