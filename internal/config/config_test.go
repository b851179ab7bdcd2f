package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/tlpr/internal/province"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "models", cfg.ModelsDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 640, cfg.Detector.InputSize)
	assert.InDelta(t, 0.25, cfg.Detector.ScoreFloor, 1e-9)
	assert.InDelta(t, 0.7, cfg.Detector.IoUThreshold, 1e-9)
	assert.Equal(t, 384, cfg.Recognizer.ImageSize)
	assert.Equal(t, 20, cfg.Recognizer.MaxLength)
	assert.Equal(t, int64(2), cfg.Recognizer.Tokens.EOS)
	assert.Equal(t, 65, cfg.Preprocess.Threshold)
	assert.Equal(t, 128, cfg.Preprocess.Width)
	assert.Equal(t, 32, cfg.Preprocess.Height)
	assert.InDelta(t, 0.5, cfg.Pipeline.MinConfidence, 1e-9)
	assert.Equal(t, 10, cfg.Fetch.TimeoutSec)
	assert.Equal(t, int64(20<<20), cfg.Fetch.MaxBytes)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.StrictStatus)
	assert.False(t, cfg.GPU.UseGPU)
	assert.Equal(t, 4, cfg.Batch.Workers)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"output format", func(c *Config) { c.Output.Format = "csv" }, "invalid output format"},
		{"score floor", func(c *Config) { c.Detector.ScoreFloor = 1.5 }, "detector.score_floor"},
		{"iou", func(c *Config) { c.Detector.IoUThreshold = -0.1 }, "detector.iou_threshold"},
		{"min confidence", func(c *Config) { c.Pipeline.MinConfidence = 2 }, "pipeline.min_confidence"},
		{"input size", func(c *Config) { c.Detector.InputSize = 600 }, "input size"},
		{"image size", func(c *Config) { c.Recognizer.ImageSize = 0 }, "image size"},
		{"max length", func(c *Config) { c.Recognizer.MaxLength = 0 }, "max length"},
		{"threshold high", func(c *Config) { c.Preprocess.Threshold = 256 }, "preprocess threshold"},
		{"threshold low", func(c *Config) { c.Preprocess.Threshold = -1 }, "preprocess threshold"},
		{"crop size", func(c *Config) { c.Preprocess.Width = 0 }, "preprocess size"},
		{"empty province", func(c *Config) { c.Pipeline.Provinces = []string{"ตาก", " "} }, "empty province"},
		{"duplicate province", func(c *Config) { c.Pipeline.Provinces = []string{"ตาก", "ตาก"} }, "duplicate"},
		{"fetch timeout", func(c *Config) { c.Fetch.TimeoutSec = 0 }, "fetch timeout"},
		{"fetch bytes", func(c *Config) { c.Fetch.MaxBytes = -1 }, "fetch max bytes"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"shutdown", func(c *Config) { c.Server.ShutdownTimeout = -1 }, "shutdown timeout"},
		{"batch workers", func(c *Config) { c.Batch.Workers = 0 }, "worker count"},
		{"batch pattern", func(c *Config) { c.Batch.Include = []string{"[a"} }, "invalid pattern"},
		{"gpu", func(c *Config) { c.GPU.UseGPU = true; c.GPU.DeviceID = -1 }, "GPU"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestToDetectorConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/opt/tlpr/models"
	cfg.LibraryPath = "/usr/lib/libonnxruntime.so"
	cfg.Detector.ScoreFloor = 0.3
	cfg.Detector.NumThreads = 2

	det := cfg.ToDetectorConfig()
	assert.Equal(t, filepath.Join("/opt/tlpr/models", "detection", "plate_yolov8.onnx"), det.ModelPath)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", det.LibraryPath)
	assert.InDelta(t, 0.3, det.ScoreFloor, 1e-9)
	assert.Equal(t, 2, det.NumThreads)
	require.NoError(t, det.Validate())

	cfg.Detector.ModelPath = "/custom/plate.onnx"
	assert.Equal(t, "/custom/plate.onnx", cfg.ToDetectorConfig().ModelPath)
}

func TestToRecognizerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/m"
	cfg.Recognizer.VocabPath = "/elsewhere/vocab.json"
	cfg.Recognizer.MaxLength = 12

	rec := cfg.ToRecognizerConfig()
	assert.Equal(t, filepath.Join("/m", "recognition", "encoder_model.onnx"), rec.EncoderPath)
	assert.Equal(t, filepath.Join("/m", "recognition", "decoder_model.onnx"), rec.DecoderPath)
	assert.Equal(t, "/elsewhere/vocab.json", rec.VocabPath)
	assert.Equal(t, 12, rec.MaxLength)
	assert.Equal(t, "pixel_values", rec.EncoderInput)
	require.NoError(t, rec.Validate())
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/m"
	cfg.Pipeline.MinConfidence = 0.6
	cfg.Preprocess.Threshold = 80

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, "/m", pc.ModelsDir)
	assert.InDelta(t, 0.6, pc.Options.MinConfidence, 1e-9)
	assert.Equal(t, uint8(80), pc.Options.Preprocess.Threshold)
	assert.Equal(t, province.Thai.Len(), pc.Options.Catalog.Len())
}

func TestCatalog(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, province.Thai.Len(), cfg.Catalog().Len())

	cfg.Pipeline.Provinces = []string{"ตาก", "น่าน"}
	c := cfg.Catalog()
	assert.Equal(t, 2, c.Len())
	c[0] = "changed"
	assert.Equal(t, "ตาก", cfg.Pipeline.Provinces[0])
}

func TestToFetchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fetch.TimeoutSec = 3
	cfg.Fetch.MaxBytes = 1024

	fc := cfg.ToFetchConfig()
	assert.Equal(t, 3*time.Second, fc.Timeout)
	assert.Equal(t, int64(1024), fc.MaxBytes)
	assert.Equal(t, "tlpr", fc.UserAgent)
}

func TestToBatchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch.Recursive = true
	cfg.Batch.Include = []string{"*.jpg"}
	cfg.Batch.Exclude = []string{"tmp_*"}

	bc := cfg.ToBatchConfig()
	assert.Equal(t, 4, bc.Workers)
	assert.True(t, bc.Recursive)
	assert.Equal(t, []string{"*.jpg"}, bc.IncludePatterns)
	assert.Equal(t, []string{"tmp_*"}, bc.ExcludePatterns)

	bc.IncludePatterns[0] = "changed"
	assert.Equal(t, "*.jpg", cfg.Batch.Include[0])
}
