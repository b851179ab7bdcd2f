package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/tlpr/internal/models"
	"github.com/MeKo-Tech/tlpr/internal/province"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Defaults(t *testing.T) {
	t.Setenv(models.EnvModelsDir, "")
	b := NewBuilder()
	cfg := b.Config()
	assert.Equal(t, models.DefaultModelsDir, cfg.ModelsDir)
	assert.Equal(t, models.DetectorPath(models.DefaultModelsDir), cfg.Detector.ModelPath)
	assert.InDelta(t, 0.5, cfg.Options.MinConfidence, 1e-12)
	assert.Equal(t, uint8(65), cfg.Options.Preprocess.Threshold)
	require.NoError(t, b.Validate())
}

func TestBuilder_Fluent(t *testing.T) {
	dir := t.TempDir()
	catalog := province.Catalog{"ตาก"}
	cfg := NewBuilder().
		WithModelsDir(dir).
		WithDetectorModelPath("/custom/det.onnx").
		WithRecognizerPaths("", "/custom/dec.onnx", "").
		WithMinConfidence(0.6).
		WithBinarizeThreshold(80).
		WithCropSize(256, 64).
		WithCatalog(catalog).
		WithThreads(2).
		WithGPU(true).
		WithLibraryPath("/opt/lib.so").
		Config()

	assert.Equal(t, dir, cfg.ModelsDir)
	assert.Equal(t, "/custom/det.onnx", cfg.Detector.ModelPath)
	assert.Equal(t, filepath.Join(dir, "recognition", models.RecognitionEncoder), cfg.Recognizer.EncoderPath)
	assert.Equal(t, "/custom/dec.onnx", cfg.Recognizer.DecoderPath)
	assert.InDelta(t, 0.6, cfg.Options.MinConfidence, 1e-12)
	assert.Equal(t, uint8(80), cfg.Options.Preprocess.Threshold)
	assert.Equal(t, 256, cfg.Options.Preprocess.Width)
	assert.Equal(t, catalog, cfg.Options.Catalog)
	assert.Equal(t, 2, cfg.Detector.NumThreads)
	assert.Equal(t, 2, cfg.Recognizer.NumThreads)
	assert.True(t, cfg.Detector.GPU.UseGPU)
	assert.Equal(t, "/opt/lib.so", cfg.Recognizer.LibraryPath)
}

func TestBuilder_ValidateErrors(t *testing.T) {
	require.Error(t, NewBuilder().WithMinConfidence(-0.1).Validate())
	require.Error(t, NewBuilder().WithCropSize(0, 32).Validate())

	cfg := DefaultConfig()
	cfg.Detector.ModelPath = ""
	require.Error(t, NewBuilderFromConfig(cfg).Validate())
}

func TestBuilder_BuildMissingModels(t *testing.T) {
	_, err := NewBuilder().WithModelsDir(t.TempDir()).Build()
	require.Error(t, err)
}
