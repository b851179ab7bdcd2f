package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/tlpr/internal/detector"
	"github.com/MeKo-Tech/tlpr/internal/models"
	"github.com/MeKo-Tech/tlpr/internal/province"
	"github.com/MeKo-Tech/tlpr/internal/recognizer"
)

// Config holds everything needed to build a Service from model files.
type Config struct {
	ModelsDir  string
	Detector   detector.Config
	Recognizer recognizer.Config
	Options    Options
}

// DefaultConfig returns component defaults with model paths under the
// resolved models directory.
func DefaultConfig() Config {
	cfg := Config{
		ModelsDir:  models.GetModelsDir(""),
		Detector:   detector.DefaultConfig(),
		Recognizer: recognizer.DefaultConfig(),
		Options:    DefaultOptions(),
	}
	cfg.Detector.UpdateModelPath(cfg.ModelsDir)
	cfg.Recognizer.UpdateModelPaths(cfg.ModelsDir)
	return cfg
}

// Builder constructs a Service with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from an existing configuration.
func NewBuilderFromConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithModelsDir sets the models directory and re-derives model paths.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir == "" {
		return b
	}
	b.cfg.ModelsDir = dir
	b.cfg.Detector.ModelPath = models.DetectorPath(dir)
	b.cfg.Recognizer.EncoderPath = models.EncoderPath(dir)
	b.cfg.Recognizer.DecoderPath = models.DecoderPath(dir)
	b.cfg.Recognizer.VocabPath = models.VocabPath(dir)
	return b
}

// WithDetectorModelPath overrides the detector model path.
func (b *Builder) WithDetectorModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Detector.ModelPath = path
	}
	return b
}

// WithRecognizerPaths overrides the encoder, decoder and vocabulary paths.
// Empty arguments keep the current value.
func (b *Builder) WithRecognizerPaths(encoder, decoder, vocab string) *Builder {
	if encoder != "" {
		b.cfg.Recognizer.EncoderPath = encoder
	}
	if decoder != "" {
		b.cfg.Recognizer.DecoderPath = decoder
	}
	if vocab != "" {
		b.cfg.Recognizer.VocabPath = vocab
	}
	return b
}

// WithMinConfidence sets the region acceptance threshold.
func (b *Builder) WithMinConfidence(v float64) *Builder {
	b.cfg.Options.MinConfidence = v
	return b
}

// WithBinarizeThreshold sets the inverted binarization cut.
func (b *Builder) WithBinarizeThreshold(v uint8) *Builder {
	b.cfg.Options.Preprocess.Threshold = v
	return b
}

// WithCropSize sets the normalized crop canvas.
func (b *Builder) WithCropSize(width, height int) *Builder {
	b.cfg.Options.Preprocess.Width = width
	b.cfg.Options.Preprocess.Height = height
	return b
}

// WithCatalog replaces the province catalog.
func (b *Builder) WithCatalog(c province.Catalog) *Builder {
	b.cfg.Options.Catalog = c
	return b
}

// WithThreads sets intra-op threads for both models.
func (b *Builder) WithThreads(n int) *Builder {
	if n >= 0 {
		b.cfg.Detector.NumThreads = n
		b.cfg.Recognizer.NumThreads = n
	}
	return b
}

// WithGPU toggles CUDA for both models.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.Detector.GPU.UseGPU = enabled
	b.cfg.Recognizer.GPU.UseGPU = enabled
	return b
}

// WithLibraryPath sets the ONNX Runtime shared library.
func (b *Builder) WithLibraryPath(path string) *Builder {
	b.cfg.Detector.LibraryPath = path
	b.cfg.Recognizer.LibraryPath = path
	return b
}

// Config returns the current configuration.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the configuration without touching model files.
func (b *Builder) Validate() error {
	if err := b.cfg.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := b.cfg.Recognizer.Validate(); err != nil {
		return fmt.Errorf("recognizer: %w", err)
	}
	if err := b.cfg.Options.Preprocess.Validate(); err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}
	if v := b.cfg.Options.MinConfidence; v < 0 || v > 1 {
		return fmt.Errorf("min confidence must be in [0,1], got %v", v)
	}
	return nil
}

// Build loads both models and returns a Service owning them.
func (b *Builder) Build() (*Service, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Loading models",
		"detector", b.cfg.Detector.ModelPath,
		"encoder", b.cfg.Recognizer.EncoderPath,
		"decoder", b.cfg.Recognizer.DecoderPath)

	det, err := detector.NewDetector(b.cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	rec, err := recognizer.NewRecognizer(b.cfg.Recognizer)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create recognizer: %w", err), det.Close())
	}

	svc, err := New(det, rec, b.cfg.Options)
	if err != nil {
		return nil, errors.Join(err, det.Close(), rec.Close())
	}
	svc.closers = []io.Closer{det, rec}
	return svc, nil
}
