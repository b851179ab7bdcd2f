// Package config defines the tlpr configuration tree and loads it from
// files, environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/tlpr/internal/acquire"
	"github.com/MeKo-Tech/tlpr/internal/batch"
	"github.com/MeKo-Tech/tlpr/internal/detector"
	"github.com/MeKo-Tech/tlpr/internal/models"
	"github.com/MeKo-Tech/tlpr/internal/onnx"
	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"github.com/MeKo-Tech/tlpr/internal/preprocess"
	"github.com/MeKo-Tech/tlpr/internal/province"
	"github.com/MeKo-Tech/tlpr/internal/recognizer"
)

// Config is the complete tlpr configuration, shared by the image, serve and
// province commands.
type Config struct {
	ModelsDir   string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LibraryPath string `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose     bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Fetch      FetchConfig      `mapstructure:"fetch" yaml:"fetch" json:"fetch"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output" json:"output"`
	Batch      BatchConfig      `mapstructure:"batch" yaml:"batch" json:"batch"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
	GPU        onnx.GPUConfig   `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// DetectorConfig contains plate detection settings.
type DetectorConfig struct {
	ModelPath    string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	InputSize    int     `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	ScoreFloor   float64 `mapstructure:"score_floor" yaml:"score_floor" json:"score_floor"`
	IoUThreshold float64 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	NumThreads   int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// RecognizerConfig contains text recognition settings.
type RecognizerConfig struct {
	EncoderPath string              `mapstructure:"encoder_path" yaml:"encoder_path" json:"encoder_path"`
	DecoderPath string              `mapstructure:"decoder_path" yaml:"decoder_path" json:"decoder_path"`
	VocabPath   string              `mapstructure:"vocab_path" yaml:"vocab_path" json:"vocab_path"`
	ImageSize   int                 `mapstructure:"image_size" yaml:"image_size" json:"image_size"`
	MaxLength   int                 `mapstructure:"max_length" yaml:"max_length" json:"max_length"`
	NumThreads  int                 `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	Tokens      recognizer.TokenIDs `mapstructure:"tokens" yaml:"tokens" json:"tokens"`
}

// PreprocessConfig contains crop normalization settings.
type PreprocessConfig struct {
	Threshold int `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	Width     int `mapstructure:"width" yaml:"width" json:"width"`
	Height    int `mapstructure:"height" yaml:"height" json:"height"`
}

// PipelineConfig contains aggregation settings.
type PipelineConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	// Provinces replaces the built-in catalog when non-empty.
	Provinces []string `mapstructure:"provinces" yaml:"provinces" json:"provinces"`
}

// FetchConfig contains remote image download settings.
type FetchConfig struct {
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	MaxBytes   int64  `mapstructure:"max_bytes" yaml:"max_bytes" json:"max_bytes"`
	UserAgent  string `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
}

// OutputConfig contains CLI output settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" json:"pretty"`
}

// BatchConfig contains directory scanning settings for `tlpr batch`.
type BatchConfig struct {
	Workers   int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include   []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude   []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	StrictStatus    bool            `mapstructure:"strict_status" yaml:"strict_status" json:"strict_status"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	rec := recognizer.DefaultConfig()
	pre := preprocess.DefaultConfig()
	opts := pipeline.DefaultOptions()
	fetch := acquire.DefaultConfig()
	bc := batch.DefaultConfig()

	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Detector: DetectorConfig{
			InputSize:    det.InputSize,
			ScoreFloor:   det.ScoreFloor,
			IoUThreshold: det.IoUThreshold,
			NumThreads:   det.NumThreads,
		},
		Recognizer: RecognizerConfig{
			ImageSize:  rec.ImageSize,
			MaxLength:  rec.MaxLength,
			NumThreads: rec.NumThreads,
			Tokens:     rec.Tokens,
		},
		Preprocess: PreprocessConfig{
			Threshold: int(pre.Threshold),
			Width:     pre.Width,
			Height:    pre.Height,
		},
		Pipeline: PipelineConfig{
			MinConfidence: opts.MinConfidence,
		},
		Fetch: FetchConfig{
			TimeoutSec: int(fetch.Timeout / time.Second),
			MaxBytes:   fetch.MaxBytes,
			UserAgent:  fetch.UserAgent,
		},
		Output: OutputConfig{
			Format: "json",
		},
		Batch: BatchConfig{
			Workers: bc.Workers,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
			},
		},
		GPU: onnx.DefaultGPUConfig(),
	}
}

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"json", "text"}
)

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if err := c.ToBatchConfig().Validate(); err != nil {
		return err
	}

	if err := validateThreshold(c.Detector.ScoreFloor, "detector.score_floor"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.IoUThreshold, "detector.iou_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Pipeline.MinConfidence, "pipeline.min_confidence"); err != nil {
		return err
	}
	if c.Detector.InputSize <= 0 || c.Detector.InputSize%32 != 0 {
		return fmt.Errorf("invalid detector input size: %d (must be a positive multiple of 32)", c.Detector.InputSize)
	}
	if c.Recognizer.ImageSize <= 0 {
		return fmt.Errorf("invalid recognizer image size: %d (must be positive)", c.Recognizer.ImageSize)
	}
	if c.Recognizer.MaxLength <= 0 {
		return fmt.Errorf("invalid recognizer max length: %d (must be positive)", c.Recognizer.MaxLength)
	}
	if c.Preprocess.Threshold < 0 || c.Preprocess.Threshold > 255 {
		return fmt.Errorf("invalid preprocess threshold: %d (must be between 0 and 255)", c.Preprocess.Threshold)
	}
	if c.Preprocess.Width <= 0 || c.Preprocess.Height <= 0 {
		return fmt.Errorf("invalid preprocess size: %dx%d (must be positive)", c.Preprocess.Width, c.Preprocess.Height)
	}
	if err := validateCatalog(c.Pipeline.Provinces); err != nil {
		return err
	}

	if c.Fetch.TimeoutSec <= 0 {
		return fmt.Errorf("invalid fetch timeout: %d (must be positive)", c.Fetch.TimeoutSec)
	}
	if c.Fetch.MaxBytes < 0 {
		return fmt.Errorf("invalid fetch max bytes: %d (must not be negative)", c.Fetch.MaxBytes)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeout)
	}

	if err := onnx.ValidateGPUConfig(c.GPU); err != nil {
		return fmt.Errorf("invalid GPU config: %w", err)
	}
	return nil
}

// ToDetectorConfig converts to detector.Config with model paths resolved.
func (c *Config) ToDetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.ModelPath = c.Detector.ModelPath
	cfg.LibraryPath = c.LibraryPath
	cfg.InputSize = c.Detector.InputSize
	cfg.ScoreFloor = c.Detector.ScoreFloor
	cfg.IoUThreshold = c.Detector.IoUThreshold
	cfg.NumThreads = c.Detector.NumThreads
	cfg.GPU = c.GPU
	cfg.UpdateModelPath(c.modelsDir())
	return cfg
}

// ToRecognizerConfig converts to recognizer.Config with model paths resolved.
func (c *Config) ToRecognizerConfig() recognizer.Config {
	cfg := recognizer.DefaultConfig()
	cfg.EncoderPath = c.Recognizer.EncoderPath
	cfg.DecoderPath = c.Recognizer.DecoderPath
	cfg.VocabPath = c.Recognizer.VocabPath
	cfg.LibraryPath = c.LibraryPath
	cfg.ImageSize = c.Recognizer.ImageSize
	cfg.MaxLength = c.Recognizer.MaxLength
	cfg.NumThreads = c.Recognizer.NumThreads
	cfg.Tokens = c.Recognizer.Tokens
	cfg.GPU = c.GPU
	cfg.UpdateModelPaths(c.modelsDir())
	return cfg
}

// ToPreprocessConfig converts to preprocess.Config.
func (c *Config) ToPreprocessConfig() preprocess.Config {
	return preprocess.Config{
		Threshold: uint8(c.Preprocess.Threshold), //nolint:gosec // G115: range checked by Validate
		Width:     c.Preprocess.Width,
		Height:    c.Preprocess.Height,
	}
}

// Catalog returns the configured province catalog.
func (c *Config) Catalog() province.Catalog {
	if len(c.Pipeline.Provinces) == 0 {
		return province.Thai
	}
	return province.Catalog(slices.Clone(c.Pipeline.Provinces))
}

// ToPipelineConfig converts the config to the pipeline builder configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		ModelsDir:  c.modelsDir(),
		Detector:   c.ToDetectorConfig(),
		Recognizer: c.ToRecognizerConfig(),
		Options: pipeline.Options{
			MinConfidence: c.Pipeline.MinConfidence,
			Preprocess:    c.ToPreprocessConfig(),
			Catalog:       c.Catalog(),
		},
	}
}

// ToFetchConfig converts to acquire.Config.
func (c *Config) ToFetchConfig() acquire.Config {
	return acquire.Config{
		Timeout:   time.Duration(c.Fetch.TimeoutSec) * time.Second,
		MaxBytes:  c.Fetch.MaxBytes,
		UserAgent: c.Fetch.UserAgent,
	}
}

// ToBatchConfig converts the batch section.
func (c *Config) ToBatchConfig() batch.Config {
	return batch.Config{
		Workers:         c.Batch.Workers,
		Recursive:       c.Batch.Recursive,
		IncludePatterns: slices.Clone(c.Batch.Include),
		ExcludePatterns: slices.Clone(c.Batch.Exclude),
	}
}

func (c *Config) modelsDir() string {
	return models.GetModelsDir(c.ModelsDir)
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

func validateCatalog(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			return errors.New("invalid pipeline.provinces: empty province name")
		}
		if seen[n] {
			return fmt.Errorf("invalid pipeline.provinces: duplicate %q", n)
		}
		seen[n] = true
	}
	return nil
}
