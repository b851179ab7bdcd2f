package recognizer

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/tlpr/internal/models"
	"github.com/MeKo-Tech/tlpr/internal/onnx"
)

// TokenIDs are the special token ids of the decoder vocabulary.
type TokenIDs struct {
	DecoderStart int64 `mapstructure:"decoder_start" yaml:"decoder_start" json:"decoder_start"`
	BOS          int64 `mapstructure:"bos" yaml:"bos" json:"bos"`
	PAD          int64 `mapstructure:"pad" yaml:"pad" json:"pad"`
	EOS          int64 `mapstructure:"eos" yaml:"eos" json:"eos"`
	UNK          int64 `mapstructure:"unk" yaml:"unk" json:"unk"`
}

// Config holds recognizer settings.
type Config struct {
	EncoderPath string
	DecoderPath string
	VocabPath   string
	LibraryPath string

	ImageSize int     // square encoder input
	Mean      float32 // per-channel normalization applied after scaling to [0,1]
	Std       float32
	MaxLength int // generated tokens, excluding the start token

	Tokens TokenIDs

	EncoderInput  string
	EncoderOutput string
	DecoderIDs    string
	DecoderHidden string
	DecoderOutput string

	NumThreads int
	GPU        onnx.GPUConfig
	Clean      CleanOptions
}

// DefaultConfig returns settings for a TrOCR export.
func DefaultConfig() Config {
	return Config{
		ImageSize:     384,
		Mean:          0.5,
		Std:           0.5,
		MaxLength:     20,
		Tokens:        TokenIDs{DecoderStart: 2, BOS: 0, PAD: 1, EOS: 2, UNK: 3},
		EncoderInput:  "pixel_values",
		EncoderOutput: "last_hidden_state",
		DecoderIDs:    "input_ids",
		DecoderHidden: "encoder_hidden_states",
		DecoderOutput: "logits",
		GPU:           onnx.DefaultGPUConfig(),
		Clean:         DefaultCleanOptions(),
	}
}

// UpdateModelPaths points empty model paths at the standard layout under dir.
func (c *Config) UpdateModelPaths(dir string) {
	if c.EncoderPath == "" {
		c.EncoderPath = models.EncoderPath(dir)
	}
	if c.DecoderPath == "" {
		c.DecoderPath = models.DecoderPath(dir)
	}
	if c.VocabPath == "" {
		c.VocabPath = models.VocabPath(dir)
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.EncoderPath == "" || c.DecoderPath == "" {
		return errors.New("encoder and decoder model paths are required")
	}
	if c.VocabPath == "" {
		return errors.New("vocabulary path is required")
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("image size must be positive, got %d", c.ImageSize)
	}
	if c.Std == 0 {
		return errors.New("std must be non-zero")
	}
	if c.MaxLength <= 0 {
		return fmt.Errorf("max length must be positive, got %d", c.MaxLength)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num threads must be >= 0, got %d", c.NumThreads)
	}
	return onnx.ValidateGPUConfig(c.GPU)
}
