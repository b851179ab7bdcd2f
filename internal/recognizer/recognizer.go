// Package recognizer reads text from a normalized plate crop with a vision
// encoder-decoder model (TrOCR layout) exported to ONNX.
package recognizer

import (
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

// Recognizer holds the encoder and decoder sessions and the vocabulary.
type Recognizer struct {
	config  Config
	encoder *onnx.Session
	decoder *onnx.Session
	vocab   *Vocabulary
	mu      sync.RWMutex
}

// Result carries decoded text plus diagnostics.
type Result struct {
	Text     string
	TokenIDs []int64
	TimingNs int64
}

// NewRecognizer loads the vocabulary and opens both model sessions.
func NewRecognizer(config Config) (*Recognizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	vocab, err := LoadVocabulary(config.VocabPath,
		config.Tokens.BOS, config.Tokens.PAD, config.Tokens.EOS, config.Tokens.UNK)
	if err != nil {
		return nil, err
	}

	slog.Debug("Initializing recognizer",
		"encoder_path", config.EncoderPath,
		"decoder_path", config.DecoderPath,
		"vocab_size", vocab.Size(),
		"image_size", config.ImageSize,
		"max_length", config.MaxLength,
		"gpu_enabled", config.GPU.UseGPU)

	if err := onnx.InitRuntime(config.LibraryPath, config.GPU.UseGPU); err != nil {
		return nil, err
	}

	encoder, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   config.EncoderPath,
		InputNames:  []string{config.EncoderInput},
		OutputNames: []string{config.EncoderOutput},
		NumThreads:  config.NumThreads,
		GPU:         config.GPU,
	})
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	decoder, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   config.DecoderPath,
		InputNames:  []string{config.DecoderIDs, config.DecoderHidden},
		OutputNames: []string{config.DecoderOutput},
		NumThreads:  config.NumThreads,
		GPU:         config.GPU,
	})
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("decoder: %w", err)
	}

	slog.Debug("Recognizer initialized successfully")
	return &Recognizer{config: config, encoder: encoder, decoder: decoder, vocab: vocab}, nil
}

// Recognize returns the text in crop.
func (r *Recognizer) Recognize(crop image.Image) (string, error) {
	res, err := r.RecognizeDetailed(crop)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// RecognizeDetailed is Recognize plus the generated token ids and timing.
func (r *Recognizer) RecognizeDetailed(crop image.Image) (*Result, error) {
	start := time.Now()
	tensor, err := pixelValues(crop, r.config.ImageSize, r.config.Mean, r.config.Std)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	defer mempool.PutFloat32(tensor.Data)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.encoder == nil || r.decoder == nil {
		return nil, errors.New("recognizer is closed")
	}

	hidden, hiddenShape, err := r.encode(tensor)
	if err != nil {
		return nil, err
	}
	defer mempool.PutFloat32(hidden)

	ids, err := greedyDecode(func(ids []int64) ([]float32, error) {
		return r.decodeStep(ids, hidden, hiddenShape)
	}, r.config.Tokens.DecoderStart, r.config.Tokens.EOS, r.config.MaxLength)
	if err != nil {
		return nil, err
	}

	text := PostProcessText(r.vocab.Decode(ids), r.config.Clean)
	elapsed := time.Since(start)
	slog.Debug("Recognition complete", "tokens", len(ids), "text", text, "duration_ms", elapsed.Milliseconds())
	return &Result{Text: text, TokenIDs: ids, TimingNs: elapsed.Nanoseconds()}, nil
}

func (r *Recognizer) encode(tensor onnx.Tensor) ([]float32, []int64, error) {
	if err := onnx.VerifyImageTensor(tensor); err != nil {
		return nil, nil, fmt.Errorf("invalid pixel tensor: %w", err)
	}
	input, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pixel tensor: %w", err)
	}
	defer onnx.DestroyValues(input)

	outputs, err := r.encoder.Run(input)
	if err != nil {
		return nil, nil, fmt.Errorf("encoder: %w", err)
	}
	defer onnx.DestroyValues(outputs...)

	data, shape, err := onnx.FloatData(outputs[0])
	if err != nil {
		return nil, nil, fmt.Errorf("encoder: %w", err)
	}
	hidden := mempool.GetFloat32(len(data))
	copy(hidden, data)
	return hidden, append([]int64(nil), shape...), nil
}

func (r *Recognizer) decodeStep(ids []int64, hidden []float32, hiddenShape []int64) ([]float32, error) {
	idTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(1, int64(len(ids))), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to create ids tensor: %w", err)
	}
	defer onnx.DestroyValues(idTensor)

	hiddenTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(hiddenShape...), hidden)
	if err != nil {
		return nil, fmt.Errorf("failed to create hidden state tensor: %w", err)
	}
	defer onnx.DestroyValues(hiddenTensor)

	outputs, err := r.decoder.Run(idTensor, hiddenTensor)
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	defer onnx.DestroyValues(outputs...)

	data, shape, err := onnx.FloatData(outputs[0])
	if err != nil {
		return nil, err
	}
	last, err := lastPosition(data, shape)
	if err != nil {
		return nil, err
	}
	return append([]float32(nil), last...), nil
}

// Vocabulary returns the loaded vocabulary.
func (r *Recognizer) Vocabulary() *Vocabulary { return r.vocab }

// Config returns the recognizer configuration.
func (r *Recognizer) Config() Config { return r.config }

// Close releases both sessions.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	if r.encoder != nil {
		errs = append(errs, r.encoder.Close())
		r.encoder = nil
	}
	if r.decoder != nil {
		errs = append(errs, r.decoder.Close())
		r.decoder = nil
	}
	return errors.Join(errs...)
}
