// Package models centralizes model file names and the models directory
// layout.
package models

import (
	"os"
	"path/filepath"
)

// Model file names.
const (
	DetectionYOLO      = "plate_yolov8.onnx"
	RecognitionEncoder = "encoder_model.onnx"
	RecognitionDecoder = "decoder_model.onnx"
	RecognitionVocab   = "vocab.json"
)

// Model type directories.
const (
	TypeDetection   = "detection"
	TypeRecognition = "recognition"
)

// DefaultModelsDir is used when neither a flag nor the environment names one.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "TLPR_MODELS_DIR"

// GetModelsDir resolves the models directory: explicit value first, then
// the environment, then the default.
func GetModelsDir(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvModelsDir); env != "" {
		return env
	}
	return DefaultModelsDir
}

// DetectorPath returns the detection model path under dir.
func DetectorPath(dir string) string {
	return filepath.Join(GetModelsDir(dir), TypeDetection, DetectionYOLO)
}

// EncoderPath returns the recognition encoder path under dir.
func EncoderPath(dir string) string {
	return filepath.Join(GetModelsDir(dir), TypeRecognition, RecognitionEncoder)
}

// DecoderPath returns the recognition decoder path under dir.
func DecoderPath(dir string) string {
	return filepath.Join(GetModelsDir(dir), TypeRecognition, RecognitionDecoder)
}

// VocabPath returns the recognition vocabulary path under dir.
func VocabPath(dir string) string {
	return filepath.Join(GetModelsDir(dir), TypeRecognition, RecognitionVocab)
}

// ModelInfo describes one expected model file.
type ModelInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
}

// Required lists every file the service needs under dir.
func Required(dir string) []ModelInfo {
	return []ModelInfo{
		{Name: DetectionYOLO, Type: TypeDetection, Path: DetectorPath(dir)},
		{Name: RecognitionEncoder, Type: TypeRecognition, Path: EncoderPath(dir)},
		{Name: RecognitionDecoder, Type: TypeRecognition, Path: DecoderPath(dir)},
		{Name: RecognitionVocab, Type: TypeRecognition, Path: VocabPath(dir)},
	}
}

// MissingFiles returns the entries of files whose path does not exist.
func MissingFiles(files []ModelInfo) []ModelInfo {
	var out []ModelInfo
	for _, m := range files {
		if _, err := os.Stat(m.Path); err != nil {
			out = append(out, m)
		}
	}
	return out
}
