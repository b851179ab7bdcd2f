package onnx

import (
	"fmt"
	"log/slog"

	"github.com/yalue/onnxruntime_go"
)

// ModelSummary is the signature and metadata of an ONNX file.
type ModelSummary struct {
	Path        string   `json:"path"`
	Inputs      []IOInfo `json:"inputs"`
	Outputs     []IOInfo `json:"outputs"`
	Producer    string   `json:"producer,omitempty"`
	Version     int64    `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
}

// IOInfo describes one model input or output.
type IOInfo struct {
	Name       string  `json:"name"`
	Dimensions []int64 `json:"dimensions"`
	DataType   string  `json:"data_type"`
}

// Inspect reads the input/output signature and metadata of the model at path.
// The runtime must be initialized.
func Inspect(path string) (ModelSummary, error) {
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(path)
	if err != nil {
		return ModelSummary{}, fmt.Errorf("failed to read model info for %s: %w", path, err)
	}
	s := ModelSummary{Path: path, Inputs: toIOInfo(inputs), Outputs: toIOInfo(outputs)}

	meta, err := onnxruntime_go.GetModelMetadata(path)
	if err != nil {
		slog.Debug("Model metadata unavailable", "path", path, "error", err)
		return s, nil
	}
	defer func() {
		if err := meta.Destroy(); err != nil {
			slog.Warn("Failed to destroy model metadata", "error", err)
		}
	}()
	if v, err := meta.GetProducerName(); err == nil {
		s.Producer = v
	}
	if v, err := meta.GetVersion(); err == nil {
		s.Version = v
	}
	if v, err := meta.GetDescription(); err == nil {
		s.Description = v
	}
	return s, nil
}

func toIOInfo(infos []onnxruntime_go.InputOutputInfo) []IOInfo {
	out := make([]IOInfo, len(infos))
	for i, info := range infos {
		out[i] = IOInfo{
			Name:       info.Name,
			Dimensions: append([]int64(nil), info.Dimensions...),
			DataType:   fmt.Sprint(info.DataType),
		}
	}
	return out
}
