package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/tlpr/internal/models"
	"github.com/MeKo-Tech/tlpr/internal/onnx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelsCommand_Missing(t *testing.T) {
	out, err := execute(t, "models", "--models-dir", "nowhere")
	require.ErrorContains(t, err, "model files missing")

	var files []modelFile
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	require.Len(t, files, 4)
	assert.Equal(t, models.DetectionYOLO, files[0].Name)
	assert.Equal(t, models.TypeRecognition, files[3].Type)
	assert.Equal(t, filepath.Join("nowhere", "detection", "plate_yolov8.onnx"), files[0].Path)
	for _, f := range files {
		assert.False(t, f.Present)
	}
}

func TestModelsCommand_ReportsMissingNames(t *testing.T) {
	dir := t.TempDir()
	det := filepath.Join(dir, "detection", models.DetectionYOLO)
	require.NoError(t, os.MkdirAll(filepath.Dir(det), 0o750))
	require.NoError(t, os.WriteFile(det, []byte("stub"), 0o600))

	out, err := execute(t, "models", "--models-dir", dir)
	require.EqualError(t, err, "model files missing: encoder_model.onnx, decoder_model.onnx, vocab.json")

	var files []modelFile
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	assert.True(t, files[0].Present)
	assert.False(t, files[1].Present)
}

func TestModelsCommand_PresentText(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{
		filepath.Join("detection", "plate_yolov8.onnx"),
		filepath.Join("recognition", "encoder_model.onnx"),
		filepath.Join("recognition", "decoder_model.onnx"),
		filepath.Join("recognition", "vocab.json"),
	} {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte("stub"), 0o600))
	}

	t.Setenv("TLPR_OUTPUT_FORMAT", "text")
	out, err := execute(t, "models", "--models-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "plate_yolov8.onnx    ok      "+filepath.Join(dir, "detection", "plate_yolov8.onnx"))
	assert.Contains(t, out, "vocab.json           ok      ")
}

func TestWriteModelFilesWithSummary(t *testing.T) {
	var buf bytes.Buffer
	files := []modelFile{{
		ModelInfo: models.ModelInfo{Name: "m.onnx", Path: "m.onnx"}, Present: true,
		Summary: &onnx.ModelSummary{
			Inputs:  []onnx.IOInfo{{Name: "images", Dimensions: []int64{1, 3, 640, 640}, DataType: "float32"}},
			Outputs: []onnx.IOInfo{{Name: "output0", Dimensions: []int64{1, 6, 8400}, DataType: "float32"}},
		},
	}}
	require.NoError(t, writeModelFiles(&buf, "text", files))
	assert.Contains(t, buf.String(), "  in  images [1 3 640 640] float32\n")
	assert.Contains(t, buf.String(), "  out output0 [1 6 8400] float32\n")
}
