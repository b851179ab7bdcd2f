package cmd

import (
	"encoding/json"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/tlpr/internal/config"
	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"github.com/MeKo-Tech/tlpr/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImageProcessor struct {
	err    error
	calls  int
	closed bool
}

func (f *fakeImageProcessor) ProcessTrace(image.Image) (pipeline.Result, *pipeline.Trace, error) {
	f.calls++
	if f.err != nil {
		return pipeline.Result{}, &pipeline.Trace{}, f.err
	}
	return pipeline.Result{PlateNumber: "1กข1234", RawProvince: "กรงเทพ", Province: "กรุงเทพมหานคร"},
		&pipeline.Trace{DetectionNs: 1}, nil
}

func (f *fakeImageProcessor) Close() error {
	f.closed = true
	return nil
}

func useFakeProcessor(t *testing.T, p *fakeImageProcessor) {
	t.Helper()
	orig := newImageProcessor
	newImageProcessor = func(*config.Config) (imageProcessor, error) { return p, nil }
	t.Cleanup(func() { newImageProcessor = orig })
}

func writePNG(t *testing.T) string {
	t.Helper()
	img := testutil.GenerateCarImage(testutil.DefaultCarImageConfig())
	return testutil.WriteFile(t, "car.png", testutil.PNGBytes(t, img))
}

func decodeLines(t *testing.T, out string) []imageOutput {
	t.Helper()
	var outs []imageOutput
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var o imageOutput
		require.NoError(t, json.Unmarshal([]byte(line), &o), line)
		outs = append(outs, o)
	}
	return outs
}

func TestImageCommand_JSON(t *testing.T) {
	p := &fakeImageProcessor{}
	useFakeProcessor(t, p)
	good := writePNG(t)
	missing := filepath.Join(t.TempDir(), "missing.png")

	out, err := execute(t, "image", good, missing)
	require.NoError(t, err, "one success is enough")

	outs := decodeLines(t, out)
	require.Len(t, outs, 2)
	assert.Equal(t, good, outs[0].Input)
	require.NotNil(t, outs[0].Result)
	assert.Equal(t, "กรุงเทพมหานคร", outs[0].Result.Province)
	assert.Nil(t, outs[0].Trace)

	assert.Nil(t, outs[1].Result)
	assert.Equal(t, "acquisition", outs[1].Kind)
	assert.Contains(t, outs[1].Error, "Failed to open image:")

	assert.Equal(t, 1, p.calls)
	assert.True(t, p.closed)
}

func TestImageCommand_Trace(t *testing.T) {
	useFakeProcessor(t, &fakeImageProcessor{})
	out, err := execute(t, "image", writePNG(t), "--trace")
	require.NoError(t, err)
	outs := decodeLines(t, out)
	require.NotNil(t, outs[0].Trace)
	assert.Equal(t, int64(1), outs[0].Trace.DetectionNs)
}

func TestImageCommand_Text(t *testing.T) {
	useFakeProcessor(t, &fakeImageProcessor{})
	path := writePNG(t)

	out, err := execute(t, "image", path, "--format", "text")
	require.NoError(t, err)
	assert.Equal(t, path+": 1กข1234 กรุงเทพมหานคร (raw province: \"กรงเทพ\")\n", out)
}

func TestImageCommand_AllFail(t *testing.T) {
	p := &fakeImageProcessor{err: pipeline.ErrNoDetection}
	useFakeProcessor(t, p)

	out, err := execute(t, "image", writePNG(t), "--format", "text")
	require.Error(t, err)
	assert.Contains(t, out, "error: No license plate number detected.")
}

func TestImageCommand_InitFailure(t *testing.T) {
	orig := newImageProcessor
	newImageProcessor = func(*config.Config) (imageProcessor, error) { return nil, errors.New("no models") }
	t.Cleanup(func() { newImageProcessor = orig })

	_, err := execute(t, "image", writePNG(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no models")
}

func TestImageCommand_RequiresInput(t *testing.T) {
	_, err := execute(t, "image")
	require.Error(t, err)
}

func TestImageCommand_FlagsReachConfig(t *testing.T) {
	var seen *config.Config
	orig := newImageProcessor
	newImageProcessor = func(cfg *config.Config) (imageProcessor, error) {
		seen = cfg
		return &fakeImageProcessor{}, nil
	}
	t.Cleanup(func() { newImageProcessor = orig })

	_, err := execute(t, "image", writePNG(t), "--min-confidence", "0.8", "--threshold", "90")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.InDelta(t, 0.8, seen.Pipeline.MinConfidence, 1e-9)
	assert.Equal(t, uint8(90), seen.ToPreprocessConfig().Threshold)
}

func TestServerConfigMapping(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.StrictStatus = true
	cfg.Server.RateLimit.Enabled = true
	cfg.Fetch.TimeoutSec = 4

	sc := serverConfig(&cfg)
	assert.True(t, sc.StrictStatus)
	assert.True(t, sc.RateLimit.Enabled)
	assert.Equal(t, 60, sc.RateLimit.RequestsPerMinute)
	assert.Equal(t, int64(20), sc.MaxUploadMB)
	assert.Equal(t, 4.0, sc.Fetch.Timeout.Seconds())
	assert.InDelta(t, 0.5, sc.PipelineConfig.Options.MinConfidence, 1e-9)
}
