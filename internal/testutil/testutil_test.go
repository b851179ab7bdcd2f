package testutil_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/tlpr/internal/acquire"
	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"github.com/MeKo-Tech/tlpr/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := testutil.GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(filepath.Join(root, "go.mod")))
}

func TestGenerateCarImage(t *testing.T) {
	cfg := testutil.DefaultCarImageConfig()
	img := testutil.GenerateCarImage(cfg)

	assert.Equal(t, image.Rect(0, 0, 640, 480), img.Bounds())
	assert.Equal(t, color.NRGBAModel.Convert(cfg.Body), img.At(5, 5))
	// Plate interior away from the glyph row stays white.
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, img.At(cfg.Plate.Min.X+3, cfg.Plate.Max.Y-3))
	assert.Equal(t, color.NRGBA{A: 255}, img.At(cfg.Plate.Min.X, cfg.Plate.Min.Y))

	var dark int
	for x := cfg.Plate.Min.X + 1; x < cfg.Plate.Max.X-1; x++ {
		for y := cfg.Plate.Min.Y + 1; y < cfg.Plate.Max.Y-1; y++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r < 0x8000 {
				dark++
			}
		}
	}
	assert.Positive(t, dark, "text should be drawn on the plate")
}

func TestGenerateCarImageRotated(t *testing.T) {
	cfg := testutil.DefaultCarImageConfig()
	cfg.Rotation = 90
	img := testutil.GenerateCarImage(cfg)
	assert.Equal(t, 480, img.Bounds().Dx())
	assert.Equal(t, 640, img.Bounds().Dy())
}

func TestEncodeRoundTrip(t *testing.T) {
	img := testutil.GenerateCarImage(testutil.DefaultCarImageConfig())

	decoded, format, err := acquire.Decode(testutil.PNGBytes(t, img))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	_, err = jpeg.Decode(bytes.NewReader(testutil.JPEGBytes(t, img)))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "car.jpg")
	testutil.SaveImage(t, img, path)
	assert.Equal(t, img.Bounds(), testutil.LoadImage(t, path).Bounds())

	written := testutil.WriteFile(t, "raw.png", testutil.PNGBytes(t, img))
	assert.True(t, testutil.FileExists(written))
}

func TestScriptedDoubles(t *testing.T) {
	det := &testutil.ScriptedDetector{Err: errors.New("boom")}
	_, err := det.Detect(nil)
	require.Error(t, err)
	assert.Equal(t, 1, det.Calls())

	rec := &testutil.ScriptedRecognizer{Texts: []string{"a", "b"}}
	crop := image.NewGray(image.Rect(0, 0, 4, 2))
	var got []string
	for range 3 {
		s, err := rec.Recognize(crop)
		require.NoError(t, err)
		got = append(got, s)
	}
	assert.Equal(t, []string{"a", "b", "a"}, got)
	assert.Len(t, rec.Crops(), 3)
}

func TestFixturesThroughPipeline(t *testing.T) {
	for name, f := range testutil.Fixtures() {
		t.Run(name, func(t *testing.T) {
			opts := pipeline.DefaultOptions()
			if f.Catalog != nil {
				opts.Catalog = f.Catalog
			}
			svc, err := pipeline.New(f.Detector(), f.Recognizer(), opts)
			require.NoError(t, err)

			res, err := svc.Process(testutil.GenerateCarImage(f.Image))
			if f.WantError != "" {
				require.Error(t, err)
				assert.Equal(t, f.WantError, pipeline.AsError(err).Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, pipeline.Result{
				PlateNumber: f.WantPlate,
				RawProvince: f.WantRawProvince,
				Province:    f.WantProvince,
			}, res)
		})
	}
}

func TestFixtureLookup(t *testing.T) {
	f, ok := testutil.Fixture("bangkok")
	require.True(t, ok)
	assert.Equal(t, testutil.SmallCatalog, f.Catalog)

	_, ok = testutil.Fixture("missing")
	assert.False(t, ok)
}
