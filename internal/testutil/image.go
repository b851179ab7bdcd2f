package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// CarImageConfig describes a synthetic rear view of a car with one plate.
type CarImageConfig struct {
	Width, Height int
	Body          color.Color
	Plate         image.Rectangle // white plate panel
	Text          string          // drawn on the upper half of the plate
	Rotation      float64         // degrees, counter-clockwise
}

// DefaultCarImageConfig returns a 640x480 grey car with a 200x80 plate
// near the bottom centre.
func DefaultCarImageConfig() CarImageConfig {
	return CarImageConfig{
		Width:  640,
		Height: 480,
		Body:   color.NRGBA{R: 90, G: 96, B: 110, A: 255},
		Plate:  image.Rect(220, 320, 420, 400),
		Text:   "1AB 2345",
	}
}

// GenerateCarImage renders cfg. Glyphs come from basicfont, so Text must be
// ASCII; the pixels only need to look plate-like to the preprocessing stage.
func GenerateCarImage(cfg CarImageConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(cfg.Body), image.Point{}, draw.Src)

	plate := cfg.Plate.Intersect(img.Bounds())
	if !plate.Empty() {
		draw.Draw(img, plate, image.NewUniform(color.White), image.Point{}, draw.Src)
		border := color.NRGBA{A: 255}
		for x := plate.Min.X; x < plate.Max.X; x++ {
			img.Set(x, plate.Min.Y, border)
			img.Set(x, plate.Max.Y-1, border)
		}
		for y := plate.Min.Y; y < plate.Max.Y; y++ {
			img.Set(plate.Min.X, y, border)
			img.Set(plate.Max.X-1, y, border)
		}
		if cfg.Text != "" {
			face := basicfont.Face7x13
			w := font.MeasureString(face, cfg.Text).Ceil()
			d := &font.Drawer{
				Dst:  img,
				Src:  image.NewUniform(color.Black),
				Face: face,
				Dot:  fixed.P(plate.Min.X+(plate.Dx()-w)/2, plate.Min.Y+plate.Dy()/2),
			}
			d.DrawString(cfg.Text)
		}
	}

	if cfg.Rotation != 0 {
		return imaging.Rotate(img, cfg.Rotation, cfg.Body)
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PNGBytes is EncodePNG failing t on error.
func PNGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := EncodePNG(img)
	require.NoError(t, err)
	return data
}

// JPEGBytes encodes img as JPEG at quality 90.
func JPEGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)))
	return buf.Bytes()
}

// SaveImage writes img to path, picking the format from the extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, imaging.Save(img, path))
}

// LoadImage reads and decodes the image at path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	require.NoError(t, err)
	return img
}
