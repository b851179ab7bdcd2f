package detector

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLetterbox_Geometry(t *testing.T) {
	lb := newLetterbox(1280, 640, 640)
	assert.InDelta(t, 0.5, lb.scale, 1e-9)
	assert.Equal(t, 0, lb.padX)
	assert.Equal(t, 160, lb.padY)

	// A box covering the whole resized content maps back to the full image.
	r := lb.unmap(320, 320, 640, 320)
	assert.Equal(t, image.Rect(0, 0, 1280, 640), r)
}

func TestLetterbox_UnmapClamps(t *testing.T) {
	lb := newLetterbox(100, 100, 640)
	r := lb.unmap(0, 0, 200, 200)
	assert.Equal(t, 0, r.Min.X)
	assert.Equal(t, 0, r.Min.Y)
	assert.LessOrEqual(t, r.Max.X, 100)
}

func TestLetterbox_Apply(t *testing.T) {
	src := imaging.New(200, 100, color.NRGBA{R: 255, A: 255})
	lb := newLetterbox(200, 100, 64)
	out := lb.apply(src)
	require.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())

	// Top padding keeps the YOLO gray, the center holds the red source.
	assert.Equal(t, padColor, out.NRGBAAt(32, 2))
	c := out.NRGBAAt(32, 32)
	assert.Equal(t, uint8(255), c.R)
	assert.Equal(t, uint8(0), c.G)

	data := toTensorData(out)
	require.Len(t, data, 3*64*64)
	assert.InDelta(t, 1.0, data[32*64+32], 1e-6)
	assert.InDelta(t, 114.0/255, data[2*64*64+2*64+32], 1e-6)
}

// head builds a channels-first YOLO head for the given anchors.
func head(anchors [][6]float32) ([]float32, []int64) {
	n := len(anchors)
	data := make([]float32, 6*n)
	for a, v := range anchors {
		for attr := range 6 {
			data[attr*n+a] = v[attr]
		}
	}
	return data, []int64{1, 6, int64(n)}
}

func TestDecodeOutput_ChannelsFirst(t *testing.T) {
	lb := newLetterbox(640, 640, 640)
	data, shape := head([][6]float32{
		{100, 100, 50, 20, 0.9, 0.1},  // plate
		{300, 300, 40, 10, 0.2, 0.6},  // province
		{500, 500, 10, 10, 0.1, 0.05}, // below floor
	})

	regions, err := decodeOutput(data, shape, NumClasses, 0.25, lb)
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, ClassPlate, regions[0].Class)
	assert.Equal(t, image.Rect(75, 90, 125, 110), regions[0].Box)
	assert.InDelta(t, 0.9, regions[0].Confidence, 1e-6)

	assert.Equal(t, ClassProvince, regions[1].Class)
	assert.InDelta(t, 0.6, regions[1].Confidence, 1e-6)
}

func TestDecodeOutput_Transposed(t *testing.T) {
	lb := newLetterbox(640, 640, 640)
	data := []float32{
		100, 100, 50, 20, 0.3, 0.8,
		200, 200, 50, 20, 0.7, 0.1,
	}
	regions, err := decodeOutput(data, []int64{1, 2, 6}, NumClasses, 0.25, lb)
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, ClassProvince, regions[0].Class)
	assert.Equal(t, ClassPlate, regions[1].Class)
}

func TestDecodeOutput_NaNScores(t *testing.T) {
	lb := newLetterbox(640, 640, 640)
	nan := float32(math.NaN())
	data, shape := head([][6]float32{
		{100, 100, 50, 20, nan, nan},
		{300, 300, 40, 10, nan, 0.7},
	})

	regions, err := decodeOutput(data, shape, NumClasses, 0.25, lb)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, ClassProvince, regions[0].Class)
	assert.InDelta(t, 0.7, regions[0].Confidence, 1e-6)
}

func TestDecodeOutput_BadShape(t *testing.T) {
	lb := newLetterbox(640, 640, 640)
	_, err := decodeOutput(make([]float32, 10), []int64{1, 5, 2}, NumClasses, 0.25, lb)
	require.Error(t, err)

	_, err = decodeOutput(make([]float32, 10), []int64{1, 6, 2}, NumClasses, 0.25, lb)
	require.Error(t, err)

	_, err = decodeOutput(nil, []int64{6, 2}, NumClasses, 0.25, lb)
	require.Error(t, err)
}

func TestNonMaxSuppression(t *testing.T) {
	regions := []Region{
		NewRegion(0, 0, 100, 40, 0.8, ClassPlate),
		NewRegion(2, 2, 100, 40, 0.9, ClassPlate),
		NewRegion(0, 0, 100, 40, 0.7, ClassProvince),
		NewRegion(300, 300, 400, 340, 0.6, ClassPlate),
	}
	kept := NonMaxSuppression(regions, 0.7)
	require.Len(t, kept, 3)
	assert.InDelta(t, 0.9, kept[0].Confidence, 1e-9)
	assert.Equal(t, ClassProvince, kept[1].Class, "other class is never suppressed")
	assert.InDelta(t, 0.6, kept[2].Confidence, 1e-9)

	// Input slice is untouched.
	assert.InDelta(t, 0.8, regions[0].Confidence, 1e-9)
	assert.Nil(t, NonMaxSuppression(nil, 0.5))
}

func TestIoU(t *testing.T) {
	a := image.Rect(0, 0, 10, 10)
	assert.InDelta(t, 1.0, IoU(a, a), 1e-9)
	assert.InDelta(t, 0.0, IoU(a, image.Rect(20, 20, 30, 30)), 1e-9)
	assert.InDelta(t, 25.0/175.0, IoU(a, image.Rect(5, 5, 15, 15)), 1e-9)
	assert.InDelta(t, 0.0, IoU(image.Rectangle{}, a), 1e-9)
}

func TestDropEmpty(t *testing.T) {
	in := []Region{
		NewRegion(0, 0, 0, 10, 0.9, ClassPlate),
		NewRegion(0, 0, 5, 5, 0.9, ClassPlate),
	}
	out := dropEmpty(in)
	require.Len(t, out, 1)
	assert.Equal(t, image.Rect(0, 0, 5, 5), out[0].Box)
}
