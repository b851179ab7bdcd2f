package pipeline

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/tlpr/internal/detector"
)

type fakeDetector struct {
	regions []detector.Region
	err     error
	calls   int
}

func (f *fakeDetector) Detect(image.Image) ([]detector.Region, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]detector.Region(nil), f.regions...), nil
}

// fakeRecognizer returns texts in call order and records crop sizes.
type fakeRecognizer struct {
	texts []string
	err   error
	panic any
	calls int
	sizes []image.Rectangle
}

func (f *fakeRecognizer) Recognize(crop image.Image) (string, error) {
	f.calls++
	f.sizes = append(f.sizes, crop.Bounds())
	if f.panic != nil {
		panic(f.panic)
	}
	if f.err != nil {
		return "", f.err
	}
	if len(f.texts) == 0 {
		return "", nil
	}
	return f.texts[(f.calls-1)%len(f.texts)], nil
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 400, 200))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(60, 40, 340, 110), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return img
}

func plate(conf float64) detector.Region {
	return detector.NewRegion(50, 30, 350, 120, conf, detector.ClassPlate)
}

func provinceRegion(conf float64) detector.Region {
	return detector.NewRegion(80, 130, 320, 180, conf, detector.ClassProvince)
}
