package detector

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/tlpr/internal/mempool"
	"github.com/disintegration/imaging"
)

// padColor is the YOLO letterbox fill.
var padColor = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// letterbox records how an image was fitted into the square network input so
// that boxes can be mapped back.
type letterbox struct {
	scale      float64
	padX, padY int
	srcW, srcH int
	size       int
}

func newLetterbox(srcW, srcH, size int) letterbox {
	scale := math.Min(float64(size)/float64(srcW), float64(size)/float64(srcH))
	newW := int(math.Round(float64(srcW) * scale))
	newH := int(math.Round(float64(srcH) * scale))
	dw := float64(size-newW) / 2
	dh := float64(size-newH) / 2
	return letterbox{
		scale: scale,
		padX:  int(math.Round(dw - 0.1)),
		padY:  int(math.Round(dh - 0.1)),
		srcW:  srcW,
		srcH:  srcH,
		size:  size,
	}
}

// apply resizes img keeping its aspect ratio and centers it on a gray canvas.
func (lb letterbox) apply(img image.Image) *image.NRGBA {
	newW := int(math.Round(float64(lb.srcW) * lb.scale))
	newH := int(math.Round(float64(lb.srcH) * lb.scale))
	resized := imaging.Resize(img, max(newW, 1), max(newH, 1), imaging.Linear)
	canvas := imaging.New(lb.size, lb.size, padColor)
	return imaging.Paste(canvas, resized, image.Pt(lb.padX, lb.padY))
}

// unmap converts a network-space box (center, size) to clamped source pixels.
func (lb letterbox) unmap(cx, cy, w, h float64) image.Rectangle {
	x1 := (cx - w/2 - float64(lb.padX)) / lb.scale
	y1 := (cy - h/2 - float64(lb.padY)) / lb.scale
	x2 := (cx + w/2 - float64(lb.padX)) / lb.scale
	y2 := (cy + h/2 - float64(lb.padY)) / lb.scale
	return image.Rect(
		clampInt(int(math.Round(x1)), 0, lb.srcW),
		clampInt(int(math.Round(y1)), 0, lb.srcH),
		clampInt(int(math.Round(x2)), 0, lb.srcW),
		clampInt(int(math.Round(y2)), 0, lb.srcH),
	)
}

// toTensorData converts an NRGBA canvas to planar RGB floats in [0,1]. The
// buffer comes from mempool; return it with mempool.PutFloat32.
func toTensorData(img *image.NRGBA) []float32 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	plane := w * h
	data := mempool.GetFloat32(3 * plane)
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := range w {
			i := y*w + x
			data[i] = float32(row[x*4]) / 255
			data[plane+i] = float32(row[x*4+1]) / 255
			data[2*plane+i] = float32(row[x*4+2]) / 255
		}
	}
	return data
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
