package preprocess

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Grayscale converts img to a single luminance channel.
func Grayscale(img image.Image) *image.Gray {
	src := imaging.Grayscale(img)
	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		row := src.Pix[y*src.Stride:]
		for x := range b.Dx() {
			gray.Pix[y*gray.Stride+x] = row[x*4]
		}
	}
	return gray
}

// EqualizeHist spreads the intensity histogram of gray over 0-255 in place.
// The darkest populated level maps to 0; an image with a single level is
// left at that level.
func EqualizeHist(gray *image.Gray) {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	total := w * h
	if total == 0 {
		return
	}

	var hist [256]int
	for y := range h {
		for _, v := range gray.Pix[y*gray.Stride : y*gray.Stride+w] {
			hist[v]++
		}
	}

	first := 0
	for hist[first] == 0 {
		first++
	}
	if hist[first] == total {
		return
	}

	var lut [256]uint8
	scale := 255.0 / float64(total-hist[first])
	sum := 0
	for i := first + 1; i < 256; i++ {
		sum += hist[i]
		lut[i] = uint8(min(255, math.RoundToEven(float64(sum)*scale)))
	}

	for y := range h {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x, v := range row {
			row[x] = lut[v]
		}
	}
}

// Binarize applies an inverted fixed threshold in place: levels at or below
// threshold become 255, brighter levels become 0.
func Binarize(gray *image.Gray, threshold uint8) {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := range h {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x, v := range row {
			if v > threshold {
				row[x] = 0
			} else {
				row[x] = 255
			}
		}
	}
}

// Replicate copies the gray channel into R, G and B of an opaque image.
func Replicate(gray *image.Gray) *image.NRGBA {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		src := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x, v := range src {
			dst[x*4] = v
			dst[x*4+1] = v
			dst[x*4+2] = v
			dst[x*4+3] = 255
		}
	}
	return out
}
