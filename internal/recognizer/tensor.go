package recognizer

import (
	"errors"
	"image"

	"github.com/MeKo-Tech/tlpr/internal/mempool"
	"github.com/MeKo-Tech/tlpr/internal/onnx"
	"github.com/disintegration/imaging"
)

// pixelValues resizes crop to the encoder's square input and normalizes it
// into a [1, 3, size, size] tensor: (v/255 - mean) / std per channel. The
// tensor data is pooled.
func pixelValues(crop image.Image, size int, mean, std float32) (onnx.Tensor, error) {
	if crop == nil {
		return onnx.Tensor{}, errors.New("crop is nil")
	}
	if crop.Bounds().Empty() {
		return onnx.Tensor{}, errors.New("crop is empty")
	}

	resized := imaging.Resize(crop, size, size, imaging.Linear)
	plane := size * size
	data := mempool.GetFloat32(3 * plane)
	for y := range size {
		row := resized.Pix[y*resized.Stride:]
		for x := range size {
			i := y*size + x
			for c := range 3 {
				v := float32(row[x*4+c]) / 255
				data[c*plane+i] = (v - mean) / std
			}
		}
	}
	return onnx.NewImageTensor(data, 3, size, size)
}
