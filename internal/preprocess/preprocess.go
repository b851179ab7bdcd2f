// Package preprocess turns a detected region into the fixed-size binarized
// crop the text recognizer expects.
package preprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrDegenerateRegion is returned for boxes with no area inside the image.
var ErrDegenerateRegion = errors.New("degenerate region: bounding box has zero area")

// Config holds the normalization policy.
type Config struct {
	Threshold uint8 // binarization cut on the equalized 0-255 scale
	Width     int   // output canvas width
	Height    int   // output canvas height
}

// DefaultConfig returns threshold 65 on a 128x32 canvas.
func DefaultConfig() Config {
	return Config{Threshold: 65, Width: 128, Height: 32}
}

// Validate checks the canvas size.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("crop size must be positive, got %dx%d", c.Width, c.Height)
	}
	return nil
}

// Preprocessor normalizes region crops. The zero value is not usable; build
// it with New.
type Preprocessor struct {
	config Config
}

// New returns a preprocessor for config.
func New(config Config) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Preprocessor{config: config}, nil
}

// Config returns the active policy.
func (p *Preprocessor) Config() Config { return p.config }

// Normalize crops box out of img and returns a Width x Height image whose
// three color channels carry the same binarized value.
func (p *Preprocessor) Normalize(img image.Image, box image.Rectangle) (*image.NRGBA, error) {
	if img == nil {
		return nil, &Error{Operation: "crop", Err: errors.New("input image is nil")}
	}
	rect, err := ClampBox(box, img.Bounds())
	if err != nil {
		return nil, &Error{Operation: "crop", Box: box, Err: err}
	}

	gray := Grayscale(imaging.Crop(img, rect))
	EqualizeHist(gray)
	Binarize(gray, p.config.Threshold)
	rgb := Replicate(gray)
	return imaging.Resize(rgb, p.config.Width, p.config.Height, imaging.Linear), nil
}

// ClampBox intersects box with bounds and rejects empty results.
func ClampBox(box, bounds image.Rectangle) (image.Rectangle, error) {
	if box.Dx() <= 0 || box.Dy() <= 0 {
		return image.Rectangle{}, ErrDegenerateRegion
	}
	rect := box.Intersect(bounds)
	if rect.Empty() {
		return image.Rectangle{}, ErrDegenerateRegion
	}
	return rect, nil
}

// Error describes a failed preprocessing step.
type Error struct {
	Operation string
	Box       image.Rectangle
	Err       error
}

func (e *Error) Error() string {
	if e.Box == (image.Rectangle{}) {
		return fmt.Sprintf("preprocess %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("preprocess %s %v: %v", e.Operation, e.Box, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
