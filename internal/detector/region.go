// Package detector locates plate-number and province regions in an image
// using a YOLO model exported to ONNX.
package detector

import (
	"fmt"
	"image"
	"strings"
)

// Class is the label the detector assigns to a region.
type Class int

const (
	// ClassPlate marks the registration number text.
	ClassPlate Class = 0
	// ClassProvince marks the province name printed under the number.
	ClassProvince Class = 1
)

// NumClasses is the number of labels the model is trained on.
const NumClasses = 2

func (c Class) String() string {
	switch c {
	case ClassPlate:
		return "plate"
	case ClassProvince:
		return "province"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Valid reports whether c is one of the known labels.
func (c Class) Valid() bool { return c == ClassPlate || c == ClassProvince }

// MarshalText implements encoding.TextMarshaler. Unknown classes encode as
// "class(N)" so traces holding skipped regions still serialize.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Class) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "plate", "0":
		*c = ClassPlate
	case "province", "1":
		*c = ClassProvince
	default:
		return fmt.Errorf("unknown class %q", string(b))
	}
	return nil
}

// Region is one detector hit. Box holds (x1, y1) in Min and (x2, y2) in Max,
// in original image pixel coordinates.
type Region struct {
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
	Class      Class           `json:"class"`
}

// NewRegion builds a region from corner coordinates.
func NewRegion(x1, y1, x2, y2 int, confidence float64, class Class) Region {
	return Region{Box: image.Rect(x1, y1, x2, y2), Confidence: confidence, Class: class}
}

func (r Region) String() string {
	return fmt.Sprintf("%s(%d,%d,%d,%d)@%.3f", r.Class, r.Box.Min.X, r.Box.Min.Y, r.Box.Max.X, r.Box.Max.Y, r.Confidence)
}
