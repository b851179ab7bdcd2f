package testutil

import (
	"image"
	"sync"

	"github.com/MeKo-Tech/tlpr/internal/detector"
)

// ScriptedDetector returns the same regions for every image.
type ScriptedDetector struct {
	Regions []detector.Region
	Err     error

	mu    sync.Mutex
	calls int
}

// Detect implements the pipeline detector contract.
func (d *ScriptedDetector) Detect(image.Image) ([]detector.Region, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.Err != nil {
		return nil, d.Err
	}
	return append([]detector.Region(nil), d.Regions...), nil
}

// Calls returns how many images were seen.
func (d *ScriptedDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// ScriptedRecognizer returns Texts in call order, wrapping around so a
// repeated request reads the same sequence again.
type ScriptedRecognizer struct {
	Texts []string
	Err   error

	mu    sync.Mutex
	calls int
	crops []image.Rectangle
}

// Recognize implements the pipeline recognizer contract.
func (r *ScriptedRecognizer) Recognize(crop image.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.crops = append(r.crops, crop.Bounds())
	if r.Err != nil {
		return "", r.Err
	}
	if len(r.Texts) == 0 {
		return "", nil
	}
	return r.Texts[(r.calls-1)%len(r.Texts)], nil
}

// Crops returns the bounds of every crop received so far.
func (r *ScriptedRecognizer) Crops() []image.Rectangle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]image.Rectangle(nil), r.crops...)
}
