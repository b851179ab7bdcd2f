package testutil

import (
	"image"

	"github.com/MeKo-Tech/tlpr/internal/detector"
	"github.com/MeKo-Tech/tlpr/internal/province"
)

// SmallCatalog is a four-province catalog for tests where the full Thai
// list would pull a misread toward an unintended neighbour.
var SmallCatalog = province.Catalog{"กรุงเทพมหานคร", "เชียงใหม่", "นครราชสีมา", "ขอนแก่น"}

// PlateFixture is one canned recognition case: the car image to send, what
// the scripted detector and recognizer report for it, and the outcome.
type PlateFixture struct {
	Name    string
	Image   CarImageConfig
	Regions []detector.Region
	Texts   []string         // recognizer output, one per accepted region in order
	Catalog province.Catalog // nil means province.Thai

	WantPlate       string
	WantRawProvince string
	WantProvince    string
	WantError       string
}

// Detector returns a scripted detector for f.
func (f PlateFixture) Detector() *ScriptedDetector {
	return &ScriptedDetector{Regions: f.Regions}
}

// Recognizer returns a scripted recognizer for f.
func (f PlateFixture) Recognizer() *ScriptedRecognizer {
	return &ScriptedRecognizer{Texts: append([]string(nil), f.Texts...)}
}

// plateRegions splits the plate panel into the registration line and the
// province line below it.
func plateRegions(plate image.Rectangle, plateConf, provinceConf float64) []detector.Region {
	mid := plate.Min.Y + plate.Dy()*3/5
	return []detector.Region{
		detector.NewRegion(plate.Min.X, plate.Min.Y, plate.Max.X, mid, plateConf, detector.ClassPlate),
		detector.NewRegion(plate.Min.X, mid, plate.Max.X, plate.Max.Y, provinceConf, detector.ClassProvince),
	}
}

// Fixtures returns the canned cases keyed by name.
func Fixtures() map[string]PlateFixture {
	car := DefaultCarImageConfig()
	fixtures := []PlateFixture{
		{
			Name:            "bangkok",
			Image:           car,
			Regions:         plateRegions(car.Plate, 0.92, 0.81),
			Texts:           []string{"1กข2345", "กรงเทพ"},
			Catalog:         SmallCatalog,
			WantPlate:       "1กข2345",
			WantRawProvince: "กรงเทพ",
			WantProvince:    "กรุงเทพมหานคร",
		},
		{
			Name:            "chiang-mai",
			Image:           car,
			Regions:         plateRegions(car.Plate, 0.88, 0.77),
			Texts:           []string{"2กก1234", "เชียงไหม"},
			WantPlate:       "2กก1234",
			WantRawProvince: "เชียงไหม",
			WantProvince:    "เชียงใหม่",
		},
		{
			Name:      "plate-only",
			Image:     car,
			Regions:   plateRegions(car.Plate, 0.9, 0.2),
			Texts:     []string{"9ขค8888"},
			WantPlate: "9ขค8888",
		},
		{
			Name:      "low-confidence",
			Image:     car,
			Regions:   plateRegions(car.Plate, 0.3, 0.3),
			WantError: "No license plate number detected.",
		},
		{
			Name:      "no-plate",
			Image:     CarImageConfig{Width: 320, Height: 240, Body: car.Body},
			WantError: "No license plate number detected.",
		},
	}
	out := make(map[string]PlateFixture, len(fixtures))
	for _, f := range fixtures {
		out[f.Name] = f
	}
	return out
}

// Fixture returns the named fixture and whether it exists.
func Fixture(name string) (PlateFixture, bool) {
	f, ok := Fixtures()[name]
	return f, ok
}
