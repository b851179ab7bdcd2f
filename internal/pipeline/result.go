package pipeline

import (
	"encoding/json"

	"github.com/MeKo-Tech/tlpr/internal/detector"
	"github.com/MeKo-Tech/tlpr/internal/province"
)

// Result is the success half of a pipeline run.
type Result struct {
	PlateNumber string `json:"plate_number"`
	RawProvince string `json:"raw_province"`
	Province    string `json:"province"`
}

// Trace records what happened to every region of one run.
type Trace struct {
	Regions       []RegionTrace   `json:"regions"`
	ProvinceMatch *province.Match `json:"province_match,omitempty"`
	DetectionNs   int64           `json:"detection_ns"`
	RecognitionNs int64           `json:"recognition_ns"`
	TotalNs       int64           `json:"total_ns"`
}

// RegionTrace is the outcome for one detected region.
type RegionTrace struct {
	Region  detector.Region `json:"region"`
	Skipped bool            `json:"skipped"`
	Text    string          `json:"text,omitempty"`
	Match   *province.Match `json:"match,omitempty"`
}

// Response is the wire form of a run: the three result fields on success,
// or only the error message on failure.
type Response struct {
	Result
	Error string
}

// NewResponse converts a Process outcome into its wire form.
func NewResponse(res Result, err error) Response {
	if err != nil {
		return Response{Error: AsError(err).Message}
	}
	return Response{Result: res}
}

// OK reports whether the response carries a result.
func (r Response) OK() bool { return r.Error == "" }

// MarshalJSON emits {"error": ...} or the result object.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	return json.Marshal(r.Result)
}

// UnmarshalJSON accepts either form.
func (r *Response) UnmarshalJSON(b []byte) error {
	var raw struct {
		Result
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Result, r.Error = raw.Result, raw.Error
	return nil
}
