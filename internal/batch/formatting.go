package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Stats summarizes a run.
type Stats struct {
	Total            int           `json:"total"`
	Recognized       int           `json:"recognized"`
	Failed           int           `json:"failed"`
	Workers          int           `json:"workers"`
	Duration         time.Duration `json:"duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// Stats computes totals and throughput.
func (r *Result) Stats() Stats {
	s := Stats{Total: len(r.Items), Workers: r.Workers, Duration: r.Duration}
	for _, it := range r.Items {
		if it.OK() {
			s.Recognized++
		}
	}
	s.Failed = s.Total - s.Recognized
	if s.Total > 0 {
		s.AveragePerImage = r.Duration / time.Duration(s.Total)
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		s.ThroughputPerSec = float64(s.Total) / secs
	}
	return s
}

// Format renders the items as json, csv or text.
func (r *Result) Format(format string) (string, error) {
	switch format {
	case FormatJSON:
		return r.formatJSON()
	case FormatCSV:
		return r.formatCSV()
	case FormatText:
		return r.formatText(), nil
	default:
		return "", ValidateFormat(format)
	}
}

func (r *Result) formatJSON() (string, error) {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(struct {
		Images []Item `json:"images"`
	}{r.Items})
	return b.String(), err
}

func (r *Result) formatCSV() (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	rows := [][]string{{"file", "plate_number", "raw_province", "province", "error"}}
	for _, it := range r.Items {
		row := []string{it.File, "", "", "", it.Error}
		if it.OK() {
			row[1], row[2], row[3] = it.Result.PlateNumber, it.Result.RawProvince, it.Result.Province
		}
		rows = append(rows, row)
	}
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (r *Result) formatText() string {
	var b strings.Builder
	for _, it := range r.Items {
		if it.OK() {
			fmt.Fprintf(&b, "%s: %s %s\n", it.File, it.Result.PlateNumber, it.Result.Province)
		} else {
			fmt.Fprintf(&b, "%s: error: %s\n", it.File, it.Error)
		}
	}
	return b.String()
}

// Save writes the formatted items to outputFile, or to w when outputFile is
// empty.
func (r *Result) Save(w io.Writer, format, outputFile string) error {
	out, err := r.Format(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if outputFile == "" {
		_, err = io.WriteString(w, out)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(out), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// WriteStats prints a human-readable summary.
func (r *Result) WriteStats(w io.Writer) error {
	s := r.Stats()
	_, err := fmt.Fprintf(w, `
Processing Statistics:
  Total images: %d
  Recognized: %d
  Failed: %d
  Workers: %d
  Duration: %v
  Avg per image: %v
  Throughput: %.1f images/sec
`, s.Total, s.Recognized, s.Failed, s.Workers,
		s.Duration.Round(time.Millisecond), s.AveragePerImage.Round(time.Millisecond), s.ThroughputPerSec)
	return err
}
