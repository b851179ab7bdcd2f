// Package pipeline sequences plate detection, region preprocessing, text
// recognition and province matching into a single structured result.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/MeKo-Tech/tlpr/internal/detector"
	"github.com/MeKo-Tech/tlpr/internal/preprocess"
	"github.com/MeKo-Tech/tlpr/internal/province"
)

// Detector finds labeled regions in an image.
type Detector interface {
	Detect(img image.Image) ([]detector.Region, error)
}

// Recognizer reads the text of a normalized crop.
type Recognizer interface {
	Recognize(crop image.Image) (string, error)
}

// Options is the aggregation policy of a Service.
type Options struct {
	MinConfidence float64           // regions scoring below are skipped; equal is accepted
	Preprocess    preprocess.Config // crop normalization
	Catalog       province.Catalog  // nil selects province.Thai
}

// DefaultOptions returns threshold 0.5, the default crop policy and the
// Thai catalog.
func DefaultOptions() Options {
	return Options{
		MinConfidence: 0.5,
		Preprocess:    preprocess.DefaultConfig(),
		Catalog:       province.Thai,
	}
}

// Service is an immutable handle over loaded models. Process is synchronous
// and takes no locks; callers sharing one Service across goroutines must
// serialize access to the underlying models themselves.
type Service struct {
	detector      Detector
	recognizer    Recognizer
	preprocessor  *preprocess.Preprocessor
	catalog       province.Catalog
	minConfidence float64
	closers       []io.Closer
}

// New wires a Service from its collaborators.
func New(det Detector, rec Recognizer, opts Options) (*Service, error) {
	if det == nil {
		return nil, errors.New("detector is required")
	}
	if rec == nil {
		return nil, errors.New("recognizer is required")
	}
	if math.IsNaN(opts.MinConfidence) || opts.MinConfidence < 0 || opts.MinConfidence > 1 {
		return nil, fmt.Errorf("min confidence must be in [0,1], got %v", opts.MinConfidence)
	}
	pre, err := preprocess.New(opts.Preprocess)
	if err != nil {
		return nil, err
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = province.Thai
	}
	if len(catalog) == 0 {
		return nil, errors.New("province catalog is empty")
	}
	return &Service{
		detector:      det,
		recognizer:    rec,
		preprocessor:  pre,
		catalog:       catalog,
		minConfidence: opts.MinConfidence,
	}, nil
}

// Catalog returns the province catalog in use.
func (s *Service) Catalog() province.Catalog { return s.catalog }

// MinConfidence returns the region acceptance threshold.
func (s *Service) MinConfidence() float64 { return s.minConfidence }

// Process runs the pipeline on img. On failure the error is an *Error.
func (s *Service) Process(img image.Image) (Result, error) {
	res, _, err := s.ProcessTrace(img)
	return res, err
}

// ProcessTrace is Process plus a per-region account of the run. The trace is
// returned even when the run fails after detection.
func (s *Service) ProcessTrace(img image.Image) (res Result, trace *Trace, err error) {
	start := time.Now()
	trace = &Trace{}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline panic recovered", "panic", r)
			res = Result{}
			err = NewError(KindInternal, fmt.Sprintf("An error occurred: %v", r), nil)
		}
		trace.TotalNs = time.Since(start).Nanoseconds()
	}()

	if img == nil || img.Bounds().Empty() {
		return Result{}, trace, NewError(KindDecode, "Failed to open image: empty image", nil)
	}

	detStart := time.Now()
	regions, derr := s.detector.Detect(img)
	trace.DetectionNs = time.Since(detStart).Nanoseconds()
	if derr != nil {
		return Result{}, trace, Errorf(KindRecognition, derr, "Detection failed: %v", derr)
	}
	slog.Debug("Detection stage done", "regions", len(regions), "duration_ns", trace.DetectionNs)

	for i, region := range regions {
		rt := RegionTrace{Region: region}
		if !s.accepts(region) {
			rt.Skipped = true
			trace.Regions = append(trace.Regions, rt)
			continue
		}

		text, rerr := s.read(img, region, trace)
		if rerr != nil {
			return Result{}, trace, Errorf(KindRecognition, rerr, "Failed to read region %d (%s): %v", i, region.Class, rerr)
		}
		rt.Text = text

		switch region.Class {
		case detector.ClassPlate:
			res.PlateNumber = text
		case detector.ClassProvince:
			m := province.Closest(text, s.catalog)
			res.RawProvince = text
			res.Province = m.Name
			rt.Match = &m
			trace.ProvinceMatch = &m
		}
		trace.Regions = append(trace.Regions, rt)
	}

	if res.PlateNumber == "" {
		return Result{}, trace, NewError(KindNoDetection, NoDetectionMessage, nil)
	}
	slog.Debug("Pipeline complete",
		"plate_number", res.PlateNumber,
		"province", res.Province,
		"duration_ns", time.Since(start).Nanoseconds())
	return res, trace, nil
}

// accepts applies the confidence floor. NaN scores and unknown classes are
// skipped.
func (s *Service) accepts(r detector.Region) bool {
	return r.Confidence >= s.minConfidence && r.Class.Valid()
}

func (s *Service) read(img image.Image, region detector.Region, trace *Trace) (string, error) {
	crop, err := s.preprocessor.Normalize(img, region.Box)
	if err != nil {
		return "", err
	}
	recStart := time.Now()
	text, err := s.recognizer.Recognize(crop)
	trace.RecognitionNs += time.Since(recStart).Nanoseconds()
	return text, err
}

// Close releases models owned by the Service (those built by Builder).
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}
