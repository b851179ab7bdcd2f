package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/tlpr/internal/acquire"
	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"github.com/MeKo-Tech/tlpr/internal/province"
	"github.com/MeKo-Tech/tlpr/internal/version"
)

// AppDetails is the body of GET /.
const AppDetails = "OCR and YOLO processing app"

// maxJSONBody bounds JSON request bodies; they only carry a URL.
const maxJSONBody = 64 << 10

// ProcessImageRequest is the body of POST /process-image.
type ProcessImageRequest struct {
	ImagePath string `json:"image_path"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// ProvincesResponse is the body of GET /provinces.
type ProvincesResponse struct {
	Provinces []string `json:"provinces"`
	Count     int      `json:"count"`
}

// ProvinceMatchResponse is the body of GET /provinces/match.
type ProvinceMatchResponse struct {
	Text string `json:"text"`
	province.Match
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"details": AppDetails})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// processImageHandler fetches the image at image_path and recognizes it.
func (s *Server) processImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ProcessImageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.ImagePath) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: image_path is required"})
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	data, err := s.fetcher.Fetch(ctx, req.ImagePath)
	if err != nil {
		s.respond(w, r, "url", start, pipeline.Result{}, nil, err)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	img, _, err := acquire.Decode(data)
	if err != nil {
		s.respond(w, r, "url", start, pipeline.Result{}, nil, err)
		return
	}

	res, trace, err := s.process(ctx, img)
	s.respond(w, r, "url", start, res, trace, err)
}

// recognizeHandler recognizes an image uploaded as multipart field "image".
func (s *Server) recognizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "File too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to parse form data"})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No image file provided"})
		return
	}
	defer func() { _ = file.Close() }()

	start := time.Now()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read image data"})
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	img, _, err := acquire.Decode(data)
	if err != nil {
		s.respond(w, r, "upload", start, pipeline.Result{}, nil, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	res, trace, err := s.process(ctx, img)
	s.respond(w, r, "upload", start, res, trace, err)
}

func (s *Server) provincesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	names := s.pipeline.Catalog().Names()
	writeJSON(w, http.StatusOK, ProvincesResponse{Provinces: names, Count: len(names)})
}

func (s *Server) provinceMatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	text := r.URL.Query().Get("text")
	m := province.Closest(text, s.pipeline.Catalog())
	writeJSON(w, http.StatusOK, ProvinceMatchResponse{Text: text, Match: m})
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(r.Context(), s.timeout)
	}
	return context.WithCancel(r.Context())
}

// respond writes the pipeline outcome and records it.
func (s *Server) respond(
	w http.ResponseWriter,
	r *http.Request,
	source string,
	start time.Time,
	res pipeline.Result,
	trace *pipeline.Trace,
	err error,
) {
	s.observe(r.Context(), source, start, trace, err)

	status := http.StatusOK
	if err != nil && s.strictStatus {
		status = statusForKind(pipeline.KindOf(err))
	}
	writeJSON(w, status, pipeline.NewResponse(res, err))
}

func (s *Server) observe(ctx context.Context, source string, start time.Time, trace *pipeline.Trace, err error) {
	recognitionDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if trace != nil && trace.ProvinceMatch != nil {
		provinceMatchDistance.Observe(float64(trace.ProvinceMatch.Distance))
	}

	if err != nil {
		kind := pipeline.KindOf(err)
		recognitionsTotal.WithLabelValues(source, kind.String()).Inc()
		level := slog.LevelWarn
		if kind == pipeline.KindInternal {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "Recognition failed",
			"request_id", RequestID(ctx),
			"source", source,
			"kind", kind.String(),
			"error", fmt.Sprint(err))
		return
	}
	recognitionsTotal.WithLabelValues(source, "success").Inc()
}

// statusForKind maps a failure kind to an HTTP status for strict mode.
func statusForKind(k pipeline.Kind) int {
	switch k {
	case pipeline.KindDecode:
		return http.StatusBadRequest
	case pipeline.KindAcquisition:
		return http.StatusBadGateway
	case pipeline.KindNoDetection:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
