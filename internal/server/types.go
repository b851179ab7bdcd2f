// Package server exposes the plate recognition pipeline over HTTP and
// WebSocket.
package server

import (
	"context"
	"errors"
	"image"
	"net/http"
	"time"

	"github.com/MeKo-Tech/tlpr/internal/acquire"
	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"github.com/MeKo-Tech/tlpr/internal/province"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Processor is the part of *pipeline.Service the server depends on.
type Processor interface {
	ProcessTrace(img image.Image) (pipeline.Result, *pipeline.Trace, error)
	Catalog() province.Catalog
	Close() error
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	StrictStatus   bool // map error kinds to 4xx/5xx instead of always 200
	Fetch          acquire.Config
	PipelineConfig pipeline.Config
	RateLimit      RateLimitConfig
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline     Processor
	fetcher      *acquire.Fetcher
	modelSlot    chan struct{} // capacity 1: the models serve one image at a time
	corsOrigin   string
	maxUploadMB  int64
	timeout      time.Duration
	strictStatus bool
	rateLimiter  *RateLimiter
}

// NewServer loads the models described by config.PipelineConfig.
func NewServer(config Config) (*Server, error) {
	svc, err := pipeline.NewBuilderFromConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}
	return NewServerWithProcessor(config, svc), nil
}

// NewServerWithProcessor wires a server around an existing processor.
func NewServerWithProcessor(config Config, p Processor) *Server {
	s := &Server{
		pipeline:     p,
		fetcher:      acquire.NewFetcher(config.Fetch),
		modelSlot:    make(chan struct{}, 1),
		corsOrigin:   config.CORSOrigin,
		maxUploadMB:  config.MaxUploadMB,
		timeout:      time.Duration(config.TimeoutSec) * time.Second,
		strictStatus: config.StrictStatus,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 20
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	return s
}

// SetFetcher replaces the image fetcher, e.g. with one using an httptest client.
func (s *Server) SetFetcher(f *acquire.Fetcher) { s.fetcher = f }

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.wrap(s.rootHandler))
	mux.HandleFunc("/health", s.wrap(s.healthHandler))
	mux.HandleFunc("/process-image", s.wrap(s.rateLimitMiddleware(s.processImageHandler)))
	mux.HandleFunc("/process-image/", s.wrap(s.rateLimitMiddleware(s.processImageHandler)))
	mux.HandleFunc("/recognize", s.wrap(s.rateLimitMiddleware(s.recognizeHandler)))
	mux.HandleFunc("/provinces", s.wrap(s.provincesHandler))
	mux.HandleFunc("/provinces/match", s.wrap(s.provinceMatchHandler))
	mux.HandleFunc("/ws/recognize", s.requestIDMiddleware(s.rateLimitMiddleware(s.recognizeWebSocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// wrap applies the standard middleware chain.
func (s *Server) wrap(h http.HandlerFunc) http.HandlerFunc {
	return s.requestIDMiddleware(s.loggingMiddleware(s.corsMiddleware(h)))
}

// errBusy is returned when the context ends while waiting for the models.
var errBusy = errors.New("request cancelled while waiting for the recognition models")

// process runs the pipeline with exclusive model access. Waiting honors ctx;
// once started, a run completes even if ctx is cancelled.
func (s *Server) process(ctx context.Context, img image.Image) (pipeline.Result, *pipeline.Trace, error) {
	waitStart := time.Now()
	select {
	case s.modelSlot <- struct{}{}:
	case <-ctx.Done():
		return pipeline.Result{}, nil, pipeline.NewError(pipeline.KindInternal, "An error occurred: "+errBusy.Error(), errors.Join(errBusy, ctx.Err()))
	}
	defer func() { <-s.modelSlot }()
	modelQueueWait.Observe(time.Since(waitStart).Seconds())

	return s.pipeline.ProcessTrace(img)
}
