package support

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/tlpr/internal/acquire"
	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"github.com/MeKo-Tech/tlpr/internal/server"
	"github.com/MeKo-Tech/tlpr/internal/testutil"
)

// StartAPIServer wires a real pipeline around the fixture's scripted models
// and serves it on a loopback listener.
func (testCtx *TestContext) StartAPIServer() error {
	if testCtx.API != nil {
		return errors.New("API server already running")
	}
	if testCtx.Fixture.Name == "" {
		return errors.New("no plate fixture selected")
	}

	opts := pipeline.DefaultOptions()
	if testCtx.Fixture.Catalog != nil {
		opts.Catalog = testCtx.Fixture.Catalog
	}
	testCtx.Detector = testCtx.Fixture.Detector()
	testCtx.Recognizer = testCtx.Fixture.Recognizer()
	svc, err := pipeline.New(testCtx.Detector, testCtx.Recognizer, opts)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	cfg := server.Config{
		CORSOrigin:   "*",
		MaxUploadMB:  5,
		TimeoutSec:   5,
		StrictStatus: testCtx.StrictStatus,
		Fetch:        acquire.DefaultConfig(),
	}
	if testCtx.RateLimit != nil {
		cfg.RateLimit = *testCtx.RateLimit
	}
	testCtx.ocr = server.NewServerWithProcessor(cfg, svc)
	testCtx.API = httptest.NewServer(testCtx.ocr.Handler())
	return nil
}

// StartImageHost serves the configured image response at every path.
func (testCtx *TestContext) StartImageHost() {
	if testCtx.Images != nil {
		testCtx.Images.Close()
	}
	status := testCtx.imageStatus
	contentType := testCtx.imageContentType
	body := testCtx.imageBody
	testCtx.Images = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
}

// CarPNG renders the fixture's car image.
func (testCtx *TestContext) CarPNG() ([]byte, error) {
	return testutil.EncodePNG(testutil.GenerateCarImage(testCtx.Fixture.Image))
}

func (testCtx *TestContext) url(path string) (string, error) {
	if testCtx.API == nil {
		return "", errors.New("API server is not running")
	}
	return testCtx.API.URL + path, nil
}
