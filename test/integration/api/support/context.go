// Package support holds the godog step definitions for the HTTP API suite.
package support

import (
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/tlpr/internal/server"
	"github.com/MeKo-Tech/tlpr/internal/testutil"
)

// TestContext is the per-scenario state.
type TestContext struct {
	Fixture      testutil.PlateFixture
	StrictStatus bool
	RateLimit    *server.RateLimitConfig

	Detector   *testutil.ScriptedDetector
	Recognizer *testutil.ScriptedRecognizer

	API    *httptest.Server
	ocr    *server.Server
	Images *httptest.Server

	imageStatus      int
	imageContentType string
	imageBody        []byte

	LastStatusCode int
	LastBody       []byte
	LastHeaders    http.Header
}

// NewTestContext returns an empty context.
func NewTestContext() *TestContext {
	return &TestContext{}
}

// Cleanup stops both servers and releases the pipeline.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.API != nil {
		testCtx.API.Close()
		testCtx.API = nil
	}
	if testCtx.ocr != nil {
		errs = append(errs, testCtx.ocr.Close())
		testCtx.ocr = nil
	}
	if testCtx.Images != nil {
		testCtx.Images.Close()
		testCtx.Images = nil
	}
	return errors.Join(errs...)
}
