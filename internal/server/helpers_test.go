package server

import (
	"bytes"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MeKo-Tech/tlpr/internal/acquire"
	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"github.com/MeKo-Tech/tlpr/internal/province"
	"github.com/MeKo-Tech/tlpr/internal/testutil"
	"github.com/stretchr/testify/require"
)

// fakeProcessor returns a fixed outcome and records the images it saw.
type fakeProcessor struct {
	mu      sync.Mutex
	result  pipeline.Result
	trace   *pipeline.Trace
	err     error
	catalog province.Catalog
	seen    []image.Rectangle
	closed  bool
}

func (f *fakeProcessor) ProcessTrace(img image.Image) (pipeline.Result, *pipeline.Trace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, img.Bounds())
	if f.err != nil {
		return pipeline.Result{}, f.trace, f.err
	}
	return f.result, f.trace, nil
}

func (f *fakeProcessor) Catalog() province.Catalog {
	if f.catalog == nil {
		return province.Thai
	}
	return f.catalog
}

func (f *fakeProcessor) Close() error {
	f.closed = true
	return nil
}

func (f *fakeProcessor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func bangkokResult() pipeline.Result {
	return pipeline.Result{PlateNumber: "1กข1234", RawProvince: "กรงเทพ", Province: "กรุงเทพมหานคร"}
}

func testConfig() Config {
	return Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  5,
		Fetch:       acquire.DefaultConfig(),
	}
}

func newTestServer(t *testing.T, cfg Config, p *fakeProcessor) (*Server, http.Handler) {
	t.Helper()
	s := NewServerWithProcessor(cfg, p)
	return s, s.Handler()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	return testutil.PNGBytes(t, testutil.GenerateCarImage(testutil.CarImageConfig{
		Width:  w,
		Height: h,
		Body:   color.NRGBA{R: 200, G: 200, B: 200, A: 255},
	}))
}

// imageServer serves body with contentType and status at every path.
func imageServer(t *testing.T, status int, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func multipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/recognize", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
