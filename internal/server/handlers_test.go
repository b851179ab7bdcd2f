package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRootHandler(t *testing.T) {
	_, h := newTestServer(t, testConfig(), &fakeProcessor{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"details": "OCR and YOLO processing app"}, decodeBody(t, rr))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthHandler(t *testing.T) {
	_, h := newTestServer(t, testConfig(), &fakeProcessor{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["time"])

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestProcessImage_Success(t *testing.T) {
	imgSrv := imageServer(t, http.StatusOK, "image/png", pngBytes(t, 64, 32))
	p := &fakeProcessor{result: bangkokResult()}
	_, h := newTestServer(t, testConfig(), p)

	for _, path := range []string{"/process-image", "/process-image/"} {
		rr := postJSON(h, path, `{"image_path": "`+imgSrv.URL+`/car.png"}`)
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.JSONEq(t, `{"plate_number":"1กข1234","raw_province":"กรงเทพ","province":"กรุงเทพมหานคร"}`, rr.Body.String())
	}
	assert.Equal(t, 2, p.calls())
	assert.Equal(t, 64, p.seen[0].Dx())
}

func TestProcessImage_FailuresDefaultTo200(t *testing.T) {
	notFound := imageServer(t, http.StatusNotFound, "text/plain", []byte("nope"))
	html := imageServer(t, http.StatusOK, "text/html", []byte("<html/>"))
	garbage := imageServer(t, http.StatusOK, "image/jpeg", []byte("not really a jpeg"))
	ok := imageServer(t, http.StatusOK, "image/png", pngBytes(t, 8, 8))

	tests := []struct {
		name      string
		url       string
		processor *fakeProcessor
		wantError string
	}{
		{"http status", notFound.URL, &fakeProcessor{}, "Failed to fetch the image: HTTP 404"},
		{"content type", html.URL, &fakeProcessor{}, "Invalid content type: text/html"},
		{"decode", garbage.URL, &fakeProcessor{}, "Failed to open image:"},
		{
			"no detection", ok.URL,
			&fakeProcessor{err: pipeline.NewError(pipeline.KindNoDetection, pipeline.NoDetectionMessage, nil)},
			"No license plate number detected.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, testConfig(), tt.processor)
			rr := postJSON(h, "/process-image", `{"image_path": "`+tt.url+`"}`)
			assert.Equal(t, http.StatusOK, rr.Code)
			body := decodeBody(t, rr)
			require.Len(t, body, 1, "error responses carry only the error field")
			assert.Contains(t, body["error"], tt.wantError)
		})
	}
}

func TestProcessImage_StrictStatus(t *testing.T) {
	notFound := imageServer(t, http.StatusNotFound, "text/plain", nil)
	garbage := imageServer(t, http.StatusOK, "image/png", []byte("garbage"))
	ok := imageServer(t, http.StatusOK, "image/png", pngBytes(t, 8, 8))

	cfg := testConfig()
	cfg.StrictStatus = true

	tests := []struct {
		name      string
		url       string
		processor *fakeProcessor
		want      int
	}{
		{"acquisition", notFound.URL, &fakeProcessor{}, http.StatusBadGateway},
		{"decode", garbage.URL, &fakeProcessor{}, http.StatusBadRequest},
		{"no detection", ok.URL, &fakeProcessor{err: pipeline.ErrNoDetection}, http.StatusUnprocessableEntity},
		{"recognition", ok.URL, &fakeProcessor{err: pipeline.NewError(pipeline.KindRecognition, "Detection failed: boom", nil)}, http.StatusInternalServerError},
		{"success", ok.URL, &fakeProcessor{result: bangkokResult()}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, cfg, tt.processor)
			rr := postJSON(h, "/process-image", `{"image_path": "`+tt.url+`"}`)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestProcessImage_BadRequests(t *testing.T) {
	p := &fakeProcessor{}
	_, h := newTestServer(t, testConfig(), p)

	for _, body := range []string{"", "{", `{"image_path": ""}`, `{"other": 1}`} {
		rr := postJSON(h, "/process-image", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Contains(t, decodeBody(t, rr)["error"], "Invalid request body")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/process-image", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Zero(t, p.calls())
}

func TestRecognizeUpload(t *testing.T) {
	p := &fakeProcessor{result: bangkokResult()}
	_, h := newTestServer(t, testConfig(), p)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartRequest(t, "image", "car.png", pngBytes(t, 40, 20)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "1กข1234", decodeBody(t, rr)["plate_number"])
	assert.Equal(t, 40, p.seen[0].Dx())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, multipartRequest(t, "file", "car.png", pngBytes(t, 4, 4)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No image file provided", decodeBody(t, rr)["error"])

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, multipartRequest(t, "image", "car.png", []byte("garbage")))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "Failed to open image:")
	assert.Equal(t, 1, p.calls())
}

func TestRecognizeUpload_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadMB = 1
	_, h := newTestServer(t, cfg, &fakeProcessor{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartRequest(t, "image", "big.png", make([]byte, 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestProvinces(t *testing.T) {
	_, h := newTestServer(t, testConfig(), &fakeProcessor{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/provinces", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list ProvincesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 73, list.Count)
	assert.Contains(t, list.Provinces, "กรุงเทพมหานคร")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/provinces/match?text=%E0%B8%A0%E0%B8%B9%E0%B9%80%E0%B8%81%E0%B8%95", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"text":"ภูเกต","matched_name":"ภูเก็ต","distance":1}`, rr.Body.String())
}

func TestRequestID(t *testing.T) {
	_, h := newTestServer(t, testConfig(), &fakeProcessor{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	generated := rr.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	const id = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, id, rr.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.NotEqual(t, "not-a-uuid", rr.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.CORSOrigin = "https://plates.example"
	p := &fakeProcessor{}
	_, h := newTestServer(t, cfg, p)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/process-image", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://plates.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Zero(t, p.calls())
}

func TestRateLimit(t *testing.T) {
	imgSrv := imageServer(t, http.StatusOK, "image/png", pngBytes(t, 8, 8))
	cfg := testConfig()
	cfg.RateLimit = RateLimitConfig{Enabled: true, RequestsPerMinute: 1}
	_, h := newTestServer(t, cfg, &fakeProcessor{result: bangkokResult()})

	body := `{"image_path": "` + imgSrv.URL + `"}`
	assert.Equal(t, http.StatusOK, postJSON(h, "/process-image", body).Code)

	rr := postJSON(h, "/process-image", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "minute", rr.Header().Get("X-RateLimit-Type"))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decodeBody(t, rr)["error"])

	// informational routes are not limited
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProcess_CancelledWhileWaiting(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), &fakeProcessor{result: bangkokResult()})
	s.modelSlot <- struct{}{} // another request holds the models

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.process(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, pipeline.KindInternal, pipeline.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForKind(pipeline.KindDecode))
	assert.Equal(t, http.StatusBadGateway, statusForKind(pipeline.KindAcquisition))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForKind(pipeline.KindNoDetection))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(pipeline.KindRecognition))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(pipeline.KindInternal))
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, testConfig(), &fakeProcessor{})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tlpr_http_requests_total")
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(req))
}

func TestClose(t *testing.T) {
	p := &fakeProcessor{}
	s, _ := newTestServer(t, testConfig(), p)
	require.NoError(t, s.Close())
	assert.True(t, p.closed)
}
