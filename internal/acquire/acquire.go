// Package acquire fetches images over HTTP and decodes bytes or files into
// image.Image. Failures are reported as pipeline acquisition or decode
// errors.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Config controls remote fetching.
type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// DefaultConfig returns a 10 second timeout and a 20 MiB body limit.
func DefaultConfig() Config {
	return Config{
		Timeout:   10 * time.Second,
		MaxBytes:  20 << 20,
		UserAgent: "tlpr",
	}
}

// Fetcher downloads images.
type Fetcher struct {
	config Config
	client *http.Client
}

// NewFetcher returns a fetcher using its own http.Client.
func NewFetcher(config Config) *Fetcher {
	return NewFetcherWithClient(config, &http.Client{Timeout: config.Timeout})
}

// NewFetcherWithClient returns a fetcher using client, e.g. one from httptest.
func NewFetcherWithClient(config Config, client *http.Client) *Fetcher {
	if config.Timeout > 0 && client.Timeout == 0 {
		client.Timeout = config.Timeout
	}
	return &Fetcher{config: config, client: client}
}

// Fetch downloads rawURL and checks status and content type.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, pipeline.NewError(pipeline.KindAcquisition,
			fmt.Sprintf("Failed to fetch the image: invalid URL %q", rawURL), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindAcquisition, "Failed to fetch the image: "+err.Error(), err)
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindAcquisition, "Failed to fetch the image: "+err.Error(), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, pipeline.NewError(pipeline.KindAcquisition,
			fmt.Sprintf("Failed to fetch the image: HTTP %d", resp.StatusCode), nil)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, pipeline.NewError(pipeline.KindAcquisition,
			fmt.Sprintf("Invalid content type: %s", contentType), nil)
	}

	body := io.Reader(resp.Body)
	if f.config.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.config.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindAcquisition, "Failed to fetch the image: "+err.Error(), err)
	}
	if f.config.MaxBytes > 0 && int64(len(data)) > f.config.MaxBytes {
		return nil, pipeline.NewError(pipeline.KindAcquisition,
			fmt.Sprintf("Failed to fetch the image: body exceeds %d bytes", f.config.MaxBytes), nil)
	}

	slog.Debug("Image fetched",
		"url", u.Redacted(),
		"content_type", contentType,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())
	return data, nil
}

// FetchImage downloads and decodes rawURL.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) (image.Image, error) {
	data, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(data)
	return img, err
}

// Decode decodes any registered format.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", pipeline.NewError(pipeline.KindDecode, "Failed to open image: empty data", nil)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", pipeline.NewError(pipeline.KindDecode, fmt.Sprintf("Failed to open image: %v", err), err)
	}
	if img.Bounds().Empty() {
		return nil, "", pipeline.NewError(pipeline.KindDecode, "Failed to open image: zero-sized image", nil)
	}
	return img, format, nil
}

// SupportedExtensions lists file extensions LoadFile accepts.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether path has a supported extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// LoadFile reads and decodes a local image file.
func LoadFile(path string) (image.Image, error) {
	if path == "" {
		return nil, pipeline.NewError(pipeline.KindAcquisition, "Failed to open image: empty path", nil)
	}
	if !IsSupportedImage(path) {
		return nil, pipeline.NewError(pipeline.KindDecode,
			fmt.Sprintf("Failed to open image: unsupported format %q", filepath.Ext(path)), nil)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading a user-provided image path is expected
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindAcquisition, fmt.Sprintf("Failed to open image: %v", err), err)
	}
	img, _, err := Decode(data)
	return img, err
}

// IsURL reports whether s looks like an http(s) URL rather than a path.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Load fetches s when it is a URL and reads it from disk otherwise.
func Load(ctx context.Context, f *Fetcher, s string) (image.Image, error) {
	if IsURL(s) {
		if f == nil {
			return nil, errors.New("no fetcher configured for URL input")
		}
		return f.FetchImage(ctx, s)
	}
	return LoadFile(s)
}
