package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/fogleman/gg"
)

// BackgroundRemover returns a copy of the image with its background made transparent
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, img []byte) ([]byte, error)
}

// BackgroundRemoverFunc adapts a function to BackgroundRemover
type BackgroundRemoverFunc func(ctx context.Context, img []byte) ([]byte, error)

func (f BackgroundRemoverFunc) RemoveBackground(ctx context.Context, img []byte) ([]byte, error) {
	return f(ctx, img)
}

// HTTPBackgroundRemover posts the image as multipart form data and expects PNG bytes back
type HTTPBackgroundRemover struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

func NewHTTPBackgroundRemover(endpoint, apiKey string, timeout time.Duration) *HTTPBackgroundRemover {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &HTTPBackgroundRemover{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPBackgroundRemover) RemoveBackground(ctx context.Context, img []byte) ([]byte, error) {
	if len(img) == 0 {
		return nil, errors.New("background removal: empty image")
	}
	if c.Endpoint == "" {
		return nil, errors.New("background removal: endpoint not configured")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("size", "auto"); err != nil {
		return nil, fmt.Errorf("background removal: write size field: %w", err)
	}
	if err := writer.WriteField("format", "png"); err != nil {
		return nil, fmt.Errorf("background removal: write format field: %w", err)
	}
	field, err := writer.CreateFormFile("image_file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("background removal: create file field: %w", err)
	}
	if _, err := field.Write(img); err != nil {
		return nil, fmt.Errorf("background removal: copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("background removal: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("background removal: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "image/png")
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("background removal: http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("background removal: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("background removal: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if len(payload) == 0 {
		return nil, errors.New("background removal: empty response")
	}
	return payload, nil
}

// MockBackgroundRemover keys out near-white pixels
type MockBackgroundRemover struct {
	// Threshold is the minimum value each RGB channel must reach to count as background
	Threshold uint8
}

func NewMockBackgroundRemover() *MockBackgroundRemover {
	return &MockBackgroundRemover{Threshold: 240}
}

func (m *MockBackgroundRemover) RemoveBackground(ctx context.Context, raw []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("background removal: decode image: %w", err)
	}

	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			if c.R >= m.Threshold && c.G >= m.Threshold && c.B >= m.Threshold {
				c.A = 0
			}
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}

	var buf bytes.Buffer
	if err := gg.NewContextForImage(out).EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("background removal: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
