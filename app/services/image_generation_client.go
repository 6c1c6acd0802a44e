package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrEmptyPrompt is returned when generation is requested without prompt text
var ErrEmptyPrompt = errors.New("image prompt required")

// ImageGenerator turns a prompt into encoded image bytes
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// ImageGeneratorFunc adapts a function to ImageGenerator
type ImageGeneratorFunc func(ctx context.Context, prompt string) ([]byte, error)

func (f ImageGeneratorFunc) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return f(ctx, prompt)
}

// OpenAIImageClient calls an OpenAI-compatible /v1/images/generations endpoint
type OpenAIImageClient struct {
	BaseURL    string
	APIKey     string
	Model      string
	Size       string
	HTTPClient *http.Client
}

func NewOpenAIImageClient(baseURL, apiKey, model, size string, timeout time.Duration) *OpenAIImageClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIImageClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		Size:       size,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type imagesGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *OpenAIImageClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if strings.TrimSpace(c.Model) == "" {
		return nil, errors.New("image model is not configured")
	}

	payload, err := json.Marshal(imagesGenerationRequest{
		Model:          c.Model,
		Prompt:         prompt,
		N:              1,
		Size:           c.Size,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("encode image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generation request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read image generation response: %w", err)
	}

	var out imagesGenerationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("image generation: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode image generation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return nil, fmt.Errorf("image generation: status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("image generation: status %d", resp.StatusCode)
	}
	if len(out.Data) == 0 {
		return nil, errors.New("no image returned")
	}

	b64 := strings.TrimSpace(out.Data[0].B64JSON)
	if b64 == "" {
		return nil, errors.New("image response missing b64_json")
	}
	img, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(img) == 0 {
		return nil, fmt.Errorf("decode image base64: %w", err)
	}
	return img, nil
}

// MockImageGenerator renders a deterministic PNG whose colours derive from the prompt
type MockImageGenerator struct {
	Width  int
	Height int
}

func NewMockImageGenerator(width, height int) *MockImageGenerator {
	if width <= 0 {
		width = 256
	}
	if height <= 0 {
		height = 256
	}
	return &MockImageGenerator{Width: width, Height: height}
}

func (g *MockImageGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := blake2b.Sum256([]byte(prompt))
	fg := color.NRGBA{R: sum[0], G: sum[1], B: sum[2], A: 255}

	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	// white backdrop with a centred block so background removal has something to key out
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for y := g.Height / 4; y < g.Height*3/4; y++ {
		for x := g.Width / 4; x < g.Width*3/4; x++ {
			img.SetNRGBA(x, y, fg)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode mock image: %w", err)
	}
	return buf.Bytes(), nil
}
