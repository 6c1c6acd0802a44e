package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIImageClient_Generate(t *testing.T) {
	pngBytes := []byte("\x89PNG fake")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req imagesGenerationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-image-1", req.Model)
		assert.Equal(t, "b64_json", req.ResponseFormat)
		assert.Equal(t, "1024x1024", req.Size)

		if req.Prompt == "fail" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"content policy","type":"invalid_request_error"}}`))
			return
		}
		if req.Prompt == "empty" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(pngBytes)}},
		})
	}))
	defer server.Close()

	client := NewOpenAIImageClient(server.URL+"/", "sk-test", "gpt-image-1", "1024x1024", 5*time.Second)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		out, err := client.Generate(ctx, "a cottage")
		require.NoError(t, err)
		assert.Equal(t, pngBytes, out)
	})

	t.Run("provider error surfaces message", func(t *testing.T) {
		_, err := client.Generate(ctx, "fail")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "content policy")
	})

	t.Run("no image returned", func(t *testing.T) {
		_, err := client.Generate(ctx, "empty")
		assert.Error(t, err)
	})

	t.Run("empty prompt", func(t *testing.T) {
		_, err := client.Generate(ctx, "   ")
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	})

	t.Run("missing model", func(t *testing.T) {
		noModel := NewOpenAIImageClient(server.URL, "sk-test", "", "", time.Second)
		_, err := noModel.Generate(ctx, "x")
		assert.Error(t, err)
	})
}

func TestHTTPBackgroundRemover(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "key" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("forbidden"))
			return
		}
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "png", r.FormValue("format"))

		file, _, err := r.FormFile("image_file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(append([]byte("nobg:"), data...))
	}))
	defer server.Close()

	ctx := context.Background()

	remover := NewHTTPBackgroundRemover(server.URL, "key", 5*time.Second)
	out, err := remover.RemoveBackground(ctx, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, []byte("nobg:img"), out)

	_, err = remover.RemoveBackground(ctx, nil)
	assert.Error(t, err)

	unauthorized := NewHTTPBackgroundRemover(server.URL, "wrong", time.Second)
	_, err = unauthorized.RemoveBackground(ctx, []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	unconfigured := NewHTTPBackgroundRemover("", "", time.Second)
	_, err = unconfigured.RemoveBackground(ctx, []byte("img"))
	assert.Error(t, err)
}

func TestFuncAdapters(t *testing.T) {
	gen := ImageGeneratorFunc(func(ctx context.Context, prompt string) ([]byte, error) {
		return []byte(prompt), nil
	})
	out, err := gen.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []byte("p"), out)

	rm := BackgroundRemoverFunc(func(ctx context.Context, img []byte) ([]byte, error) {
		return append(img, '!'), nil
	})
	out, err = rm.RemoveBackground(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x!"), out)
}
