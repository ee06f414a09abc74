package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"postpilot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(textURL, imageURL string) *HuggingFaceService {
	return &HuggingFaceService{
		apiKey:   "test-key",
		textURL:  textURL,
		imageURL: imageURL,
		client:   &http.Client{},
	}
}

func TestGenerateText_SendsPromptAndParsesResponse(t *testing.T) {
	var gotBody textRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Write([]byte(`[{"generated_text": "Sam: Post early. Engagement peaks."}]`))
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, srv.URL)
	text, err := svc.GenerateText(context.Background(), TextPrompt{
		System: "You are Sam.",
		User:   "How do I grow my audience?",
	}, DefaultTextParams())

	require.NoError(t, err)
	assert.Equal(t, "Sam: Post early. Engagement peaks.", text)
	assert.Equal(t, "You are Sam.\n\nHow do I grow my audience?\n\nSam:", gotBody.Inputs)
	assert.Equal(t, 100, gotBody.Parameters.MaxNewTokens)
	assert.False(t, gotBody.Parameters.ReturnFullText)
}

func TestGenerateText_NonSuccessReturnsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("model loading"))
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, srv.URL)
	_, err := svc.GenerateText(context.Background(), TextPrompt{System: "s", User: "u"}, DefaultTextParams())

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusServiceUnavailable, upstreamErr.StatusCode)
	assert.Equal(t, "model loading", upstreamErr.Body)
}

func TestGenerateText_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	svc := newTestService(srv.URL, srv.URL)
	_, err := svc.GenerateText(context.Background(), TextPrompt{System: "s", User: "u"}, DefaultTextParams())

	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestGenerateText_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, srv.URL)
	_, err := svc.GenerateText(context.Background(), TextPrompt{System: "s", User: "u"}, DefaultTextParams())

	assert.Error(t, err)
}

func TestGenerateImage_BuildsPlatformPromptAndReturnsBytes(t *testing.T) {
	imageBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	var gotBody imageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Write(imageBytes)
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, srv.URL)
	got, err := svc.GenerateImage(context.Background(), "a sunrise over a city", models.PlatformInstagram)

	require.NoError(t, err)
	assert.Equal(t, imageBytes, got)
	assert.Equal(t, "Generate a instagram image: a sunrise over a city", gotBody.Inputs)
}
