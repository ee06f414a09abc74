package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"postpilot/models"
)

const (
	textModelURL  = "https://api-inference.huggingface.co/models/mistralai/Mistral-7B-Instruct-v0.3"
	imageModelURL = "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-xl-base-1.0"
)

// ErrUpstreamUnavailable marks transport-level failures reaching the
// inference API (connection refused, timeout, DNS).
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// UpstreamError is a non-success response from the inference API. It carries
// the upstream status and body for diagnostics.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Body)
}

// HuggingFaceService calls the Hugging Face Inference API for text and image
// generation. Calls are single-shot: no retries, no backoff.
type HuggingFaceService struct {
	apiKey   string
	textURL  string
	imageURL string
	client   *http.Client
}

// NewHuggingFaceService creates a client for the hosted inference API.
func NewHuggingFaceService(apiKey string) *HuggingFaceService {
	return &HuggingFaceService{
		apiKey:   apiKey,
		textURL:  textModelURL,
		imageURL: imageModelURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// TextPrompt is the two-part prompt sent to the text model.
type TextPrompt struct {
	System string
	User   string
}

// TextParams are the sampling parameters for a text generation call.
type TextParams struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
	DoSample     bool
}

// DefaultTextParams returns the sampling parameters used for post drafting.
func DefaultTextParams() TextParams {
	return TextParams{
		MaxNewTokens: 100,
		Temperature:  0.7,
		TopP:         0.95,
		DoSample:     true,
	}
}

type textRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters textParameters `json:"parameters"`
}

type textParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	ReturnFullText bool    `json:"return_full_text"`
	DoSample       bool    `json:"do_sample"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
}

type textResponse struct {
	GeneratedText string `json:"generated_text"`
}

// GenerateText sends a prompt to the text model and returns the raw
// generated text. The prompt is serialized with a trailing assistant cue so
// the model answers in the persona's voice.
func (s *HuggingFaceService) GenerateText(ctx context.Context, prompt TextPrompt, params TextParams) (string, error) {
	reqBody := textRequest{
		Inputs: fmt.Sprintf("%s\n\n%s\n\n%s:", prompt.System, prompt.User, models.AssistantName),
		Parameters: textParameters{
			MaxNewTokens:   params.MaxNewTokens,
			ReturnFullText: false,
			DoSample:       params.DoSample,
			Temperature:    params.Temperature,
			TopP:           params.TopP,
		},
	}

	body, err := s.post(ctx, s.textURL, reqBody)
	if err != nil {
		return "", err
	}

	var results []textResponse
	if err := json.Unmarshal(body, &results); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("empty response from text model")
	}
	return results[0].GeneratedText, nil
}

type imageRequest struct {
	Inputs string `json:"inputs"`
}

// GenerateImage sends a prompt to the image model and returns the raw image
// bytes (JPEG).
func (s *HuggingFaceService) GenerateImage(ctx context.Context, prompt string, platform models.Platform) ([]byte, error) {
	reqBody := imageRequest{
		Inputs: fmt.Sprintf("Generate a %s image: %s", platform, prompt),
	}
	return s.post(ctx, s.imageURL, reqBody)
}

func (s *HuggingFaceService) post(ctx context.Context, url string, reqBody any) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
