// Package auth verifies bearer credentials against the identity provider and
// guards the HTTP surface.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnauthenticated is returned for missing, malformed or rejected
// credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the decoded caller identity.
type Identity struct {
	UserID string
}

// Verifier validates a bearer token and resolves the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// HTTPVerifier verifies tokens against the identity provider's verification
// endpoint.
type HTTPVerifier struct {
	verifyURL string
	client    *http.Client
}

// NewHTTPVerifier creates a verifier for the given verification endpoint.
func NewHTTPVerifier(verifyURL string) *HTTPVerifier {
	return &HTTPVerifier{
		verifyURL: verifyURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	UID string `json:"uid"`
}

// Verify posts the token to the provider. Any non-success response maps to
// ErrUnauthenticated; the caller is told nothing about why.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	jsonBody, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return Identity{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to reach identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, ErrUnauthenticated
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded verifyResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Identity{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if decoded.UID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: decoded.UID}, nil
}
