// Package voice implements core.Synthesizer on top of the external voice model,
// reached either over HTTP or by executing its command line binary.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/voiceprep/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

const defaultLanguage = "en"

// Error messages.
const (
	errFmtServiceErrorWithCode = "voice service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "voice service returned non-OK status: %s, body: %s"
	errFmtUnexpectedType       = "unexpected content type: expected audio/wav, got %s"
)

var (
	// ErrTextEmpty is returned when a request carries no text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrEmptyAudio is returned when the model answered without audio.
	ErrEmptyAudio = errors.New("received empty audio data")
)

// SpeechRequest is the JSON payload of the generation endpoint.
type SpeechRequest struct {
	Text string `json:"text"`

	// SpeakerRefPath optionally names a reference recording for voice cloning.
	// The model falls back to its default speaker when empty.
	SpeakerRefPath string `json:"speaker_ref_path,omitempty"`

	Voice             string  `json:"voice,omitempty"`
	Language          string  `json:"language"`
	Temperature       float64 `json:"temperature"`
	TopK              int     `json:"top_k,omitempty"`
	TopP              float64 `json:"top_p,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
	MaxNewTokens      int     `json:"max_new_tokens,omitempty"`
	Seed              int     `json:"seed,omitempty"`
}

// ErrorResponse is the structured error body returned by the service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// HTTPClient talks to a voice model served over HTTP.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	language   string
}

// NewHTTPClient creates a client for the service at baseURL (protocol and
// port included, e.g. "http://localhost:8000"). The timeout applies to every
// request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		language: defaultLanguage,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize implements core.Synthesizer.
func (c *HTTPClient) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	return c.GenerateSpeech(ctx, SpeechRequest{
		Text:              req.Text,
		SpeakerRefPath:    req.ReferenceAudio,
		Voice:             req.Voice,
		Language:          c.language,
		Temperature:       req.Params.Temperature,
		TopK:              req.Params.TopK,
		TopP:              req.Params.TopP,
		RepetitionPenalty: req.Params.RepetitionPenalty,
		MaxNewTokens:      req.Params.MaxNewTokens,
		Seed:              req.Params.Seed,
	})
}

// GenerateSpeech posts a generation request and returns the WAV bytes.
//
// Transport failures, non-OK statuses and malformed responses are wrapped with
// core.ErrExternalDependency. When the service answers with a JSON error body,
// its detail and code are carried in the message.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrTextEmpty
	}

	if req.Language == "" {
		req.Language = defaultLanguage
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerateSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request to voice service at %s: %w",
			core.ErrExternalDependency, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", core.ErrExternalDependency, parseErrorResponse(resp))
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf("%w: "+errFmtUnexpectedType, core.ErrExternalDependency, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read audio data: %w", core.ErrExternalDependency, err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrExternalDependency, ErrEmptyAudio)
	}

	return audioData, nil
}

// HealthCheck verifies that the service is running. Call it before long
// experiment runs to fail fast.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check failed for service at %s: %w",
			core.ErrExternalDependency, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check failed with status: %s", core.ErrExternalDependency, resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured error, falling back to the raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, strings.TrimSpace(string(body)))
}
