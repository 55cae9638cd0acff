package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/voiceprep/internal/core"
)

// Error messages.
const (
	errFailedToOpenFile         = "failed to open audio file: %w"
	errFailedToCreateFormFile   = "failed to create form file: %w"
	errFailedToCopyFileData     = "failed to copy file data: %w"
	errFailedToWriteField       = "failed to write %s field: %w"
	errFailedToCloseWriter      = "failed to close multipart writer: %w"
	errFailedToCreateRequest    = "failed to create request: %w"
	errFailedToMakeRequest      = "%w: transcription request failed: %w"
	errAPIRequestFailed         = "%w: transcription API returned status %d: %s"
	errFailedToDecodeResponse   = "%w: failed to decode transcription response: %w"
	errOpenAIAPIKeyNotSet       = "OPENAI_API_KEY environment variable not set"
	defaultWhisperURL           = "https://api.openai.com/v1/audio/transcriptions"
	defaultWhisperModel         = "whisper-1"
	defaultTranscriptionTimeout = 60 * time.Second
)

// HTTP headers.
const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
)

// Form field names.
const (
	formFieldFile           = "file"
	formFieldModel          = "model"
	formFieldLanguage       = "language"
	formFieldResponseFormat = "response_format"
	responseFormatJSON      = "json"
)

// EnvOpenAIAPIKey is consulted when no key is configured.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// ErrAPIKeyMissing is returned when no Whisper API key is available.
var ErrAPIKeyMissing = errors.New(errOpenAIAPIKeyNotSet)

// Transcriber turns an audio file into text.
type Transcriber interface {
	TranscribeFile(ctx context.Context, audioPath string) (string, error)
}

// WhisperClient calls an OpenAI-compatible transcription endpoint.
type WhisperClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	language   string
}

type whisperResponse struct {
	Text string `json:"text"`
}

// WhisperOptions configures a WhisperClient. Empty fields fall back to defaults
// and the OPENAI_API_KEY environment variable.
type WhisperOptions struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// NewWhisperClient creates a new Whisper API client.
func NewWhisperClient(opts WhisperOptions) (*WhisperClient, error) {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv(EnvOpenAIAPIKey)
	}

	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrMissingPrecondition, ErrAPIKeyMissing)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = defaultWhisperURL
	}

	if opts.Model == "" {
		opts.Model = defaultWhisperModel
	}

	if opts.Timeout == 0 {
		opts.Timeout = defaultTranscriptionTimeout
	}

	return &WhisperClient{
		httpClient: &http.Client{Timeout: opts.Timeout},
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		language:   opts.Language,
	}, nil
}

// TranscribeFile uploads audioPath and returns the transcription text.
func (c *WhisperClient) TranscribeFile(ctx context.Context, audioPath string) (string, error) {
	body, contentType, err := c.buildForm(audioPath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return "", fmt.Errorf(errFailedToCreateRequest, err)
	}

	req.Header.Set(headerAuthorization, "Bearer "+c.apiKey)
	req.Header.Set(headerContentType, contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf(errFailedToMakeRequest, core.ErrExternalDependency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)

		return "", fmt.Errorf(errAPIRequestFailed, core.ErrExternalDependency, resp.StatusCode, string(respBody))
	}

	var decoded whisperResponse

	err = json.NewDecoder(resp.Body).Decode(&decoded)
	if err != nil {
		return "", fmt.Errorf(errFailedToDecodeResponse, core.ErrExternalDependency, err)
	}

	return decoded.Text, nil
}

func (c *WhisperClient) buildForm(audioPath string) (*bytes.Buffer, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToOpenFile, err)
	}
	defer file.Close()

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(formFieldFile, filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToCreateFormFile, err)
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToCopyFileData, err)
	}

	fields := [][2]string{
		{formFieldModel, c.model},
		{formFieldResponseFormat, responseFormatJSON},
	}
	if c.language != "" {
		fields = append(fields, [2]string{formFieldLanguage, c.language})
	}

	for _, field := range fields {
		err = writer.WriteField(field[0], field[1])
		if err != nil {
			return nil, "", fmt.Errorf(errFailedToWriteField, field[0], err)
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToCloseWriter, err)
	}

	return &buf, writer.FormDataContentType(), nil
}
