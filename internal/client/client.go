// Package client provides a small HTTP client for the voice-gateway API, used
// by the command-line tool.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/voice-gateway/internal/core"
)

// API endpoints and paths.
const (
	apiEngines      = "/api/engines"
	apiHealth       = "/api/health"
	apiTextToSpeech = "/api/convert/text-to-speech"
	apiVoiceClone   = "/api/convert/voice-clone"
)

const (
	headerContentType = "Content-Type"
	contentTypeForm   = "application/x-www-form-urlencoded"
)

// ErrEmptyAudio indicates the gateway returned no audio bytes.
var ErrEmptyAudio = errors.New("received empty audio data")

// errorResponse mirrors the gateway's JSON error body.
type errorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// enginesResponse mirrors the gateway's engine listing body.
type enginesResponse struct {
	Engines []core.EngineDescriptor `json:"engines"`
	Total   int                     `json:"total"`
}

// Client calls the voice-gateway HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client for the gateway at baseURL (protocol and port
// included, e.g. "http://localhost:8080").
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

// Health verifies the gateway is running. A degraded gateway (some engines
// unavailable) still counts as healthy here; per-engine state comes from
// Engines.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for gateway at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// Engines fetches the registered engine descriptors in priority order.
func (c *Client) Engines(ctx context.Context) ([]core.EngineDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiEngines, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create engines request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list engines from %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var payload enginesResponse

	err = json.NewDecoder(resp.Body).Decode(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode engine list: %w", err)
	}

	return payload.Engines, nil
}

// TextToSpeech synthesizes text with a pre-built voice and returns the audio
// bytes plus their MIME type.
func (c *Client) TextToSpeech(ctx context.Context, engineID, text, voice string) ([]byte, string, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("voice", voice)

	if engineID != "" {
		form.Set("engine", engineID)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiTextToSpeech,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create synthesis request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeForm)

	return c.doAudio(req)
}

// VoiceClone synthesizes text in the voice of the supplied reference audio.
func (c *Client) VoiceClone(
	ctx context.Context,
	engineID, text string,
	referenceAudio []byte,
	referenceFilename string,
) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	err := writer.WriteField("text", text)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write text field: %w", err)
	}

	err = writer.WriteField("engine", engineID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write engine field: %w", err)
	}

	part, err := writer.CreateFormFile("reference_audio", referenceFilename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create reference part: %w", err)
	}

	_, err = part.Write(referenceAudio)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write reference audio: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiVoiceClone, body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create clone request: %w", err)
	}

	req.Header.Set(headerContentType, writer.FormDataContentType())

	return c.doAudio(req)
}

// doAudio executes a synthesis request and validates the audio response.
func (c *Client) doAudio(req *http.Request) ([]byte, string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to reach gateway at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", c.parseErrorResponse(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, "", ErrEmptyAudio
	}

	return audioData, resp.Header.Get(headerContentType), nil
}

// parseErrorResponse attempts to decode the gateway's structured JSON error,
// falling back to the raw body so diagnostics are preserved.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errorResp errorResponse

	err := json.NewDecoder(resp.Body).Decode(&errorResp)
	if err == nil && errorResp.Error != "" {
		return fmt.Errorf("gateway error (%s): %s (kind: %s)", resp.Status, errorResp.Error, errorResp.Kind)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("gateway returned non-OK status: %s, body: %s", resp.Status, string(body))
}
