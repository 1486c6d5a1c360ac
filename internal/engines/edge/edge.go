// Package edge implements the cloud neural TTS engine adapter.
//
// The adapter speaks to an edge-tts bridge service over HTTP: a JSON synthesis
// request comes back as MP3 bytes. Voice cloning and emotion control are not
// supported; callers select one of the service's pre-built neural voices.
package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/book-expert/voice-gateway/internal/core"
)

// API endpoints and paths.
const (
	apiSpeak  = "/v1/speak"
	apiVoices = "/v1/voices"
	apiHealth = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMP3    = "audio/mpeg"
)

// ProbeTimeout bounds the health probe so a wedged bridge cannot stall
// registration or dispatch.
const ProbeTimeout = 10 * time.Second

// EngineID is the registry id of this adapter.
const EngineID = "edge-tts"

// Static errors.
var (
	ErrEmptyAudio     = errors.New("received empty audio data")
	ErrBadContentType = errors.New("unexpected content type")
)

// speakRequest is the JSON payload for the bridge's synthesis endpoint.
type speakRequest struct {
	// Text is the input to synthesize.
	Text string `json:"text"`

	// Voice names one of the bridge's neural voices (e.g. "en-US-AriaNeural").
	Voice string `json:"voice"`
}

// errorResponse is the bridge's structured error body.
type errorResponse struct {
	Detail string `json:"detail"`
}

// voicesResponse is the bridge's voice catalogue payload.
type voicesResponse struct {
	Voices []core.Voice `json:"voices"`
}

// Adapter is the edge-tts engine adapter.
type Adapter struct {
	httpClient *http.Client
	baseURL    string

	voicesMu sync.Mutex
	voices   []core.Voice
}

// New creates an adapter for the bridge at baseURL. The timeout applies to
// synthesis requests; probes use the shorter ProbeTimeout.
func New(baseURL string, timeout time.Duration) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  baseURL,
		voicesMu: sync.Mutex{},
		voices:   nil,
	}
}

// Descriptor returns the adapter's static identity.
func (a *Adapter) Descriptor() core.EngineDescriptor {
	return core.EngineDescriptor{
		ID:          EngineID,
		Name:        "Edge-TTS",
		Description: "300+ pre-built neural voices",
		Available:   false,
		Capabilities: []core.Capability{
			core.CapabilityTextToSpeech,
		},
	}
}

// Probe checks the bridge's health endpoint.
func (a *Adapter) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, a.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return false
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Synthesize sends the request to the bridge and returns the MP3 audio.
// The dispatcher guarantees req carries a voice selector and no emotion spec.
func (a *Adapter) Synthesize(ctx context.Context, req core.SynthesisRequest) (core.SynthesisResult, error) {
	payload := speakRequest{
		Text:  req.Text,
		Voice: req.Voice.Name,
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		a.baseURL+apiSpeak,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMP3)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to reach edge-tts bridge at %s: %w", a.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return core.SynthesisResult{}, fmt.Errorf("%w: edge-tts bridge reported unavailable", core.ErrEngineUnavailable)
	}

	if resp.StatusCode != http.StatusOK {
		return core.SynthesisResult{}, a.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeMP3 {
		return core.SynthesisResult{}, fmt.Errorf("%w: expected %s, got %s", ErrBadContentType, contentTypeMP3, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return core.SynthesisResult{}, ErrEmptyAudio
	}

	return core.SynthesisResult{
		Audio:    audioData,
		MIMEType: contentTypeMP3,
	}, nil
}

// Voices returns the bridge's neural voice catalogue. A successful fetch is
// cached for the process lifetime; failures are not, so a bridge that comes up
// late still gets its catalogue served.
func (a *Adapter) Voices(ctx context.Context) ([]core.Voice, error) {
	a.voicesMu.Lock()
	defer a.voicesMu.Unlock()

	if a.voices != nil {
		return a.voices, nil
	}

	voices, err := a.fetchVoices(ctx)
	if err != nil {
		return nil, err
	}

	a.voices = voices

	return voices, nil
}

func (a *Adapter) fetchVoices(ctx context.Context) ([]core.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+apiVoices, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create voices request: %w", err)
	}

	req.Header.Set(headerAccept, contentTypeJSON)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch voice catalogue from %s: %w", a.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice catalogue request failed with status: %s", resp.Status)
	}

	var payload voicesResponse

	err = json.NewDecoder(resp.Body).Decode(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode voice catalogue: %w", err)
	}

	return payload.Voices, nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// bridge, falling back to the raw body so diagnostics are preserved.
func (a *Adapter) parseErrorResponse(resp *http.Response) error {
	var errorResp errorResponse

	err := json.NewDecoder(resp.Body).Decode(&errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf("edge-tts bridge error (%s): %s", resp.Status, errorResp.Detail)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("edge-tts bridge returned non-OK status: %s, body: %s", resp.Status, string(body))
}
