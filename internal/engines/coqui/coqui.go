// Package coqui implements the Coqui XTTS-v2 voice cloning engine adapter.
//
// The XTTS model runs in a sidecar HTTP service; the adapter sends the text
// and the speaker reference as a multipart request and receives WAV bytes.
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/book-expert/voice-gateway/internal/core"
)

// API endpoints and paths.
const (
	apiClone   = "/v1/clone"
	apiConvert = "/v1/convert"
	apiHealth  = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeWAV    = "audio/wav"
)

// Multipart field names the sidecar expects.
const (
	fieldText     = "text"
	fieldLanguage = "language"
	fieldSpeaker  = "speaker_wav"
	fieldSource   = "source_wav"
	fieldTarget   = "target_wav"
)

// ProbeTimeout bounds the sidecar health probe.
const ProbeTimeout = 10 * time.Second

// EngineID is the registry id of this adapter.
const EngineID = "coqui-tts"

// DefaultLanguage is used when the deployment does not pin one.
const DefaultLanguage = "en"

// Static errors.
var (
	ErrEmptyAudio     = errors.New("received empty audio data")
	ErrBadContentType = errors.New("unexpected content type")
)

// errorResponse is the sidecar's structured error body.
type errorResponse struct {
	Detail string `json:"detail"`
}

// Adapter is the Coqui XTTS engine adapter.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	language   string
}

// New creates an adapter for the sidecar at baseURL. An empty language falls
// back to DefaultLanguage.
func New(baseURL, language string, timeout time.Duration) *Adapter {
	if language == "" {
		language = DefaultLanguage
	}

	return &Adapter{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  baseURL,
		language: language,
	}
}

// Descriptor returns the adapter's static identity.
func (a *Adapter) Descriptor() core.EngineDescriptor {
	return core.EngineDescriptor{
		ID:          EngineID,
		Name:        "Coqui TTS",
		Description: "Multilingual voice cloning (XTTS-v2)",
		Available:   false,
		Capabilities: []core.Capability{
			core.CapabilityTextToSpeech,
			core.CapabilityVoiceCloning,
			core.CapabilityVoiceConversion,
		},
	}
}

// Probe checks the sidecar's health endpoint. The sidecar answers non-OK while
// the XTTS weights are still downloading.
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

// Synthesize clones the reference voice through the sidecar and returns WAV
// audio. The dispatcher guarantees req carries reference audio.
func (a *Adapter) Synthesize(ctx context.Context, req core.SynthesisRequest) (core.SynthesisResult, error) {
	body, contentType, err := buildCloneForm(req, a.language)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	return a.postAudio(ctx, apiClone, body, contentType)
}

// ConvertVoice re-voices the source audio as the target speaker through the
// sidecar's conversion endpoint. No text is involved; the dispatcher
// guarantees both samples are present and in supported containers.
func (a *Adapter) ConvertVoice(ctx context.Context, req core.VoiceConversionRequest) (core.SynthesisResult, error) {
	body, contentType, err := buildConvertForm(req)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	return a.postAudio(ctx, apiConvert, body, contentType)
}

// postAudio sends a multipart request to the sidecar and validates the WAV
// response, normalizing the sidecar's failure modes.
func (a *Adapter) postAudio(
	ctx context.Context,
	path string,
	body *bytes.Buffer,
	contentType string,
) (core.SynthesisResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, body)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentType)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to reach coqui sidecar at %s: %w", a.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return core.SynthesisResult{}, fmt.Errorf("%w: coqui sidecar reported unavailable", core.ErrEngineUnavailable)
	}

	if resp.StatusCode != http.StatusOK {
		return core.SynthesisResult{}, parseErrorResponse(resp)
	}

	responseType := resp.Header.Get(headerContentType)
	if responseType != contentTypeWAV {
		return core.SynthesisResult{}, fmt.Errorf("%w: expected %s, got %s", ErrBadContentType, contentTypeWAV, responseType)
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
		MIMEType: contentTypeWAV,
	}, nil
}

// buildCloneForm assembles the multipart body for the clone endpoint.
func buildCloneForm(req core.SynthesisRequest, language string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	err := writer.WriteField(fieldText, req.Text)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write text field: %w", err)
	}

	err = writer.WriteField(fieldLanguage, language)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write language field: %w", err)
	}

	filename := req.Reference.Filename
	if filename == "" {
		filename = "speaker.wav"
	}

	part, err := writer.CreateFormFile(fieldSpeaker, filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create speaker part: %w", err)
	}

	_, err = part.Write(req.Reference.Data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write speaker audio: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

// buildConvertForm assembles the multipart body for the conversion endpoint.
func buildConvertForm(req core.VoiceConversionRequest) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	err := writeAudioPart(writer, fieldSource, req.Source, "source.wav")
	if err != nil {
		return nil, "", err
	}

	err = writeAudioPart(writer, fieldTarget, req.Target, "target.wav")
	if err != nil {
		return nil, "", err
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

func writeAudioPart(writer *multipart.Writer, field string, sample *core.ReferenceAudio, fallbackName string) error {
	filename := sample.Filename
	if filename == "" {
		filename = fallbackName
	}

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}

	_, err = part.Write(sample.Data)
	if err != nil {
		return fmt.Errorf("failed to write %s audio: %w", field, err)
	}

	return nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// sidecar, falling back to the raw body so diagnostics are preserved.
func parseErrorResponse(resp *http.Response) error {
	var errorResp errorResponse

	err := json.NewDecoder(resp.Body).Decode(&errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf("coqui sidecar error (%s): %s", resp.Status, errorResp.Detail)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("coqui sidecar returned non-OK status: %s, body: %s", resp.Status, string(body))
}
