// Package server exposes the gateway's HTTP surface: engine discovery, voice
// catalogue, health, audio validation, and the two synthesis endpoints.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-gateway/internal/audio"
	"github.com/book-expert/voice-gateway/internal/core"
	"github.com/book-expert/voice-gateway/internal/emotion"
	"github.com/book-expert/voice-gateway/internal/registry"
)

// API paths.
const (
	pathEngines       = "/api/engines"
	pathVoices        = "/api/voices"
	pathHealth        = "/api/health"
	pathEmotions      = "/api/emotions"
	pathTextToSpeech    = "/api/convert/text-to-speech"
	pathVoiceClone      = "/api/convert/voice-clone"
	pathVoiceConversion = "/api/convert/voice-conversion"
	pathValidateAudio   = "/api/validate-audio"
)

// Form field names.
const (
	fieldText             = "text"
	fieldVoice            = "voice"
	fieldEngine           = "engine"
	fieldReferenceAudio   = "reference_audio"
	fieldEmotionMode      = "emotion_mode"
	fieldEmotionVector    = "emotion_vector"
	fieldEmotionAudio     = "emotion_audio"
	fieldEmotionIntensity = "emotion_intensity"
	fieldAudio            = "audio"
	fieldSourceAudio      = "source_audio"
	fieldTargetAudio      = "target_audio"
)

// Emotion mode values.
const (
	emotionModeNone   = "none"
	emotionModeAudio  = "audio"
	emotionModeVector = "vector"
)

// Health statuses.
const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"

	// DefaultMaxUploadBytes caps request bodies when configuration does not.
	DefaultMaxUploadBytes = 50 * 1024 * 1024

	multipartMemoryBytes = 10 * 1024 * 1024
)

// Static errors surfaced as invalid input.
var (
	errNoText           = fmt.Errorf("%w: no text provided", core.ErrInvalidInput)
	errNoVoice          = fmt.Errorf("%w: no voice selected", core.ErrInvalidInput)
	errNoReferenceAudio = fmt.Errorf("%w: no reference audio provided", core.ErrInvalidInput)
	errNoSourceAudio    = fmt.Errorf("%w: no source audio provided", core.ErrInvalidInput)
	errNoTargetAudio    = fmt.Errorf("%w: no target speaker audio provided", core.ErrInvalidInput)
	errNoAudioFile      = fmt.Errorf("%w: no audio file provided", core.ErrInvalidInput)
	errNoEngine         = fmt.Errorf("%w: no engine selected", core.ErrInvalidInput)
	errBadEmotionVector = fmt.Errorf("%w: emotion_vector must be a JSON array of numbers", core.ErrInvalidInput)
	errBadIntensity     = fmt.Errorf("%w: emotion_intensity must be a number", core.ErrInvalidInput)
	errNoEmotionAudio   = fmt.Errorf("%w: no emotion audio provided", core.ErrInvalidInput)
)

// Server wires the registry and dispatcher to HTTP handlers.
type Server struct {
	registry       *registry.Registry
	dispatcher     core.Dispatcher
	defaultEngine  string
	defaultVoice   string
	maxUploadBytes int64
	log            *logger.Logger
}

// New creates a Server. defaultEngine and defaultVoice are used by the
// text-to-speech endpoint when the form omits them (an empty defaultVoice
// makes the voice field mandatory); maxUploadBytes <= 0 falls back to
// DefaultMaxUploadBytes.
func New(
	reg *registry.Registry,
	dispatcher core.Dispatcher,
	defaultEngine, defaultVoice string,
	maxUploadBytes int64,
	log *logger.Logger,
) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}

	return &Server{
		registry:       reg,
		dispatcher:     dispatcher,
		defaultEngine:  defaultEngine,
		defaultVoice:   defaultVoice,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// Handler returns the gateway's HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+pathEngines, s.handleEngines)
	mux.HandleFunc("GET "+pathVoices, s.handleVoices)
	mux.HandleFunc("GET "+pathHealth, s.handleHealth)
	mux.HandleFunc("GET "+pathEmotions, s.handleEmotions)
	mux.HandleFunc("POST "+pathTextToSpeech, s.handleTextToSpeech)
	mux.HandleFunc("POST "+pathVoiceClone, s.handleVoiceClone)
	mux.HandleFunc("POST "+pathVoiceConversion, s.handleVoiceConversion)
	mux.HandleFunc("POST "+pathValidateAudio, s.handleValidateAudio)

	return mux
}

func (s *Server) handleEngines(w http.ResponseWriter, _ *http.Request) {
	engines := s.registry.ListEngines()

	writeJSON(w, http.StatusOK, map[string]any{
		"engines": engines,
		"total":   len(engines),
	})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.registry.Voices(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	grouped := make(map[string][]core.Voice)
	for _, voice := range voices {
		grouped[voice.Locale] = append(grouped[voice.Locale], voice)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"voices":  voices,
		"grouped": grouped,
		"total":   len(voices),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	engines := s.registry.ListEngines()
	availability := make(map[string]bool, len(engines))
	status := statusHealthy

	for _, engine := range engines {
		availability[engine.ID] = engine.Available

		if !engine.Available {
			status = statusDegraded
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"engines": availability,
	})
}

func (s *Server) handleEmotions(w http.ResponseWriter, _ *http.Request) {
	labels := emotion.Labels()

	writeJSON(w, http.StatusOK, map[string]any{
		"emotions": labels,
		"total":    len(labels),
	})
}

// handleTextToSpeech serves engines that take a pre-built voice.
func (s *Server) handleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	err := r.ParseForm()
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", core.ErrInvalidInput, err))

		return
	}

	text := r.PostFormValue(fieldText)
	if text == "" {
		s.writeError(w, errNoText)

		return
	}

	voice := r.PostFormValue(fieldVoice)
	if voice == "" {
		voice = s.defaultVoice
	}

	if voice == "" {
		s.writeError(w, errNoVoice)

		return
	}

	engineID := r.PostFormValue(fieldEngine)
	if engineID == "" {
		engineID = s.defaultEngine
	}

	request := core.SynthesisRequest{
		EngineID:  engineID,
		Text:      text,
		Voice:     &core.VoiceSelector{Name: voice},
		Reference: nil,
		Emotion:   nil,
	}

	s.dispatch(w, r, request)
}

// handleVoiceClone serves voice cloning engines, with optional emotion input.
func (s *Server) handleVoiceClone(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	err := r.ParseMultipartForm(multipartMemoryBytes)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", core.ErrInvalidInput, err))

		return
	}

	text := r.PostFormValue(fieldText)
	if text == "" {
		s.writeError(w, errNoText)

		return
	}

	reference, err := readFilePart(r, fieldReferenceAudio, errNoReferenceAudio)
	if err != nil {
		s.writeError(w, err)

		return
	}

	engineID := r.PostFormValue(fieldEngine)
	if engineID == "" {
		s.writeError(w, errNoEngine)

		return
	}

	emotionSpec, err := parseEmotionForm(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	request := core.SynthesisRequest{
		EngineID:  engineID,
		Text:      text,
		Voice:     nil,
		Reference: reference,
		Emotion:   emotionSpec,
	}

	s.dispatch(w, r, request)
}

// handleVoiceConversion re-voices uploaded audio as a target speaker, for
// engines with the voice conversion capability.
func (s *Server) handleVoiceConversion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	err := r.ParseMultipartForm(multipartMemoryBytes)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", core.ErrInvalidInput, err))

		return
	}

	engineID := r.PostFormValue(fieldEngine)
	if engineID == "" {
		s.writeError(w, errNoEngine)

		return
	}

	source, err := readFilePart(r, fieldSourceAudio, errNoSourceAudio)
	if err != nil {
		s.writeError(w, err)

		return
	}

	target, err := readFilePart(r, fieldTargetAudio, errNoTargetAudio)
	if err != nil {
		s.writeError(w, err)

		return
	}

	result, err := s.dispatcher.ConvertVoice(r.Context(), core.VoiceConversionRequest{
		EngineID: engineID,
		Source:   source,
		Target:   target,
	})
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeAudio(w, result)
}

func (s *Server) handleValidateAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	err := r.ParseMultipartForm(multipartMemoryBytes)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", core.ErrInvalidInput, err))

		return
	}

	sample, err := readFilePart(r, fieldAudio, errNoAudioFile)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, validateAudio(sample.Data))
}

// validateAudio builds the validation verdict for an uploaded sample:
// container, size bounds, and a duration estimate where decoding is cheap.
func validateAudio(data []byte) map[string]any {
	container, err := audio.DetectContainer(data)
	if err != nil {
		return map[string]any{
			"valid": false,
			"error": err.Error(),
		}
	}

	size := len(data)

	if size < audio.MinReferenceBytes {
		return map[string]any{
			"valid": false,
			"error": "audio file too small (minimum 3 seconds recommended)",
		}
	}

	if size > audio.MaxReferenceBytes {
		return map[string]any{
			"valid": false,
			"error": "audio file too large (maximum 50MB)",
		}
	}

	verdict := map[string]any{
		"valid":       true,
		"container":   string(container),
		"size":        size,
		"recommended": size < audio.RecommendedMaxReferenceBytes,
	}

	duration, ok := audio.Duration(data)
	if ok {
		verdict["duration_seconds"] = duration.Seconds()
	}

	return verdict
}

// dispatch runs the request and streams the audio back.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, request core.SynthesisRequest) {
	result, err := s.dispatcher.Dispatch(r.Context(), request)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeAudio(w, result)
}

func (s *Server) writeAudio(w http.ResponseWriter, result core.SynthesisResult) {
	w.Header().Set(headerContentType, result.MIMEType)
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(result.Audio)
	if err != nil {
		s.log.Warn("Failed to stream audio response: %v", err)
	}
}

// readFilePart reads one uploaded file field, returning missingErr when the
// field is absent.
func readFilePart(r *http.Request, field string, missingErr error) (*core.ReferenceAudio, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, missingErr
		}

		return nil, fmt.Errorf("%w: %w", core.ErrInvalidInput, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file %q: %w", field, err)
	}

	return &core.ReferenceAudio{
		Data:     data,
		Filename: header.Filename,
	}, nil
}

// parseEmotionForm decodes the three emotion modes from form fields. Detailed
// validation (vector length, ranges) belongs to the dispatcher's normalizer;
// this only maps the wire shape.
func parseEmotionForm(r *http.Request) (*core.EmotionSpec, error) {
	mode := r.PostFormValue(fieldEmotionMode)

	switch mode {
	case "", emotionModeNone:
		return nil, nil
	case emotionModeVector:
		var vector []float64

		err := json.Unmarshal([]byte(r.PostFormValue(fieldEmotionVector)), &vector)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadEmotionVector, err)
		}

		return &core.EmotionSpec{
			Mode:      core.EmotionVector,
			Audio:     nil,
			Intensity: 0,
			Vector:    vector,
		}, nil
	case emotionModeAudio:
		sample, err := readFilePart(r, fieldEmotionAudio, errNoEmotionAudio)
		if err != nil {
			return nil, err
		}

		intensity := 1.0

		raw := r.PostFormValue(fieldEmotionIntensity)
		if raw != "" {
			intensity, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errBadIntensity, err)
			}
		}

		return &core.EmotionSpec{
			Mode:      core.EmotionAudio,
			Audio:     sample.Data,
			Intensity: intensity,
			Vector:    nil,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown emotion_mode %q", core.ErrInvalidInput, mode)
	}
}

// writeError maps the taxonomy onto HTTP status codes. The body carries a
// stable kind and a human-readable message, never internals.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "synthesis_failed"

	switch {
	case errors.Is(err, core.ErrUnknownEngine):
		status = http.StatusNotFound
		kind = "unknown_engine"
	case errors.Is(err, core.ErrInvalidInput):
		status = http.StatusBadRequest
		kind = "invalid_input"
	case errors.Is(err, core.ErrEngineUnavailable):
		status = http.StatusServiceUnavailable
		kind = "engine_unavailable"
	}

	if status == http.StatusInternalServerError {
		s.log.Error("Synthesis failed: %v", err)
	}

	writeJSON(w, status, map[string]any{
		"kind":  kind,
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(payload)
}
