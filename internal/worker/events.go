package worker

import "time"

// Emotion modes accepted in job payloads.
const (
	EmotionModeNone   = "none"
	EmotionModeAudio  = "audio"
	EmotionModeVector = "vector"
)

// SynthesisJobEvent is the payload consumed from the synthesis job subject.
// Blobs travel through the object store; the event carries their keys.
type SynthesisJobEvent struct {
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`

	EngineID string `json:"engine_id"`
	// TextKey names the object holding the text to synthesize.
	TextKey string `json:"text_key"`
	// Voice selects a pre-built voice; used by engines without voice cloning.
	Voice string `json:"voice,omitempty"`
	// ReferenceKey names the speaker reference audio object; used by voice
	// cloning engines.
	ReferenceKey string `json:"reference_key,omitempty"`

	EmotionMode string `json:"emotion_mode,omitempty"`
	// EmotionKey names the emotion reference audio object (mode "audio").
	EmotionKey       string    `json:"emotion_key,omitempty"`
	EmotionIntensity float64   `json:"emotion_intensity,omitempty"`
	EmotionVector    []float64 `json:"emotion_vector,omitempty"`

	// CleanupInputs asks the worker to delete consumed input objects after a
	// successful synthesis.
	CleanupInputs bool `json:"cleanup_inputs,omitempty"`
}

// SynthesisCompletedEvent is the reply published when a job finishes. Exactly
// one of AudioKey and Error is meaningful.
type SynthesisCompletedEvent struct {
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`

	EngineID string `json:"engine_id"`
	AudioKey string `json:"audio_key,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`

	// ErrorKind is one of the stable taxonomy names when the job failed:
	// unknown_engine, engine_unavailable, invalid_input, synthesis_failed.
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}
