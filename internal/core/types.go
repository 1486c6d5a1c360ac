package core

// Capability names a feature an engine may or may not support.
type Capability string

const (
	// CapabilityTextToSpeech marks engines that synthesize from plain text.
	CapabilityTextToSpeech Capability = "text_to_speech"
	// CapabilityVoiceCloning marks engines that condition on reference audio.
	CapabilityVoiceCloning Capability = "voice_cloning"
	// CapabilityEmotionControl marks engines that accept emotion conditioning.
	CapabilityEmotionControl Capability = "emotion_control"
	// CapabilityVoiceConversion marks engines that can re-voice existing audio
	// as a target speaker without synthesizing from text.
	CapabilityVoiceConversion Capability = "voice_conversion"
)

// EngineDescriptor describes one registered engine. Owned by the registry;
// read-only to every other component.
type EngineDescriptor struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Available    bool         `json:"available"`
	Capabilities []Capability `json:"capabilities"`
}

// HasCapability reports whether the descriptor advertises the capability.
func (d EngineDescriptor) HasCapability(capability Capability) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}

	return false
}

// VoiceSelector identifies a pre-built voice. Valid only for engines without
// the voice cloning capability.
type VoiceSelector struct {
	Name string
}

// ReferenceAudio is a user-supplied audio sample used to condition voice
// cloning. Valid only for engines advertising voice cloning. The bytes must
// decode as one of the supported audio containers (WAV, MP3, OGG, FLAC, M4A).
type ReferenceAudio struct {
	Data     []byte
	Filename string
}

// EmotionMode selects which variant of EmotionSpec is populated.
type EmotionMode int

const (
	// EmotionNone requests synthesis without emotion conditioning.
	EmotionNone EmotionMode = iota
	// EmotionAudio conditions emotion on a reference audio sample.
	EmotionAudio
	// EmotionVector conditions emotion on a manual 8-dimensional vector.
	EmotionVector
)

// EmotionVectorSize is the fixed length of a manual emotion vector.
const EmotionVectorSize = 8

// EmotionSpec is the optional emotion control input. Exactly the fields for
// the selected mode are meaningful: Audio and Intensity for EmotionAudio,
// Vector for EmotionVector, none for EmotionNone.
type EmotionSpec struct {
	Mode      EmotionMode
	Audio     []byte
	Intensity float64
	Vector    []float64
}

// SynthesisRequest is constructed per call and never persisted. Exactly one of
// Voice and Reference must be set; Emotion is optional.
type SynthesisRequest struct {
	EngineID  string
	Text      string
	Voice     *VoiceSelector
	Reference *ReferenceAudio
	Emotion   *EmotionSpec
}

// VoiceConversionRequest asks an engine to re-speak existing audio in the
// voice of a target speaker. No text or emotion input is involved.
type VoiceConversionRequest struct {
	EngineID string
	// Source is the audio whose speech content is kept.
	Source *ReferenceAudio
	// Target is the speaker whose voice the source is converted into.
	Target *ReferenceAudio
}

// SynthesisResult carries the synthesized audio and its container MIME type.
// Ephemeral: returned to the caller, never cached.
type SynthesisResult struct {
	Audio    []byte
	MIMEType string
}

// Voice is one entry of an engine's voice catalogue.
type Voice struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Gender      string `json:"gender"`
	Locale      string `json:"locale"`
}

// MaxTextLength is the upper bound on synthesis text, in characters.
const MaxTextLength = 5000
