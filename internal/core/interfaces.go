// Package core defines the shared contracts and domain types for the voice-gateway.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// EngineAdapter bridges one external synthesis backend behind a uniform contract.
//
// Probe must be bounded-time; it is called by the registry at startup and again
// on dispatch when the engine was previously unavailable (model assets may
// finish loading after the process starts). Synthesize may block for seconds to
// tens of seconds and must honor ctx cancellation. Adapters own cleanup of any
// temporary resources on every exit path.
type EngineAdapter interface {
	// Descriptor returns the adapter's static identity and capabilities.
	// The Available field is ignored; liveness is owned by the registry.
	Descriptor() EngineDescriptor
	Probe(ctx context.Context) bool
	Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResult, error)
}

// VoiceLister is implemented by adapters that expose a voice catalogue.
type VoiceLister interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// VoiceConverter is implemented by adapters that can re-voice existing audio
// as a target speaker. Advertised through CapabilityVoiceConversion.
type VoiceConverter interface {
	ConvertVoice(ctx context.Context, req VoiceConversionRequest) (SynthesisResult, error)
}

// Dispatcher is the single entry point for synthesis and conversion requests.
// Implementations validate the request against the target engine's
// capabilities and invoke at most one adapter operation per call.
type Dispatcher interface {
	Dispatch(ctx context.Context, req SynthesisRequest) (SynthesisResult, error)
	ConvertVoice(ctx context.Context, req VoiceConversionRequest) (SynthesisResult, error)
}
