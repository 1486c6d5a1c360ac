// Package dispatch routes validated synthesis requests to the matching engine
// adapter and normalizes every failure into the shared error taxonomy.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-gateway/internal/audio"
	"github.com/book-expert/voice-gateway/internal/core"
	"github.com/book-expert/voice-gateway/internal/emotion"
	"github.com/book-expert/voice-gateway/internal/registry"
)

// DefaultTimeout bounds a single synthesize call. Local model inference on CPU
// can take tens of seconds; anything beyond this is treated as a hang.
const DefaultTimeout = 120 * time.Second

// Static errors, all classified under core.ErrInvalidInput.
var (
	ErrTextEmpty           = fmt.Errorf("%w: text cannot be empty", core.ErrInvalidInput)
	ErrTextTooLong         = fmt.Errorf("%w: text exceeds %d characters", core.ErrInvalidInput, core.MaxTextLength)
	ErrVoiceAndReference   = fmt.Errorf("%w: request supplies both a voice and reference audio", core.ErrInvalidInput)
	ErrNeitherVoiceNorRef  = fmt.Errorf("%w: request supplies neither a voice nor reference audio", core.ErrInvalidInput)
	ErrVoiceNameEmpty      = fmt.Errorf("%w: voice name cannot be empty", core.ErrInvalidInput)
	ErrReferenceNotWanted  = fmt.Errorf("%w: engine takes a pre-built voice, not reference audio", core.ErrInvalidInput)
	ErrVoiceNotWanted      = fmt.Errorf("%w: engine requires reference audio for voice cloning", core.ErrInvalidInput)
	ErrEmotionNotWanted    = fmt.Errorf("%w: engine does not support emotion control", core.ErrInvalidInput)
	ErrBadReferenceAudio   = fmt.Errorf("%w: reference audio is not a supported container (wav, mp3, ogg, flac, m4a)", core.ErrInvalidInput)
	ErrConversionNotWanted = fmt.Errorf("%w: engine does not support voice conversion", core.ErrInvalidInput)
	ErrNoSourceAudio       = fmt.Errorf("%w: voice conversion requires source audio", core.ErrInvalidInput)
	ErrNoTargetAudio       = fmt.Errorf("%w: voice conversion requires target speaker audio", core.ErrInvalidInput)
	ErrBadConversionAudio  = fmt.Errorf("%w: conversion audio is not a supported container (wav, mp3, ogg, flac, m4a)", core.ErrInvalidInput)
)

// Dispatcher validates a SynthesisRequest against the target engine's
// capabilities and forwards it to the adapter. Centralizing validation here
// means adapters only ever see well-formed, capability-compatible requests.
type Dispatcher struct {
	registry *registry.Registry
	timeout  time.Duration
	log      *logger.Logger
}

// New creates a dispatcher. A non-positive timeout falls back to
// DefaultTimeout.
func New(reg *registry.Registry, timeout time.Duration, log *logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Dispatcher{
		registry: reg,
		timeout:  timeout,
		log:      log,
	}
}

// Dispatch runs one synthesis request end to end: engine lookup, availability
// check (with a lazy re-probe for engines that were unavailable), input
// validation, emotion normalization, and exactly one adapter call under a
// bounded timeout. It never retries; synthesis is not guaranteed idempotent in
// side effects such as quota consumption.
func (d *Dispatcher) Dispatch(ctx context.Context, req core.SynthesisRequest) (core.SynthesisResult, error) {
	adapter, err := d.registry.Adapter(req.EngineID)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	err = d.ensureAvailable(ctx, req.EngineID)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	descriptor := adapter.Descriptor()

	err = validateRequest(req, descriptor)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	normalized, err := emotion.Normalize(req.Emotion)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	req.Emotion = normalized

	return d.invoke(ctx, req.EngineID, func(callCtx context.Context) (core.SynthesisResult, error) {
		return adapter.Synthesize(callCtx, req)
	})
}

// ConvertVoice re-voices existing audio as a target speaker through an engine
// that supports voice conversion. Same contract as Dispatch: availability
// check, validation, and exactly one adapter call under a bounded timeout.
func (d *Dispatcher) ConvertVoice(
	ctx context.Context,
	req core.VoiceConversionRequest,
) (core.SynthesisResult, error) {
	adapter, err := d.registry.Adapter(req.EngineID)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	err = d.ensureAvailable(ctx, req.EngineID)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	converter, ok := adapter.(core.VoiceConverter)
	if !ok || !adapter.Descriptor().HasCapability(core.CapabilityVoiceConversion) {
		return core.SynthesisResult{}, fmt.Errorf("%w: %q", ErrConversionNotWanted, req.EngineID)
	}

	err = validateConversion(req)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	return d.invoke(ctx, req.EngineID, func(callCtx context.Context) (core.SynthesisResult, error) {
		return converter.ConvertVoice(callCtx, req)
	})
}

// ensureAvailable checks liveness, re-probing once when the engine was marked
// unavailable (model assets may have finished loading since startup).
func (d *Dispatcher) ensureAvailable(ctx context.Context, engineID string) error {
	alive, err := d.registry.IsAvailable(engineID)
	if err != nil {
		return err
	}

	if !alive {
		alive, err = d.registry.Refresh(ctx, engineID)
		if err != nil {
			return err
		}
	}

	if !alive {
		return fmt.Errorf("%w: %q", core.ErrEngineUnavailable, engineID)
	}

	return nil
}

// invoke performs the single adapter call and normalizes its error shape. No
// raw adapter error crosses the dispatcher boundary unclassified.
func (d *Dispatcher) invoke(
	ctx context.Context,
	engineID string,
	call func(context.Context) (core.SynthesisResult, error),
) (core.SynthesisResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	started := time.Now()

	result, err := call(callCtx)
	if err != nil {
		if errors.Is(err, core.ErrEngineUnavailable) {
			// Assets disappeared between probe and the adapter call.
			d.registry.MarkUnavailable(engineID)

			return core.SynthesisResult{}, err
		}

		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return core.SynthesisResult{}, fmt.Errorf(
				"%w: engine %q timed out after %s", core.ErrSynthesisFailed, engineID, d.timeout,
			)
		}

		if errors.Is(err, core.ErrSynthesisFailed) || errors.Is(err, core.ErrInvalidInput) {
			return core.SynthesisResult{}, err
		}

		return core.SynthesisResult{}, fmt.Errorf("%w: %w", core.ErrSynthesisFailed, err)
	}

	d.log.Info(
		"Engine %q produced %d bytes (%s) in %s",
		engineID, len(result.Audio), result.MIMEType, time.Since(started).Round(time.Millisecond),
	)

	return result, nil
}

// validateRequest enforces the dispatch contract: text bounds, the symmetric
// voice/reference capability rules, the reference container invariant, and the
// emotion capability gate.
func validateRequest(req core.SynthesisRequest, descriptor core.EngineDescriptor) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrTextEmpty
	}

	// The cap is in characters, not bytes: multibyte text must not be
	// penalized for its encoding.
	if textLength := utf8.RuneCountInString(req.Text); textLength > core.MaxTextLength {
		return fmt.Errorf("%w: got %d", ErrTextTooLong, textLength)
	}

	if req.Voice != nil && req.Reference != nil {
		return ErrVoiceAndReference
	}

	if req.Voice == nil && req.Reference == nil {
		return ErrNeitherVoiceNorRef
	}

	if req.Voice != nil && strings.TrimSpace(req.Voice.Name) == "" {
		return ErrVoiceNameEmpty
	}

	cloning := descriptor.HasCapability(core.CapabilityVoiceCloning)

	if req.Voice != nil && cloning {
		return fmt.Errorf("%w: %q", ErrVoiceNotWanted, descriptor.ID)
	}

	if req.Reference != nil {
		if !cloning {
			return fmt.Errorf("%w: %q", ErrReferenceNotWanted, descriptor.ID)
		}

		_, err := audio.DetectContainer(req.Reference.Data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadReferenceAudio, err)
		}
	}

	if req.Emotion != nil && req.Emotion.Mode != core.EmotionNone &&
		!descriptor.HasCapability(core.CapabilityEmotionControl) {
		return fmt.Errorf("%w: %q", ErrEmotionNotWanted, descriptor.ID)
	}

	return nil
}

// validateConversion enforces the conversion contract: source and target
// audio both present and in supported containers.
func validateConversion(req core.VoiceConversionRequest) error {
	if req.Source == nil || len(req.Source.Data) == 0 {
		return ErrNoSourceAudio
	}

	if req.Target == nil || len(req.Target.Data) == 0 {
		return ErrNoTargetAudio
	}

	for _, sample := range []*core.ReferenceAudio{req.Source, req.Target} {
		_, err := audio.DetectContainer(sample.Data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadConversionAudio, err)
		}
	}

	return nil
}
