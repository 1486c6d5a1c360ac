// Package emotion validates and normalizes the optional emotion control input
// used by emotion-capable engines.
package emotion

import (
	"fmt"

	"github.com/book-expert/voice-gateway/internal/core"
)

// Static errors. All of them wrap core.ErrInvalidInput so the dispatcher and
// HTTP layer classify them without special cases.
var (
	ErrVectorLength    = fmt.Errorf("%w: emotion vector must have exactly %d elements", core.ErrInvalidInput, core.EmotionVectorSize)
	ErrIntensityRange  = fmt.Errorf("%w: emotion intensity must be within [0, 1]", core.ErrInvalidInput)
	ErrMissingAudio    = fmt.Errorf("%w: emotion audio reference is empty", core.ErrInvalidInput)
	ErrUnknownMode     = fmt.Errorf("%w: unknown emotion mode", core.ErrInvalidInput)
	ErrEmptyVector     = fmt.Errorf("%w: emotion vector is empty", core.ErrInvalidInput)
	ErrVectorForNone   = fmt.Errorf("%w: emotion fields supplied without an emotion mode", core.ErrInvalidInput)
	ErrVectorComponent = fmt.Errorf("%w: emotion vector component out of range", core.ErrInvalidInput)
)

// Labels returns the fixed-order emotion categories matching the vector
// positions expected by emotion-capable models.
func Labels() []string {
	return []string{
		"Happy",
		"Angry",
		"Sad",
		"Afraid",
		"Disgusted",
		"Melancholic",
		"Surprised",
		"Calm",
	}
}

// Normalize validates spec and returns it in the exact form adapters expect.
// Vectors are checked for length and component range; out-of-range values are
// rejected, never clamped, and no renormalization happens here (a vector
// summing above 1 is the model's business, not the gateway's). Audio reference
// bytes pass through unmodified.
func Normalize(spec *core.EmotionSpec) (*core.EmotionSpec, error) {
	if spec == nil {
		return nil, nil
	}

	switch spec.Mode {
	case core.EmotionNone:
		return normalizeNone(spec)
	case core.EmotionAudio:
		return normalizeAudio(spec)
	case core.EmotionVector:
		return normalizeVector(spec)
	default:
		return nil, ErrUnknownMode
	}
}

func normalizeNone(spec *core.EmotionSpec) (*core.EmotionSpec, error) {
	if len(spec.Audio) > 0 || len(spec.Vector) > 0 {
		return nil, ErrVectorForNone
	}

	return nil, nil
}

func normalizeAudio(spec *core.EmotionSpec) (*core.EmotionSpec, error) {
	if len(spec.Audio) == 0 {
		return nil, ErrMissingAudio
	}

	if spec.Intensity < 0.0 || spec.Intensity > 1.0 {
		return nil, fmt.Errorf("%w: got %g", ErrIntensityRange, spec.Intensity)
	}

	return &core.EmotionSpec{
		Mode:      core.EmotionAudio,
		Audio:     spec.Audio,
		Intensity: spec.Intensity,
		Vector:    nil,
	}, nil
}

func normalizeVector(spec *core.EmotionSpec) (*core.EmotionSpec, error) {
	if len(spec.Vector) == 0 {
		return nil, ErrEmptyVector
	}

	if len(spec.Vector) != core.EmotionVectorSize {
		return nil, fmt.Errorf("%w: got %d", ErrVectorLength, len(spec.Vector))
	}

	for position, value := range spec.Vector {
		if value < 0.0 || value > 1.0 {
			return nil, fmt.Errorf("%w: %s=%g", ErrVectorComponent, Labels()[position], value)
		}
	}

	normalized := make([]float64, core.EmotionVectorSize)
	copy(normalized, spec.Vector)

	return &core.EmotionSpec{
		Mode:      core.EmotionVector,
		Audio:     nil,
		Intensity: 0,
		Vector:    normalized,
	}, nil
}
