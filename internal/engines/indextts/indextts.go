// Package indextts implements the Index-TTS2 voice cloning engine adapter.
//
// Index-TTS2 runs locally through its inference binary, which uses file-based
// I/O: the speaker reference, optional emotion reference, and the output WAV
// all pass through temporary files that the adapter cleans up on every exit
// path.
package indextts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-gateway/internal/core"
)

// EngineID is the registry id of this adapter.
const EngineID = "index-tts2"

const (
	// checkpointConfigFile must exist under the checkpoint directory for the
	// model to be usable; the setup tooling downloads it with the weights.
	checkpointConfigFile = "config.yaml"

	filePermissions = 0o600

	mimeTypeWAV = "audio/wav"
)

// ErrBinaryFailed wraps inference binary failures before classification.
var ErrBinaryFailed = errors.New("index-tts inference binary failed")

// Config holds the adapter's deployment parameters.
type Config struct {
	// Binary is the inference executable (looked up on PATH when relative).
	Binary string
	// CheckpointDir contains the downloaded model weights and config.yaml.
	CheckpointDir string
	// UseFP16 enables half-precision inference.
	UseFP16 bool
}

// Adapter is the Index-TTS2 engine adapter.
type Adapter struct {
	config Config
	log    *logger.Logger
}

// New creates an Index-TTS2 adapter.
func New(cfg Config, log *logger.Logger) *Adapter {
	return &Adapter{
		config: cfg,
		log:    log,
	}
}

// Descriptor returns the adapter's static identity.
func (a *Adapter) Descriptor() core.EngineDescriptor {
	return core.EngineDescriptor{
		ID:          EngineID,
		Name:        "Index-TTS2",
		Description: "Advanced voice cloning and emotional synthesis",
		Available:   false,
		Capabilities: []core.Capability{
			core.CapabilityTextToSpeech,
			core.CapabilityVoiceCloning,
			core.CapabilityEmotionControl,
		},
	}
}

// Probe reports whether the model checkpoint is present on disk. The weights
// are downloaded by deployment tooling and may land after the gateway starts.
func (a *Adapter) Probe(_ context.Context) bool {
	configPath := filepath.Join(a.config.CheckpointDir, checkpointConfigFile)

	_, err := os.Stat(configPath)

	return err == nil
}

// Synthesize clones the reference voice and speaks the text, optionally
// conditioned on an emotion reference or an 8-dimensional emotion vector. The
// dispatcher guarantees req carries reference audio and a normalized emotion
// spec.
func (a *Adapter) Synthesize(ctx context.Context, req core.SynthesisRequest) (core.SynthesisResult, error) {
	if !a.Probe(ctx) {
		return core.SynthesisResult{}, fmt.Errorf(
			"%w: checkpoint missing from %s", core.ErrEngineUnavailable, a.config.CheckpointDir,
		)
	}

	workDir, err := os.MkdirTemp("", "index-tts-*")
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to create work directory: %w", err)
	}

	defer func() {
		removeErr := os.RemoveAll(workDir)
		if removeErr != nil {
			a.log.Warn("Failed to remove work directory %q: %v", workDir, removeErr)
		}
	}()

	speakerPath := filepath.Join(workDir, "speaker.audio")

	err = os.WriteFile(speakerPath, req.Reference.Data, filePermissions)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to write speaker reference: %w", err)
	}

	outputPath := filepath.Join(workDir, "output.wav")

	args, err := a.buildArgs(workDir, speakerPath, outputPath, req)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	// #nosec G204 -- the binary path comes from configuration, the arguments
	// from validated request fields and adapter-owned temp paths.
	cmd := exec.CommandContext(ctx, a.config.Binary, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf(
			"%w: %w - output: %s", ErrBinaryFailed, err, string(output),
		)
	}

	audioData, err := os.ReadFile(outputPath)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	return core.SynthesisResult{
		Audio:    audioData,
		MIMEType: mimeTypeWAV,
	}, nil
}

// buildArgs assembles the inference binary's command line, materializing the
// emotion audio reference as a file when that mode is selected.
func (a *Adapter) buildArgs(
	workDir, speakerPath, outputPath string,
	req core.SynthesisRequest,
) ([]string, error) {
	args := []string{
		"--config", filepath.Join(a.config.CheckpointDir, checkpointConfigFile),
		"--model-dir", a.config.CheckpointDir,
		"--speaker", speakerPath,
		"--text", req.Text,
		"--output", outputPath,
	}

	if a.config.UseFP16 {
		args = append(args, "--fp16")
	}

	if req.Emotion == nil {
		return args, nil
	}

	switch req.Emotion.Mode {
	case core.EmotionAudio:
		emotionPath := filepath.Join(workDir, "emotion.audio")

		err := os.WriteFile(emotionPath, req.Emotion.Audio, filePermissions)
		if err != nil {
			return nil, fmt.Errorf("failed to write emotion reference: %w", err)
		}

		args = append(args,
			"--emo-audio", emotionPath,
			"--emo-alpha", strconv.FormatFloat(req.Emotion.Intensity, 'f', 2, 64),
		)
	case core.EmotionVector:
		components := make([]string, len(req.Emotion.Vector))
		for i, value := range req.Emotion.Vector {
			components[i] = strconv.FormatFloat(value, 'f', -1, 64)
		}

		args = append(args, "--emo-vector", strings.Join(components, ","))
	case core.EmotionNone:
	}

	return args, nil
}
