// voice-cli is a command-line client for the voice-gateway HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/book-expert/voice-gateway/internal/client"
)

// Flag descriptions.
const (
	flagGatewayDesc   = "Base URL of the voice-gateway (e.g. http://localhost:8080)"
	flagTextDesc      = "Text to convert to speech"
	flagEngineDesc    = "Engine id (edge-tts, index-tts2, coqui-tts)"
	flagVoiceDesc     = "Pre-built voice name (engines without voice cloning)"
	flagReferenceDesc = "Reference audio file for voice cloning engines"
	flagOutputDesc    = "Output file path"
	flagTimeoutDesc   = "Request timeout in seconds"
	flagHealthDesc    = "Check gateway health and exit"
	flagEnginesDesc   = "List registered engines and exit"
)

// Flag names.
const (
	flagGateway   = "gateway"
	flagText      = "text"
	flagEngine    = "engine"
	flagVoice     = "voice"
	flagReference = "reference"
	flagOutput    = "output"
	flagTimeout   = "timeout"
	flagHealth    = "health"
	flagEngines   = "engines"
)

// Defaults.
const (
	defaultGateway        = "http://localhost:8080"
	defaultOutput         = "output.audio"
	defaultTimeoutSeconds = 180

	outputFilePermissions = 0o600
)

// Static errors.
var (
	errTextRequired      = errors.New("--text must be provided")
	errSelectorRequired  = errors.New("either --voice or --reference must be provided")
	errSelectorExclusive = errors.New("cannot specify both --voice and --reference")
	errEngineRequired    = errors.New("--engine must be provided with --reference")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	gateway   string
	text      string
	engine    string
	voice     string
	reference string
	output    string
	timeout   int
	health    bool
	engines   bool
}

func main() {
	err := run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	gateway := client.New(flags.gateway, time.Duration(flags.timeout)*time.Second)
	ctx := context.Background()

	switch {
	case flags.health:
		return handleHealth(ctx, gateway)
	case flags.engines:
		return handleEngines(ctx, gateway)
	default:
		return handleSynthesis(ctx, gateway, flags)
	}
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.gateway, flagGateway, defaultGateway, flagGatewayDesc)
	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.engine, flagEngine, "", flagEngineDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.StringVar(&flags.reference, flagReference, "", flagReferenceDesc)
	flag.StringVar(&flags.output, flagOutput, defaultOutput, flagOutputDesc)
	flag.IntVar(&flags.timeout, flagTimeout, defaultTimeoutSeconds, flagTimeoutDesc)
	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.BoolVar(&flags.engines, flagEngines, false, flagEnginesDesc)
	flag.Parse()

	return flags
}

func handleHealth(ctx context.Context, gateway *client.Client) error {
	err := gateway.Health(ctx)
	if err != nil {
		return fmt.Errorf("gateway is not healthy: %w", err)
	}

	fmt.Println("gateway is healthy")

	return nil
}

func handleEngines(ctx context.Context, gateway *client.Client) error {
	engines, err := gateway.Engines(ctx)
	if err != nil {
		return fmt.Errorf("failed to list engines: %w", err)
	}

	for _, engine := range engines {
		fmt.Printf("%-12s available=%-5t %s\n", engine.ID, engine.Available, engine.Description)
	}

	return nil
}

func handleSynthesis(ctx context.Context, gateway *client.Client, flags appFlags) error {
	err := validateSynthesisFlags(flags)
	if err != nil {
		return err
	}

	audioData, mimeType, err := synthesize(ctx, gateway, flags)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	err = os.WriteFile(flags.output, audioData, outputFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Printf("Generated %s (%d bytes, %s)\n", flags.output, len(audioData), mimeType)

	return nil
}

func validateSynthesisFlags(flags appFlags) error {
	if flags.text == "" {
		return errTextRequired
	}

	if flags.voice == "" && flags.reference == "" {
		return errSelectorRequired
	}

	if flags.voice != "" && flags.reference != "" {
		return errSelectorExclusive
	}

	if flags.reference != "" && flags.engine == "" {
		return errEngineRequired
	}

	return nil
}

func synthesize(ctx context.Context, gateway *client.Client, flags appFlags) ([]byte, string, error) {
	if flags.voice != "" {
		return gateway.TextToSpeech(ctx, flags.engine, flags.text, flags.voice)
	}

	referenceData, err := os.ReadFile(flags.reference)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read reference audio: %w", err)
	}

	return gateway.VoiceClone(ctx, flags.engine, flags.text, referenceData, flags.reference)
}
