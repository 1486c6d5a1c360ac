// Package config provides the configuration structure for the voice-gateway.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// HTTPConfig holds the configuration for the gateway HTTP server.
type HTTPConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// NATSConfig holds the configuration for the asynchronous job path.
type NATSConfig struct {
	Enabled                bool   `toml:"enabled"`
	URL                    string `toml:"url"`
	SynthesisJobSubject    string `toml:"synthesis_job_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// DispatchConfig holds the dispatcher parameters.
type DispatchConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// EdgeEngineConfig configures the cloud edge-tts adapter.
type EdgeEngineConfig struct {
	Enabled        bool   `toml:"enabled"`
	ServiceURL     string `toml:"service_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DefaultVoice   string `toml:"default_voice"`
}

// IndexTTSEngineConfig configures the local Index-TTS2 adapter.
type IndexTTSEngineConfig struct {
	Enabled       bool   `toml:"enabled"`
	Binary        string `toml:"binary"`
	CheckpointDir string `toml:"checkpoint_dir"`
	UseFP16       bool   `toml:"use_fp16"`
}

// CoquiEngineConfig configures the Coqui XTTS sidecar adapter.
type CoquiEngineConfig struct {
	Enabled        bool   `toml:"enabled"`
	ServiceURL     string `toml:"service_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Language       string `toml:"language"`
}

// EnginesConfig groups the per-engine sections. Section order here matches the
// fixed registration order: cloud engine first, local cloning engines after.
type EnginesConfig struct {
	Edge     EdgeEngineConfig     `toml:"edge"`
	IndexTTS IndexTTSEngineConfig `toml:"indextts"`
	Coqui    CoquiEngineConfig    `toml:"coqui"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	HTTP     HTTPConfig     `toml:"http"`
	NATS     NATSConfig     `toml:"nats"`
	Dispatch DispatchConfig `toml:"dispatch"`
	Engines  EnginesConfig  `toml:"engines"`
	Paths    PathsConfig    `toml:"paths"`
}

// NATSEnabled reports whether the asynchronous job path should start.
func (c *Config) NATSEnabled() bool {
	return c.NATS.Enabled && c.NATS.URL != ""
}

// Load loads the configuration for the voice-gateway.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
