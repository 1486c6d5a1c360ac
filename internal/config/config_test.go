// Package config_test tests the configuration loading for the voice-gateway.
package config_test

import (
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-gateway/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[http]
host = "0.0.0.0"
port = 8080
max_upload_mb = 50

[nats]
enabled = true
url = "nats://127.0.0.1:4222"
synthesis_job_subject = "voice.synthesis.job"
audio_object_store_bucket = "VOICE_AUDIO"

[dispatch]
timeout_seconds = 120

[engines.edge]
enabled = true
service_url = "http://localhost:8001"
timeout_seconds = 30
default_voice = "en-US-AriaNeural"

[engines.indextts]
enabled = true
binary = "indextts-infer"
checkpoint_dir = "/opt/index-tts/checkpoints"
use_fp16 = false

[engines.coqui]
enabled = false
service_url = "http://localhost:8002"
timeout_seconds = 120
language = "en"

[paths]
base_logs_dir = "/var/log/voice-gateway"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 50, cfg.HTTP.MaxUploadMB)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "voice.synthesis.job", cfg.NATS.SynthesisJobSubject)
	assert.Equal(t, "VOICE_AUDIO", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, 120, cfg.Dispatch.TimeoutSeconds)
	assert.True(t, cfg.Engines.Edge.Enabled)
	assert.Equal(t, "http://localhost:8001", cfg.Engines.Edge.ServiceURL)
	assert.Equal(t, "en-US-AriaNeural", cfg.Engines.Edge.DefaultVoice)
	assert.Equal(t, "indextts-infer", cfg.Engines.IndexTTS.Binary)
	assert.Equal(t, "/opt/index-tts/checkpoints", cfg.Engines.IndexTTS.CheckpointDir)
	assert.False(t, cfg.Engines.Coqui.Enabled)
	assert.Equal(t, "en", cfg.Engines.Coqui.Language)
	assert.Equal(t, "/var/log/voice-gateway", cfg.Paths.BaseLogsDir)
	assert.True(t, cfg.NATSEnabled())
}

func TestNATSEnabledRequiresURL(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.NATS.Enabled = true

	assert.False(t, cfg.NATSEnabled())
}
