package client_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-gateway/internal/client"
)

const testTimeout = 5 * time.Second

func TestHealth(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/health", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "degraded", "engines": {"edge-tts": true}}`))
	}))
	defer server.Close()

	gateway := client.New(server.URL, testTimeout)
	require.NoError(t, gateway.Health(context.Background()))
}

func TestHealthUnreachableGateway(t *testing.T) {
	t.Parallel()

	gateway := client.New("http://127.0.0.1:1", testTimeout)
	require.Error(t, gateway.Health(context.Background()))
}

func TestEngines(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/engines", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"engines": [
			{"id": "edge-tts", "name": "Edge-TTS", "available": true, "capabilities": ["text_to_speech"]},
			{"id": "index-tts2", "name": "Index-TTS2", "available": false,
			 "capabilities": ["text_to_speech", "voice_cloning", "emotion_control"]}
		], "total": 2}`))
	}))
	defer server.Close()

	gateway := client.New(server.URL, testTimeout)

	engines, err := gateway.Engines(context.Background())
	require.NoError(t, err)
	require.Len(t, engines, 2)
	assert.Equal(t, "edge-tts", engines[0].ID)
	assert.True(t, engines[0].Available)
	assert.Equal(t, "index-tts2", engines[1].ID)
	assert.False(t, engines[1].Available)
}

func TestTextToSpeech(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/convert/text-to-speech", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "Hello world", r.PostFormValue("text"))
		assert.Equal(t, "en-US-AriaNeural", r.PostFormValue("voice"))
		assert.Equal(t, "edge-tts", r.PostFormValue("engine"))

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-audio-data"))
	}))
	defer server.Close()

	gateway := client.New(server.URL, testTimeout)

	audio, mimeType, err := gateway.TextToSpeech(context.Background(), "edge-tts", "Hello world", "en-US-AriaNeural")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-audio-data"), audio)
	assert.Equal(t, "audio/mpeg", mimeType)
}

func TestTextToSpeechOmitsEmptyEngine(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.False(t, r.PostForm.Has("engine"))

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-audio-data"))
	}))
	defer server.Close()

	gateway := client.New(server.URL, testTimeout)

	_, _, err := gateway.TextToSpeech(context.Background(), "", "Hello", "en-US-AriaNeural")
	require.NoError(t, err)
}

func TestVoiceClone(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/convert/voice-clone", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "Hello world", r.PostFormValue("text"))
		assert.Equal(t, "index-tts2", r.PostFormValue("engine"))

		file, header, err := r.FormFile("reference_audio")
		require.NoError(t, err)

		defer file.Close()

		assert.Equal(t, "speaker.wav", header.Filename)

		sample, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("RIFFxxxxWAVEspeaker"), sample)

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("wav-audio-data"))
	}))
	defer server.Close()

	gateway := client.New(server.URL, testTimeout)

	audio, mimeType, err := gateway.VoiceClone(
		context.Background(), "index-tts2", "Hello world", []byte("RIFFxxxxWAVEspeaker"), "speaker.wav",
	)
	require.NoError(t, err)
	assert.Equal(t, []byte("wav-audio-data"), audio)
	assert.Equal(t, "audio/wav", mimeType)
}

func TestStructuredErrorResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"kind": "unknown_engine", "error": "unknown engine: \"ghost\""}`))
	}))
	defer server.Close()

	gateway := client.New(server.URL, testTimeout)

	_, _, err := gateway.TextToSpeech(context.Background(), "ghost", "Hello", "en-US-AriaNeural")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown_engine")
	assert.Contains(t, err.Error(), "ghost")
}

func TestEmptyAudioResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer server.Close()

	gateway := client.New(server.URL, testTimeout)

	_, _, err := gateway.TextToSpeech(context.Background(), "edge-tts", "Hello", "en-US-AriaNeural")
	require.ErrorIs(t, err, client.ErrEmptyAudio)
}
