package edge_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-gateway/internal/core"
	"github.com/book-expert/voice-gateway/internal/engines/edge"
)

const testTimeout = 5 * time.Second

func speakRequest(t *testing.T, r *http.Request) (text, voice string) {
	t.Helper()

	var payload struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}

	require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

	return payload.Text, payload.Voice
}

func TestDescriptor(t *testing.T) {
	t.Parallel()

	adapter := edge.New("http://localhost:0", testTimeout)
	descriptor := adapter.Descriptor()

	assert.Equal(t, edge.EngineID, descriptor.ID)
	assert.True(t, descriptor.HasCapability(core.CapabilityTextToSpeech))
	assert.False(t, descriptor.HasCapability(core.CapabilityVoiceCloning))
	assert.False(t, descriptor.HasCapability(core.CapabilityEmotionControl))
}

func TestProbe(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := edge.New(server.URL, testTimeout)
	assert.True(t, adapter.Probe(context.Background()))
}

func TestProbeUnreachableBridge(t *testing.T) {
	t.Parallel()

	adapter := edge.New("http://127.0.0.1:1", testTimeout)
	assert.False(t, adapter.Probe(context.Background()))
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/speak", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		text, voice := speakRequest(t, r)
		assert.Equal(t, "Hello world", text)
		assert.Equal(t, "en-US-AriaNeural", voice)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-audio-data"))
	}))
	defer server.Close()

	adapter := edge.New(server.URL, testTimeout)

	result, err := adapter.Synthesize(context.Background(), core.SynthesisRequest{
		EngineID: edge.EngineID,
		Text:     "Hello world",
		Voice:    &core.VoiceSelector{Name: "en-US-AriaNeural"},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-audio-data"), result.Audio)
	assert.Equal(t, "audio/mpeg", result.MIMEType)
}

func TestSynthesizeServiceUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := edge.New(server.URL, testTimeout)

	_, err := adapter.Synthesize(context.Background(), core.SynthesisRequest{
		Text:  "Hello",
		Voice: &core.VoiceSelector{Name: "en-US-AriaNeural"},
	})
	require.ErrorIs(t, err, core.ErrEngineUnavailable)
}

func TestSynthesizeStructuredError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "unknown voice"}`))
	}))
	defer server.Close()

	adapter := edge.New(server.URL, testTimeout)

	_, err := adapter.Synthesize(context.Background(), core.SynthesisRequest{
		Text:  "Hello",
		Voice: &core.VoiceSelector{Name: "xx-XX-Nobody"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown voice")
}

func TestSynthesizeWrongContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>surprise</html>"))
	}))
	defer server.Close()

	adapter := edge.New(server.URL, testTimeout)

	_, err := adapter.Synthesize(context.Background(), core.SynthesisRequest{
		Text:  "Hello",
		Voice: &core.VoiceSelector{Name: "en-US-AriaNeural"},
	})
	require.ErrorIs(t, err, edge.ErrBadContentType)
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer server.Close()

	adapter := edge.New(server.URL, testTimeout)

	_, err := adapter.Synthesize(context.Background(), core.SynthesisRequest{
		Text:  "Hello",
		Voice: &core.VoiceSelector{Name: "en-US-AriaNeural"},
	})
	require.ErrorIs(t, err, edge.ErrEmptyAudio)
}

func TestVoicesCachedAfterFirstSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/voices", r.URL.Path)
		calls.Add(1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices": [
			{"name": "en-US-AriaNeural", "display_name": "Aria", "gender": "Female", "locale": "en-US"}
		]}`))
	}))
	defer server.Close()

	adapter := edge.New(server.URL, testTimeout)

	first, err := adapter.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "en-US-AriaNeural", first[0].Name)

	second, err := adapter.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())
}

func TestVoicesFailureIsNotCached(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices": []}`))
	}))
	defer server.Close()

	adapter := edge.New(server.URL, testTimeout)

	_, err := adapter.Voices(context.Background())
	require.Error(t, err)

	_, err = adapter.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}
