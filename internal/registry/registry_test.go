package registry_test

import (
	"context"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-gateway/internal/core"
	"github.com/book-expert/voice-gateway/internal/registry"
)

// fakeAdapter is an in-memory EngineAdapter for registry tests.
type fakeAdapter struct {
	id           string
	capabilities []core.Capability
	alive        bool
	probeCount   int
	voices       []core.Voice
}

func (f *fakeAdapter) Descriptor() core.EngineDescriptor {
	return core.EngineDescriptor{
		ID:           f.id,
		Name:         f.id,
		Description:  "fake engine",
		Available:    false,
		Capabilities: f.capabilities,
	}
}

func (f *fakeAdapter) Probe(_ context.Context) bool {
	f.probeCount++

	return f.alive
}

func (f *fakeAdapter) Synthesize(_ context.Context, _ core.SynthesisRequest) (core.SynthesisResult, error) {
	return core.SynthesisResult{Audio: []byte("audio"), MIMEType: "audio/wav"}, nil
}

func (f *fakeAdapter) Voices(_ context.Context) ([]core.Voice, error) {
	return f.voices, nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	return log
}

func newTestRegistry(t *testing.T, adapters ...core.EngineAdapter) *registry.Registry {
	t.Helper()

	return registry.New(context.Background(), adapters, newTestLogger(t))
}

func TestListEnginesPreservesConfigurationOrder(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t,
		&fakeAdapter{id: "cloud", alive: true},
		&fakeAdapter{id: "beta-cloner", alive: false},
		&fakeAdapter{id: "alpha-cloner", alive: true},
	)

	engines := reg.ListEngines()

	require.Len(t, engines, 3)
	assert.Equal(t, "cloud", engines[0].ID)
	assert.Equal(t, "beta-cloner", engines[1].ID)
	assert.Equal(t, "alpha-cloner", engines[2].ID)
	assert.True(t, engines[0].Available)
	assert.False(t, engines[1].Available)
}

func TestListEnginesIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t,
		&fakeAdapter{id: "cloud", alive: true},
		&fakeAdapter{id: "cloner", alive: false},
	)

	first := reg.ListEngines()
	second := reg.ListEngines()

	assert.Equal(t, first, second)
}

func TestIsAvailableUnknownEngine(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, &fakeAdapter{id: "cloud", alive: true})

	_, err := reg.IsAvailable("nope")
	require.ErrorIs(t, err, core.ErrUnknownEngine)
}

func TestRefreshPicksUpLateAssets(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{id: "cloner", alive: false}
	reg := newTestRegistry(t, adapter)

	alive, err := reg.IsAvailable("cloner")
	require.NoError(t, err)
	assert.False(t, alive)

	// Model assets finish downloading.
	adapter.alive = true

	alive, err = reg.Refresh(context.Background(), "cloner")
	require.NoError(t, err)
	assert.True(t, alive)

	alive, err = reg.IsAvailable("cloner")
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestMarkUnavailable(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, &fakeAdapter{id: "cloud", alive: true})

	reg.MarkUnavailable("cloud")

	alive, err := reg.IsAvailable("cloud")
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestVoicesAggregatesListers(t *testing.T) {
	t.Parallel()

	withVoices := &fakeAdapter{
		id:    "cloud",
		alive: true,
		voices: []core.Voice{
			{Name: "en-US-AriaNeural", DisplayName: "Aria", Gender: "Female", Locale: "en-US"},
		},
	}

	reg := newTestRegistry(t, withVoices)

	voices, err := reg.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "en-US-AriaNeural", voices[0].Name)
}
