// Package registry maintains the authoritative list of configured engines and
// their current availability.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-gateway/internal/core"
)

// Registry holds the configured engine adapters in configuration order (the UI
// renders engines in that priority order) together with their live descriptors.
//
// Reads are concurrent; descriptor writes happen at startup and on
// availability refresh only, under a single writer lock, so readers never
// observe a half-updated descriptor.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	adapters  map[string]core.EngineAdapter
	available map[string]bool
	log       *logger.Logger
}

// New builds a registry from adapters in the given order and probes each one
// once. Registration happens exactly once, at startup.
func New(ctx context.Context, adapters []core.EngineAdapter, log *logger.Logger) *Registry {
	reg := &Registry{
		mu:        sync.RWMutex{},
		order:     make([]string, 0, len(adapters)),
		adapters:  make(map[string]core.EngineAdapter, len(adapters)),
		available: make(map[string]bool, len(adapters)),
		log:       log,
	}

	for _, adapter := range adapters {
		descriptor := adapter.Descriptor()
		alive := adapter.Probe(ctx)

		reg.order = append(reg.order, descriptor.ID)
		reg.adapters[descriptor.ID] = adapter
		reg.available[descriptor.ID] = alive

		reg.log.Info("Registered engine %q (available: %t)", descriptor.ID, alive)
	}

	return reg
}

// ListEngines returns a snapshot of every registered engine descriptor in
// configuration order.
func (r *Registry) ListEngines() []core.EngineDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]core.EngineDescriptor, 0, len(r.order))

	for _, id := range r.order {
		descriptor := r.adapters[id].Descriptor()
		descriptor.Available = r.available[id]
		descriptors = append(descriptors, descriptor)
	}

	return descriptors
}

// IsAvailable reports current liveness for a registered engine. It fails with
// core.ErrUnknownEngine if the id was never registered. A registered engine may
// still be unavailable while its model assets are absent or loading.
func (r *Registry) IsAvailable(engineID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.adapters[engineID]; !ok {
		return false, fmt.Errorf("%w: %q", core.ErrUnknownEngine, engineID)
	}

	return r.available[engineID], nil
}

// Adapter returns the adapter for a registered engine id.
func (r *Registry) Adapter(engineID string) (core.EngineAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[engineID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownEngine, engineID)
	}

	return adapter, nil
}

// Refresh re-probes one engine and swaps its availability. Used for lazily
// initialized engines whose assets may have finished downloading since the
// last probe; there is no push notification for that transition.
func (r *Registry) Refresh(ctx context.Context, engineID string) (bool, error) {
	adapter, err := r.Adapter(engineID)
	if err != nil {
		return false, err
	}

	alive := adapter.Probe(ctx)

	r.mu.Lock()
	previous := r.available[engineID]
	r.available[engineID] = alive
	r.mu.Unlock()

	if previous != alive {
		r.log.Info("Engine %q availability changed: %t -> %t", engineID, previous, alive)
	}

	return alive, nil
}

// MarkUnavailable records an adapter-reported fatal condition, the only way an
// engine transitions from available back to unavailable during operation.
func (r *Registry) MarkUnavailable(engineID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[engineID]; ok {
		r.available[engineID] = false
	}
}

// Voices aggregates the voice catalogues of every adapter that exposes one.
func (r *Registry) Voices(ctx context.Context) ([]core.Voice, error) {
	r.mu.RLock()
	adapters := make([]core.EngineAdapter, 0, len(r.order))

	for _, id := range r.order {
		adapters = append(adapters, r.adapters[id])
	}
	r.mu.RUnlock()

	var voices []core.Voice

	for _, adapter := range adapters {
		lister, ok := adapter.(core.VoiceLister)
		if !ok {
			continue
		}

		engineVoices, err := lister.Voices(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list voices for %q: %w", adapter.Descriptor().ID, err)
		}

		voices = append(voices, engineVoices...)
	}

	return voices, nil
}
