package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/service/recognizer"
)

func newTestRegistry(t *testing.T) (*Registry, *Dispatcher) {
	t.Helper()

	frame := testFrame(t)
	detector := NewDetector(newStubConfig(), recognizer.NewFake(nil, nil))
	dispatcher := NewDispatcher()
	errorStream := make(chan interface{}, 100)
	statsStream := make(chan interface{}, 100)

	opener := func(_ string) (FrameSource, error) {
		return newFakeSource(frame, 1_000_000, time.Millisecond), nil
	}

	return NewRegistry(detector, opener, time.Hour, dispatcher, nil, errorStream, statsStream), dispatcher
}

func TestRegistryRebuildStartsWorkerPerGate(t *testing.T) {
	registry, _ := newTestRegistry(t)
	defer registry.StopAll()

	registry.Rebuild(context.Background(), []model.Gate{
		{ID: "g1", Name: "main-gate", Source: "fake"},
		{ID: "g2", Name: "service-gate", Source: "fake"},
	})

	_, ok := registry.Lookup("main-gate")
	assert.True(t, ok)
	_, ok = registry.Lookup("service-gate")
	assert.True(t, ok)
	_, ok = registry.Lookup("garden-gate")
	assert.False(t, ok)
}

func TestRegistryRebuildReplacesWorkers(t *testing.T) {
	registry, _ := newTestRegistry(t)
	defer registry.StopAll()

	registry.Rebuild(context.Background(), []model.Gate{
		{ID: "g1", Name: "main-gate", Source: "fake"},
	})
	first, ok := registry.Lookup("main-gate")
	require.True(t, ok)

	registry.Rebuild(context.Background(), []model.Gate{
		{ID: "g1", Name: "main-gate", Source: "fake"},
	})
	second, ok := registry.Lookup("main-gate")
	require.True(t, ok)

	assert.NotEqual(t, first.ID, second.ID, "rebuild must start a fresh worker")
}

func TestRegistryStopAllClears(t *testing.T) {
	registry, _ := newTestRegistry(t)

	registry.Rebuild(context.Background(), []model.Gate{
		{ID: "g1", Name: "main-gate", Source: "fake"},
	})
	registry.StopAll()

	_, ok := registry.Lookup("main-gate")
	assert.False(t, ok)
}
