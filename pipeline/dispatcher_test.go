package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/gatewatch-go/model"
)

func testEvent(text string) DetectionEvent {
	return DetectionEvent{
		Text:      text,
		Crop:      gocv.NewMat(),
		Gate:      model.Gate{Name: "main-gate"},
		Timestamp: time.Now(),
	}
}

func TestDispatcherDeliversInArrivalOrder(t *testing.T) {
	dispatcher := NewDispatcher()
	canxCtx, canxFn := context.WithCancel(context.Background())
	defer canxFn()

	texts := []string{"MH01AA0001", "MH01AA0002", "MH01AA0003", "MH01AA0004"}
	for _, text := range texts {
		dispatcher.Publish(testEvent(text))
	}

	var delivered []string
	var inFlight int32
	done := make(chan struct{})

	go dispatcher.Run(canxCtx, nil, func(_ context.Context, event DetectionEvent) {
		assert.Equal(t, int32(1), atomic.AddInt32(&inFlight, 1), "overlapping delivery")
		delivered = append(delivered, event.Text)
		event.Crop.Close()
		atomic.AddInt32(&inFlight, -1)
		if len(delivered) == len(texts) {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not deliver all events")
	}
	canxFn()

	assert.Equal(t, texts, delivered)
	assert.Equal(t, 0, dispatcher.Pending())
}

func TestDispatcherPublishNeverBlocks(t *testing.T) {
	dispatcher := NewDispatcher()
	canxCtx, canxFn := context.WithCancel(context.Background())
	defer canxFn()

	blockDecision := make(chan struct{})
	firstDelivery := make(chan struct{})

	go dispatcher.Run(canxCtx, nil, func(_ context.Context, event DetectionEvent) {
		close(firstDelivery)
		<-blockDecision
		event.Crop.Close()
	})

	dispatcher.Publish(testEvent("MH01AA0001"))
	<-firstDelivery

	// With a decision open, publishers must still return immediately.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Publish(testEvent("MH01AA0002"))
		}()
	}

	published := make(chan struct{})
	go func() {
		wg.Wait()
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked behind an open decision")
	}

	assert.Equal(t, 8, dispatcher.Pending())
	close(blockDecision)
}

func TestDispatcherDrainsQueueOnShutdown(t *testing.T) {
	dispatcher := NewDispatcher()
	canxCtx, canxFn := context.WithCancel(context.Background())
	canxFn()

	dispatcher.Publish(testEvent("MH01AA0001"))
	dispatcher.Publish(testEvent("MH01AA0002"))

	statsStream := make(chan interface{}, 1)
	dispatcher.Run(canxCtx, statsStream, func(_ context.Context, event DetectionEvent) {
		event.Crop.Close()
	})

	assert.Equal(t, 0, dispatcher.Pending())

	stats, ok := (<-statsStream).(model.DispatcherStats)
	require.True(t, ok)
	assert.Equal(t, 2, stats.MaxQueued)
}
