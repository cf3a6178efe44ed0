package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/service/recognizer"
)

// fakeSource yields a fixed number of copies of one frame, with an
// optional delay per read, then reports exhaustion. failFirst makes the
// initial reads fail to simulate transient camera hiccups.
type fakeSource struct {
	lock      sync.Mutex
	frame     gocv.Mat
	remaining int
	delay     time.Duration
	failFirst int
	closed    bool
}

func newFakeSource(frame gocv.Mat, frames int, delay time.Duration) *fakeSource {
	return &fakeSource{
		frame:     frame,
		remaining: frames,
		delay:     delay,
	}
}

func (s *fakeSource) Read(img *gocv.Mat) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.failFirst > 0 {
		s.failFirst--
		return false
	}
	if s.remaining <= 0 {
		return false
	}
	s.remaining--
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.frame.CopyTo(img)
	return true
}

func (s *fakeSource) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}

func alwaysDetecting() recognizer.IService {
	return recognizer.NewFake(
		[][]model.DetectedRegion{{goodRegion()}},
		[][]model.OcrSegment{goodSegments()},
	)
}

func runWorkerToExhaustion(t *testing.T, source FrameSource, cooldown time.Duration, dispatcher *Dispatcher) model.WorkerStats {
	t.Helper()

	detector := NewDetector(newStubConfig(), alwaysDetecting())
	errorStream := make(chan interface{}, 10)
	statsStream := make(chan interface{}, 1)

	opener := func(_ string) (FrameSource, error) {
		return source, nil
	}

	gate := model.Gate{ID: "g1", Name: "main-gate", Source: "fake"}
	worker := NewWorker(gate, detector, opener, cooldown, dispatcher, nil, errorStream, statsStream)
	worker.Start(context.Background())

	var stats model.WorkerStats
	select {
	case raw := <-statsStream:
		var ok bool
		stats, ok = raw.(model.WorkerStats)
		require.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit on source exhaustion")
	}
	worker.Stop()

	return stats
}

func TestWorkerCooldownSuppressesRepeats(t *testing.T) {
	frame := testFrame(t)
	dispatcher := NewDispatcher()

	// A cooldown far longer than the run: only the first frame may detect.
	stats := runWorkerToExhaustion(t, newFakeSource(frame, 5, 0), time.Hour, dispatcher)

	assert.Equal(t, 5, stats.Frames)
	assert.Equal(t, 1, stats.Detections)
	assert.Equal(t, 4, stats.Suppressed)
	assert.Equal(t, 1, dispatcher.Pending())

	drainDispatcher(dispatcher)
}

func TestWorkerCooldownExpiryAllowsNextDetection(t *testing.T) {
	frame := testFrame(t)
	dispatcher := NewDispatcher()

	// Reads are spaced well past the cooldown: every frame may detect.
	stats := runWorkerToExhaustion(t, newFakeSource(frame, 3, 30*time.Millisecond), time.Millisecond, dispatcher)

	assert.Equal(t, 3, stats.Frames)
	assert.Equal(t, 3, stats.Detections)
	assert.Equal(t, 0, stats.Suppressed)
	assert.Equal(t, 3, dispatcher.Pending())

	drainDispatcher(dispatcher)
}

func TestWorkerRetriesTransientReadFailures(t *testing.T) {
	frame := testFrame(t)
	dispatcher := NewDispatcher()

	source := newFakeSource(frame, 2, 0)
	source.failFirst = 3

	stats := runWorkerToExhaustion(t, source, time.Hour, dispatcher)

	assert.Equal(t, 2, stats.Frames, "frames after the hiccup are still captured")
	assert.GreaterOrEqual(t, stats.Errors, 3)
	assert.Equal(t, 1, stats.Detections)

	drainDispatcher(dispatcher)
}

func TestWorkerStopReleasesSource(t *testing.T) {
	frame := testFrame(t)
	source := newFakeSource(frame, 1_000_000, time.Millisecond)

	detector := NewDetector(newStubConfig(), alwaysDetecting())
	errorStream := make(chan interface{}, 10)
	statsStream := make(chan interface{}, 1)
	dispatcher := NewDispatcher()

	worker := NewWorker(model.Gate{Name: "main-gate", Source: "fake"}, detector, func(_ string) (FrameSource, error) {
		return source, nil
	}, time.Hour, dispatcher, nil, errorStream, statsStream)

	worker.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	worker.Stop()

	assert.True(t, source.isClosed())
	drainDispatcher(dispatcher)
}

func TestWorkerLatestFrame(t *testing.T) {
	frame := testFrame(t)
	dispatcher := NewDispatcher()

	detector := NewDetector(newStubConfig(), recognizer.NewFake(nil, nil))
	errorStream := make(chan interface{}, 10)
	statsStream := make(chan interface{}, 1)

	worker := NewWorker(model.Gate{Name: "main-gate", Source: "fake"}, detector, func(_ string) (FrameSource, error) {
		return newFakeSource(frame, 2, 0), nil
	}, time.Hour, dispatcher, nil, errorStream, statsStream)

	_, ok := worker.LatestFrame()
	assert.False(t, ok, "no frame before the first capture")

	worker.Start(context.Background())
	<-statsStream
	worker.Stop()

	// The retained frame is released when the worker exits.
	_, ok = worker.LatestFrame()
	assert.False(t, ok)
}

func TestWorkerOpenerFailureIsReported(t *testing.T) {
	detector := NewDetector(newStubConfig(), recognizer.NewFake(nil, nil))
	errorStream := make(chan interface{}, 10)
	statsStream := make(chan interface{}, 1)
	dispatcher := NewDispatcher()

	worker := NewWorker(model.Gate{Name: "main-gate", Source: "fake"}, detector, func(_ string) (FrameSource, error) {
		return nil, assert.AnError
	}, time.Hour, dispatcher, nil, errorStream, statsStream)

	worker.Start(context.Background())

	select {
	case raw := <-errorStream:
		_, ok := raw.(model.CustomError)
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("expected an error from the worker")
	}
	worker.Stop()
}

// drainDispatcher closes any crops queued by a test worker.
func drainDispatcher(d *Dispatcher) {
	canxCtx, canxFn := context.WithCancel(context.Background())
	canxFn()
	d.Run(canxCtx, nil, func(_ context.Context, event DetectionEvent) {
		event.Crop.Close()
	})
}
