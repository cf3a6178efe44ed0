package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/service/lgr"
)

const maxConsecutiveReadFailures = 30

// Worker owns one gate's frame source and runs its capture loop. A
// permanently failing source is fatal for the worker, never for its
// siblings. The worker exclusively owns its latest frame and cooldown
// state.
type Worker struct {
	ID       string
	Gate     model.Gate
	detector *Detector
	opener   FrameSourceOpener
	cooldown time.Duration

	dispatcher  *Dispatcher
	frameStream chan<- FrameUpdate
	errorStream chan<- interface{}
	statsStream chan<- interface{}

	lock          sync.Mutex
	latestFrame   gocv.Mat
	hasFrame      bool
	lastDetection time.Time

	canxFn context.CancelFunc
	done   chan struct{}
}

func NewWorker(gate model.Gate,
	detector *Detector,
	opener FrameSourceOpener,
	cooldown time.Duration,
	dispatcher *Dispatcher,
	frameStream chan<- FrameUpdate,
	errorStream chan<- interface{},
	statsStream chan<- interface{}) *Worker {
	return &Worker{
		ID:          uuid.NewString(),
		Gate:        gate,
		detector:    detector,
		opener:      opener,
		cooldown:    cooldown,
		dispatcher:  dispatcher,
		frameStream: frameStream,
		errorStream: errorStream,
		statsStream: statsStream,
		done:        make(chan struct{}),
	}
}

// Start launches the capture loop on its own goroutine.
func (w *Worker) Start(canxCtx context.Context) {
	workerCtx, canxFn := context.WithCancel(canxCtx)
	w.canxFn = canxFn
	go w.run(workerCtx)
}

// Stop cancels the loop and blocks until it has exited. The frame source
// is guaranteed released before Stop returns.
func (w *Worker) Stop() {
	if w.canxFn != nil {
		w.canxFn()
	}
	<-w.done
}

// LatestFrame returns a clone of the most recent successfully captured
// frame. Used by recapture; there is no staleness guarantee beyond "most
// recent at time of read".
func (w *Worker) LatestFrame() (gocv.Mat, bool) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if !w.hasFrame {
		return gocv.Mat{}, false
	}
	return w.latestFrame.Clone(), true
}

func (w *Worker) run(canxCtx context.Context) {
	defer close(w.done)

	lgr.Logger.Info(
		"camera worker starting....",
		slog.String("workerID", w.ID),
		slog.String("gate", w.Gate.Name),
		slog.String("source", w.Gate.Source),
	)

	var startTime = time.Now().Unix()
	var frames = 0
	var errors = 0
	var detections = 0
	var suppressed = 0

	defer func() {
		uptime := time.Now().Unix() - startTime
		fps := 0
		if uptime > 0 {
			fps = int(float64(frames) / float64(uptime))
		}
		select {
		case w.statsStream <- model.WorkerStats{
			Gate:       w.Gate.Name,
			Frames:     frames,
			Errors:     errors,
			Detections: detections,
			Suppressed: suppressed,
			Uptime:     uptime,
			FPS:        fps,
		}:
		default:
		}
	}()

	defer func() {
		w.lock.Lock()
		if w.hasFrame {
			w.latestFrame.Close()
			w.hasFrame = false
		}
		w.lock.Unlock()
	}()

	source, err := w.opener(w.Gate.Source)
	if err != nil {
		w.errorStream <- model.GenError("camera_worker",
			err,
			map[string]interface{}{"gate": w.Gate.Name},
			"error opening frame source for gate %s", w.Gate.Name)
		return
	}
	defer source.Close()

	img := gocv.NewMat()
	defer img.Close()

	consecutiveFailures := 0

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"camera worker context cancelled",
				slog.String("gate", w.Gate.Name),
			)
			return

		default:
			if ok := source.Read(&img); !ok || img.Empty() {
				// A single failed cycle is retried; a run of them means the
				// source is gone, which is fatal for this worker only.
				errors++
				consecutiveFailures++
				if consecutiveFailures < maxConsecutiveReadFailures {
					continue
				}
				w.errorStream <- model.GenError("camera_worker",
					nil,
					map[string]interface{}{"gate": w.Gate.Name},
					"frame source exhausted for gate %s", w.Gate.Name)
				return
			}

			consecutiveFailures = 0
			frames++
			w.storeLatest(img)

			now := time.Now()
			if now.Sub(w.lastDetection) > w.cooldown {
				if reading, ok := w.detector.ProcessFrame(img, w.Gate.Name); ok {
					detections++
					w.lastDetection = now
					w.dispatcher.Publish(DetectionEvent{
						Text:      reading.Text,
						Crop:      reading.Crop,
						Gate:      w.Gate,
						WorkerID:  w.ID,
						Timestamp: reading.Timestamp,
					})
				}
			} else {
				suppressed++
			}

			// Display frames flow regardless of cooldown state.
			w.publishFrame(canxCtx, img)
		}
	}
}

func (w *Worker) storeLatest(img gocv.Mat) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.hasFrame {
		w.latestFrame.Close()
	}
	w.latestFrame = img.Clone()
	w.hasFrame = true
}

func (w *Worker) publishFrame(canxCtx context.Context, img gocv.Mat) {
	if w.frameStream == nil {
		return
	}

	clone := img.Clone()
	select {
	case <-canxCtx.Done():
		clone.Close() // Crucial to close the image to avoid memory leaks
	case w.frameStream <- FrameUpdate{Mat: clone, GateName: w.Gate.Name, Timestamp: time.Now()}:
		// Successfully sent to the channel
	default:
		// Display is best-effort; never stall capture on a slow consumer
		clone.Close()
	}
}
