package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/service/lgr"
)

// Registry is the single owner of the live camera worker handles. All
// lifecycle operations (start, restart-all, stop-all) happen under its
// lock; nothing else holds worker references across restarts. Recapture
// resolves workers by gate name at call time, so a worker that has been
// restarted or removed simply resolves to a lookup miss.
type Registry struct {
	detector    *Detector
	opener      FrameSourceOpener
	cooldown    time.Duration
	dispatcher  *Dispatcher
	frameStream chan<- FrameUpdate
	errorStream chan<- interface{}
	statsStream chan<- interface{}

	lock    sync.Mutex
	workers map[string]*Worker
}

func NewRegistry(detector *Detector,
	opener FrameSourceOpener,
	cooldown time.Duration,
	dispatcher *Dispatcher,
	frameStream chan<- FrameUpdate,
	errorStream chan<- interface{},
	statsStream chan<- interface{}) *Registry {
	return &Registry{
		detector:    detector,
		opener:      opener,
		cooldown:    cooldown,
		dispatcher:  dispatcher,
		frameStream: frameStream,
		errorStream: errorStream,
		statsStream: statsStream,
		workers:     map[string]*Worker{},
	}
}

// Rebuild is "stop all, clear, rebuild": it stops every running worker,
// then starts one worker per gate. Safe to call repeatedly; used both for
// initial startup and for restart-all-cameras after a config change.
func (r *Registry) Rebuild(canxCtx context.Context, gates []model.Gate) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.stopAllLocked()

	for _, gate := range gates {
		worker := NewWorker(gate, r.detector, r.opener, r.cooldown, r.dispatcher, r.frameStream, r.errorStream, r.statsStream)
		worker.Start(canxCtx)
		r.workers[gate.Name] = worker

		lgr.Logger.Info(
			"registered camera worker",
			slog.String("gate", gate.Name),
			slog.String("workerID", worker.ID),
		)
	}
}

// Lookup resolves the current live worker for a gate. A miss means the
// gate has no running camera (never configured, or since removed).
func (r *Registry) Lookup(gateName string) (*Worker, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	worker, ok := r.workers[gateName]
	return worker, ok
}

// StopAll stops every worker and clears the set. Blocks until each
// worker's frame source is released.
func (r *Registry) StopAll() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.stopAllLocked()
}

func (r *Registry) stopAllLocked() {
	for name, worker := range r.workers {
		worker.Stop()
		delete(r.workers, name)

		lgr.Logger.Info(
			"stopped camera worker",
			slog.String("gate", name),
		)
	}
}
