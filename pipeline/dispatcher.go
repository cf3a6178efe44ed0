package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/service/lgr"
)

// Dispatcher serializes detection events from all workers into a single
// ordered stream. Because each event needs a human decision, at most one
// delivery is in flight at a time; events arriving meanwhile queue in
// arrival order. Publishing never blocks a worker.
type Dispatcher struct {
	lock      sync.Mutex
	queue     []DetectionEvent
	wake      chan struct{}
	delivered int
	maxQueued int
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		wake: make(chan struct{}, 1),
	}
}

// Publish appends the event to the pending queue. Fire-and-forget: the
// caller is never blocked by an open decision. The dispatcher owns the
// event's crop from here on.
func (d *Dispatcher) Publish(event DetectionEvent) {
	d.lock.Lock()
	d.queue = append(d.queue, event)
	if len(d.queue) > d.maxQueued {
		d.maxQueued = len(d.queue)
	}
	d.lock.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run delivers queued events one at a time to deliver, in arrival order,
// until the context is cancelled. deliver blocks for the lifetime of one
// decision; undelivered crops are closed on shutdown.
func (d *Dispatcher) Run(canxCtx context.Context, statsStream chan<- interface{}, deliver func(context.Context, DetectionEvent)) {
	startTime := time.Now().Unix()

	defer func() {
		d.drain()
		if statsStream != nil {
			select {
			case statsStream <- model.DispatcherStats{
				Delivered: d.delivered,
				MaxQueued: d.maxQueued,
				Uptime:    time.Now().Unix() - startTime,
			}:
			default:
			}
		}
	}()

	for {
		event, ok := d.pop()
		if !ok {
			select {
			case <-canxCtx.Done():
				lgr.Logger.Info(
					"dispatcher context cancelled",
				)
				return
			case <-d.wake:
				continue
			}
		}

		select {
		case <-canxCtx.Done():
			event.Crop.Close()
			return
		default:
		}

		lgr.Logger.Info(
			"delivering detection event",
			slog.String("gate", event.Gate.Name),
			slog.String("plate", event.Text),
		)
		deliver(canxCtx, event)
		d.lock.Lock()
		d.delivered++
		d.lock.Unlock()
	}
}

func (d *Dispatcher) pop() (DetectionEvent, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if len(d.queue) == 0 {
		return DetectionEvent{}, false
	}
	event := d.queue[0]
	d.queue = d.queue[1:]
	return event, true
}

// Pending reports the number of queued, undelivered events.
func (d *Dispatcher) Pending() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) drain() {
	d.lock.Lock()
	defer d.lock.Unlock()

	for _, event := range d.queue {
		event.Crop.Close()
	}
	d.queue = nil
}
