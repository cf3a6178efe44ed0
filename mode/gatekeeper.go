package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/gatewatch-go/decision"
	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/pipeline"
	"github.com/khaledhikmat/gatewatch-go/service/lgr"
)

// Gatekeeper runs the detection-to-decision pipeline: one camera worker
// per configured gate, a dispatcher serializing their detection events,
// and one entry decision at a time handed to the decider. Camera workers
// are never blocked by an open decision.
func Gatekeeper(canxCtx context.Context, svcs pipeline.ServicesFactory, decider decision.Decider) error {
	// Create an error stream
	errorStream := make(chan interface{})
	defer close(errorStream)

	// Create a stats stream
	statsStream := make(chan interface{}, 16)
	defer close(statsStream)

	// Display frames are decoupled from detection cadence; a presentation
	// layer would consume this stream.
	frameStream := make(chan pipeline.FrameUpdate, 100)

	detector := pipeline.NewDetector(svcs.CfgSvc, svcs.RecognizerSvc)
	dispatcher := pipeline.NewDispatcher()

	cooldown := time.Duration(svcs.CfgSvc.GetDetectionCooldown()) * time.Second
	registry := pipeline.NewRegistry(detector, pipeline.OpenCaptureSource, cooldown, dispatcher, frameStream, errorStream, statsStream)

	decisionSvcs := decision.Services{
		RepoSvc:  svcs.RepoSvc,
		ImageSvc: svcs.ImageSvc,
		Registry: registry,
		Detector: detector,
	}

	// Deliver one decision at a time; the dispatcher queues the rest.
	dispatcherResult := make(chan struct{})
	go func() {
		defer close(dispatcherResult)
		dispatcher.Run(canxCtx, statsStream, func(ctx context.Context, event pipeline.DetectionEvent) {
			wf := decision.FromDetection(event, currentActor(ctx), decisionSvcs)
			defer wf.Close()

			if err := wf.Check(ctx); err != nil {
				errorStream <- model.GenError("gatekeeper",
					err,
					map[string]interface{}{"gate": event.Gate.Name},
					"error resolving detection for gate %s", event.Gate.Name)
			}

			if err := decider(ctx, wf); err != nil {
				lgr.Logger.Warn(
					"decision ended without approval",
					slog.String("gate", event.Gate.Name),
					slog.String("plate", event.Text),
					slog.Any("error", err),
				)
			}
		})
	}()

	// Build one worker per configured gate.
	registry.Rebuild(canxCtx, svcs.CfgSvc.GetGates())

	// Wait for cancellation, frames, stats or errors
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"gatekeeper context cancelled",
			)
			goto resume

		case frame := <-frameStream:
			// No presentation layer attached in this mode; release the
			// display frame.
			frame.Mat.Close()

		case s := <-statsStream:
			procStats(s)

		case e := <-errorStream:
			procError(e)
		}
	}

	// Wait in a non-blocking way for the shutdown duration for all the go
	// routines to exit. This is needed because the go routines may need to
	// report errors as they are exiting.
resume:
	registry.StopAll()

	lgr.Logger.Info(
		"gatekeeper is waiting for all go routines to exit",
	)

	timer := time.NewTimer(time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"gatekeeper shutdown waiting period expired. Exiting now",
				slog.Duration("period", time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime())*time.Second),
			)
			return nil

		case <-dispatcherResult:
			// Dispatcher done; keep draining until the timer expires.
			dispatcherResult = nil

		case frame := <-frameStream:
			frame.Mat.Close()

		case s := <-statsStream:
			procStats(s)

		case e := <-errorStream:
			procError(e)
		}
	}
}

type actorKey struct{}

// WithActor stamps the operator identity used for audit records onto the
// context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func currentActor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}
