package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/gatewatch-go/decision"
	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/pipeline"
	"github.com/khaledhikmat/gatewatch-go/service/lgr"
)

type Processor func(canxCtx context.Context,
	svcs pipeline.ServicesFactory,
	decider decision.Decider) error

func procStats(stats interface{}) {
	switch stats := stats.(type) {
	case model.WorkerStats:
		lgr.Logger.Info(
			"camera worker stats",
			slog.Any("stats", stats),
		)
	case model.DispatcherStats:
		lgr.Logger.Info(
			"dispatcher stats",
			slog.Any("stats", stats),
		)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procError(err interface{}) {
	if custom, ok := err.(model.CustomError); ok {
		lgr.Logger.Error(
			"processor error",
			slog.String("processor", custom.Processor),
			slog.String("message", custom.Message),
			slog.Any("error", custom.Inner),
		)
		return
	}

	lgr.Logger.Error(
		"processor error",
		slog.Any("error", err),
	)
}
