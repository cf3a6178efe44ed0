package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/gatewatch-go/decision"
	"github.com/khaledhikmat/gatewatch-go/mode"
	"github.com/khaledhikmat/gatewatch-go/pipeline"
	"github.com/khaledhikmat/gatewatch-go/service/auth"
	"github.com/khaledhikmat/gatewatch-go/service/config"
	"github.com/khaledhikmat/gatewatch-go/service/imagestore"
	"github.com/khaledhikmat/gatewatch-go/service/lgr"
	"github.com/khaledhikmat/gatewatch-go/service/recognizer"
	"github.com/khaledhikmat/gatewatch-go/service/repo"
)

const (
	// WARNING: this has to be bigger than the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"gatekeeper": mode.Gatekeeper,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		lgr.Logger.Info("loading env vars from .env file")
		err := godotenv.Load()
		if err != nil {
			lgr.Logger.Warn("no .env file loaded", slog.Any("error", xerrors.New(err.Error())))
		}
	}

	modeType := "gatekeeper"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	// Config service
	cfgSvc, err := config.NewViper(os.Getenv("GATEWATCH_CONFIG_FILE"))
	if err != nil {
		lgr.Logger.Error("error loading config", slog.Any("error", err))
		panic("error loading config")
	}
	lgr.Reconfigure(cfgSvc.GetLogsFolder(), cfgSvc.IsDebug())
	lgr.Banner("GATEWATCH", modeType)

	// Repo service
	db, err := repo.OpenDatabase(cfgSvc.GetDatabasePath())
	if err != nil {
		lgr.Logger.Error("error opening database", slog.Any("error", err))
		panic("error opening database")
	}
	repoSvc := repo.NewSqlite(db)

	// Auth service (seeds default operator accounts)
	authSvc, err := auth.NewSqlite(db, repoSvc)
	if err != nil {
		lgr.Logger.Error("error initializing auth", slog.Any("error", err))
		panic("error initializing auth")
	}
	_ = authSvc // consumed by the operator-facing layer

	// Image store service
	imageSvc, err := imagestore.NewFiles(cfgSvc)
	if err != nil {
		lgr.Logger.Error("error initializing image store", slog.Any("error", err))
		panic("error initializing image store")
	}

	// Recognizer service
	recognizerSvc, err := recognizer.NewDNN(cfgSvc.GetDetectorModelPath(), cfgSvc.GetOcrModelPath(), cfgSvc.IsDebug())
	if err != nil {
		lgr.Logger.Error("error initializing recognizer", slog.Any("error", err))
		panic("error initializing recognizer")
	}
	defer recognizerSvc.Close()

	svcs := pipeline.ServicesFactory{
		CfgSvc:        cfgSvc,
		RecognizerSvc: recognizerSvc,
		RepoSvc:       repoSvc,
		ImageSvc:      imageSvc,
	}

	// Operator identity for audit records; a richer presentation layer
	// would take this from its login session.
	actor := os.Getenv("GATEWATCH_OPERATOR")
	if actor == "" {
		actor = "admin"
	}
	canxCtx = mode.WithActor(canxCtx, actor)

	// Create mode processor result
	modeProcResult := make(chan error)
	defer close(modeProcResult)

	// Start the mode processor with the console decider
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs, decision.ConsoleDecider(os.Stdin, os.Stdout))
	}()

	// Wait for cancellation, mode proc or error
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"gatewatch pod context cancelled",
			)
			goto resume

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Info(
					"gatewatch pod mode processor exited",
					slog.Any("error", xerrors.New(err.Error())),
				)
			}
			goto resume
		}
	}

	// Wait in a non-blocking way for `waitOnShutdown` for all the go routines to exit
	// This is needed because the go routines may need to report errors as they are existing
resume:
	// Cancel the context if not already cancelled
	if canxCtx.Err() == nil {
		// Force cancel the context
		canxFn()
	}

	lgr.Logger.Info(
		"gatewatch pod is waiting for all go routines to exit",
	)

	// The only way to exit the main function is to wait for the shutdown
	// duration
	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			// Timer expired, proceed with shutdown
			lgr.Logger.Info(
				"gatewatch pod shutdown waiting period expired. Exiting now",
				slog.Duration("period", waitOnShutdown),
			)

			return

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Info(
					"gatewatch pod mode processor exited",
					slog.Any("error", xerrors.New(err.Error())),
				)
			}
		}
	}
}
