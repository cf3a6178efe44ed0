package lgr

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mdobak/go-xerrors"
	"github.com/natefinch/lumberjack"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the shared logger used across all processors and services.
var Logger *slog.Logger

var fileSink = &lumberjack.Logger{
	Filename:   "logs/gatewatch.log",
	MaxSize:    10, // MB
	MaxBackups: 10,
	MaxAge:     7,    // days
	Compress:   true, // compress old logs
}

func init() {
	Logger = newLogger(fileSink, slog.LevelInfo)
}

// Reconfigure points the file sink at a different folder and resets the
// minimum level. Meant to be called once from main after config is loaded.
func Reconfigure(logsFolder string, debug bool) {
	fileSink.Filename = filepath.Join(logsFolder, "gatewatch.log")
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	Logger = newLogger(fileSink, level)
}

func newLogger(sink io.Writer, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(io.MultiWriter(os.Stdout, sink), &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	})
	return slog.New(h)
}

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

// replaceAttr expands error attrs into a group carrying the message and,
// when the error was created with go-xerrors, its stack trace.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			a.Value = fmtErr(err)
		}
	}
	return a
}

func fmtErr(err error) slog.Value {
	groupValues := []slog.Attr{
		slog.String("msg", err.Error()),
	}
	if frames := marshalStack(err); frames != nil {
		groupValues = append(groupValues, slog.Any("trace", frames))
	}
	return slog.GroupValue(groupValues...)
}

func marshalStack(err error) []stackFrame {
	trc := xerrors.StackTrace(err)
	if len(trc) == 0 {
		return nil
	}
	frames := trc.Frames()
	s := make([]stackFrame, len(frames))
	for i, v := range frames {
		s[i] = stackFrame{
			Func:   filepath.Base(v.Function),
			Source: filepath.Join(filepath.Base(filepath.Dir(v.File)), filepath.Base(v.File)),
			Line:   v.Line,
		}
	}
	return s
}

// TraceAttrs surfaces the OTEL trace/span ids carried by ctx, if any, as
// slog attrs so that log lines can be correlated with traces.
func TraceAttrs(ctx context.Context) []any {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []any{
		slog.String("traceID", sc.TraceID().String()),
		slog.String("spanID", sc.SpanID().String()),
	}
}

// Banner prints the startup banner to the console. Kept out of the JSON
// log stream on purpose.
func Banner(name, version string) {
	color.New(color.FgHiCyan, color.Bold).Printf("%s ", name)
	color.New(color.FgHiWhite).Printf("%s\n", version)
}
