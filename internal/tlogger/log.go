package tlogger

import (
	"io"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Log is the default logger for apps
var Log log.Logger

var hlog log.Logger

var mu sync.RWMutex

// ApplyLogLevel applies min logging level, only the first call has an effect
var ApplyLogLevel func(string)

func init() {
	SetOutput(os.Stdout)
}

// SetOutput rebuilds the loggers on top of w and re-arms ApplyLogLevel.
// Tests use it to capture task output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	base := log.NewLogfmtLogger(log.NewSyncWriter(w))
	hlog = log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.Caller(6))
	Log = log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))

	ApplyLogLevel = func(lvl string) {
		var opt level.Option
		switch lvl {
		case "debug":
			opt = level.AllowDebug()
		case "warn":
			opt = level.AllowWarn()
		case "error":
			opt = level.AllowError()
		case "all":
			opt = level.AllowAll()
		default:
			opt = level.AllowInfo()
		}

		mu.Lock()
		Log = level.NewFilter(Log, opt)
		hlog = level.NewFilter(hlog, opt)
		ApplyLogLevel = func(string) {}
		mu.Unlock()
	}
}

func current() log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return hlog
}

// Debug add a log entry w/ Debug level
func Debug(keyvals ...interface{}) {
	level.Debug(current()).Log(keyvals...)
}

// Info add a log entry w/ Info level
func Info(keyvals ...interface{}) {
	level.Info(current()).Log(keyvals...)
}

// Warn add a log entry w/ Warn level
func Warn(keyvals ...interface{}) {
	level.Warn(current()).Log(keyvals...)
}

// Error add a log entry w/ Error level
func Error(keyvals ...interface{}) {
	level.Error(current()).Log(keyvals...)
}

// FatalIf logs keyvals and err at Error level and exits if err != nil
func FatalIf(err error, keyvals ...interface{}) {
	if err == nil {
		return
	}
	level.Error(current()).Log(append(keyvals, "err", err)...)
	os.Exit(1)
}
