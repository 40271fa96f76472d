package storage

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/egperson/network-printer-solution/common/logger"
)

// Log is the structured logger injected by the application.
var Log *logger.Logger

// SetLogger injects the structured logger.
func SetLogger(l *logger.Logger) {
	Log = l
}

func logWithLevel(level logger.LogLevel, msg string, kv ...interface{}) {
	if Log != nil {
		switch level {
		case logger.ERROR:
			Log.Error(msg, kv...)
		case logger.WARN:
			Log.Warn(msg, kv...)
		case logger.DEBUG:
			Log.Debug(msg, kv...)
		default:
			Log.Info(msg, kv...)
		}
		return
	}
	if level > logger.WARN {
		return
	}
	fmt.Fprintf(os.Stderr, "%s [store][%s] %s%s\n",
		time.Now().Format(time.RFC3339), logger.LevelToString(level), msg, formatKeyValues(kv...))
}

func formatKeyValues(kv ...interface{}) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}

func logInfo(msg string, kv ...interface{})  { logWithLevel(logger.INFO, msg, kv...) }
func logWarn(msg string, kv ...interface{})  { logWithLevel(logger.WARN, msg, kv...) }
func logError(msg string, kv ...interface{}) { logWithLevel(logger.ERROR, msg, kv...) }
