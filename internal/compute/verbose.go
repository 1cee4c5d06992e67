package compute

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	verboseOnce sync.Once
	verboseLog  *zap.Logger
)

// Verbose returns the execution-trace logger. Tracing is off unless the
// ONEDNN_VERBOSE environment variable is set to a non-zero value, in which
// case primitive creation and dispatch are logged with timings.
func Verbose() *zap.Logger {
	verboseOnce.Do(func() {
		v := os.Getenv("ONEDNN_VERBOSE")
		if v == "" || v == "0" {
			verboseLog = zap.NewNop()
			return
		}
		log, err := zap.NewDevelopment()
		if err != nil {
			verboseLog = zap.NewNop()
			return
		}
		verboseLog = log.Named("onednn")
	})
	return verboseLog
}
