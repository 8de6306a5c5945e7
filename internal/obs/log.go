// Package obs holds the service's observability primitives: the shared
// JSON-line logger and the Prometheus metrics.
package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	initLogger sync.Once
	jsonLogger *log.Logger
)

// Logger returns the process-wide logger. Output is one JSON object per
// line on stdout; callers are expected to hand it pre-marshalled lines.
func Logger() *log.Logger {
	initLogger.Do(func() {
		jsonLogger = log.New(os.Stdout, "", 0)
	})
	return jsonLogger
}

// LogRequest marshals the given fields and emits them as one log line.
func LogRequest(fields map[string]any) {
	line, err := json.Marshal(fields)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(line))
}
