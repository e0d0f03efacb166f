package obs

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits a structured JSON log line with common HTTP fields.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// LogEventf emits a structured operational event with a formatted detail
// string. Used for failures that must reach operators without failing
// the request that observed them.
func LogEventf(event, format string, args ...any) {
	LogRequest(map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"level":  "error",
		"msg":    event,
		"detail": fmt.Sprintf(format, args...),
	})
}
