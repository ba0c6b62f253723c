package nvelope

import (
	"net/http"

	"github.com/muir/nact"
)

type requestLogger struct {
	log    nact.BasicLogger
	fields map[string]interface{}
}

// RequestLogger wraps a logger so that every message carries the
// request method, uri and (if not empty) request id.
func RequestLogger(log nact.BasicLogger, r *http.Request, requestID string) nact.BasicLogger {
	fields := map[string]interface{}{
		"method": r.Method,
		"uri":    r.URL.String(),
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return requestLogger{
		log:    log,
		fields: fields,
	}
}

func (l requestLogger) with(fields []map[string]interface{}) []map[string]interface{} {
	return append([]map[string]interface{}{l.fields}, fields...)
}

func (l requestLogger) Error(msg string, fields ...map[string]interface{}) {
	l.log.Error(msg, l.with(fields)...)
}

func (l requestLogger) Warn(msg string, fields ...map[string]interface{}) {
	l.log.Warn(msg, l.with(fields)...)
}

func (l requestLogger) Debug(msg string, fields ...map[string]interface{}) {
	l.log.Debug(msg, l.with(fields)...)
}

// Flush passes through to the wrapped logger if it can flush
func (l requestLogger) Flush() {
	if f, ok := l.log.(LogFlusher); ok {
		f.Flush()
	}
}
