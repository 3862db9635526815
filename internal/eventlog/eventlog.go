// Package eventlog emits structured JSON log lines for domain events, one
// object per line, alongside the human-readable log.Printf output.
package eventlog

import (
	"encoding/json"
	"io"
	"log"
	"time"
)

// Logger writes JSON event lines tagged with a component and instance.
type Logger struct {
	component string
	instance  string
	out       *log.Logger
}

// New creates a Logger that writes through the standard logger.
func New(component, instance string) *Logger {
	return &Logger{component: component, instance: instance, out: log.Default()}
}

// NewWithWriter creates a Logger that writes bare JSON lines to w.
func NewWithWriter(component, instance string, w io.Writer) *Logger {
	return &Logger{component: component, instance: instance, out: log.New(w, "", 0)}
}

// Event logs an info-level event.
func (l *Logger) Event(eventType string, data map[string]interface{}) {
	l.write("info", eventType, data)
}

// Warn logs a warn-level event.
func (l *Logger) Warn(eventType string, data map[string]interface{}) {
	l.write("warn", eventType, data)
}

func (l *Logger) write(level, eventType string, data map[string]interface{}) {
	entry := make(map[string]interface{}, len(data)+5)
	for k, v := range data {
		entry[k] = v
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level
	entry["component"] = l.component
	entry["event_type"] = eventType
	entry["instance"] = l.instance

	jsonData, err := json.Marshal(entry)
	if err != nil {
		l.out.Printf("[%s] Failed to marshal log event: %v", l.component, err)
		return
	}

	l.out.Println(string(jsonData))
}
