package notify

import (
	"log"
	"time"
)

type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Notifier is the boundary the UI implements; the core only ever calls this.
type Notifier interface {
	Notify(message string, severity Severity, duration time.Duration)
}

// LogNotifier is the headless sink (tests, -simulate runs).
type LogNotifier struct{}

func (LogNotifier) Notify(message string, severity Severity, duration time.Duration) {
	switch severity {
	case Error:
		log.Printf("❌ %s", message)
	case Warning:
		log.Printf("⚠️ %s", message)
	case Success:
		log.Printf("✅ %s", message)
	default:
		log.Printf("ℹ️ %s", message)
	}
}

// Multi fans a notification out to several sinks (log + websocket hub).
type Multi []Notifier

func (m Multi) Notify(message string, severity Severity, duration time.Duration) {
	for _, n := range m {
		n.Notify(message, severity, duration)
	}
}
