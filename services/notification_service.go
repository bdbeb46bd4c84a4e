package services

import "log"

// Notifier is the fire-and-forget notification boundary. Implementations
// must be safe for concurrent use; callers never await delivery and ignore
// failures.
type Notifier interface {
	Notify(participantID, title, body string)
}

// LogNotifier is the default dispatcher: it just logs. The socket package
// provides a realtime implementation.
type LogNotifier struct{}

func (LogNotifier) Notify(participantID, title, body string) {
	log.Printf("🔔 [notify %s] %s: %s", participantID, title, body)
}
