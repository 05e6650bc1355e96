package engine

import "log"

// Notifier pushes operator-facing messages for every state transition:
// entries, exits, break-even moves, halts, errors.
type Notifier interface {
	Notify(text string)
}

// LogNotifier writes notifications to the process log. Used standalone when
// the operator channel is disabled, or wrapped by MultiNotifier.
type LogNotifier struct{}

func (LogNotifier) Notify(text string) {
	log.Printf("[notify] %s", text)
}

// MultiNotifier fans a notification out to several sinks.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(text string) {
	for _, n := range m {
		n.Notify(text)
	}
}
