package domain

import "time"

type EventType string

const (
	EventStarted        EventType = "started"
	EventRetrying       EventType = "retrying"
	EventRetryScheduled EventType = "retry_scheduled"
	EventFailed         EventType = "failed"
	EventFailedHTTP     EventType = "failed_http"
	EventCompleted      EventType = "completed"
	EventSummarize      EventType = "summarize"
)

// Event is a transient lifecycle message produced by the scheduler and the
// fetch state machine, and consumed by the accounting sink. Only the fields
// relevant to the Type are populated.
type Event struct {
	Type EventType

	// Subject is the locator or file path the event refers to.
	Subject string

	// Attempts carries the stall tick count for EventRetrying. The narrow
	// width is deliberate: ticks are counted modulo the warn/abandon
	// thresholds, so wrap-around is harmless.
	Attempts uint8

	// Delay is the scheduled backoff pause for EventRetryScheduled.
	Delay time.Duration

	// Status is the offending HTTP status for EventFailedHTTP.
	Status int
}

func Started(subject string) Event {
	return Event{Type: EventStarted, Subject: subject}
}

func Retrying(subject string, attempts uint8) Event {
	return Event{Type: EventRetrying, Subject: subject, Attempts: attempts}
}

func RetryScheduled(subject string, delay time.Duration) Event {
	return Event{Type: EventRetryScheduled, Subject: subject, Delay: delay}
}

func Failed(subject string) Event {
	return Event{Type: EventFailed, Subject: subject}
}

func FailedHTTP(subject string, status int) Event {
	return Event{Type: EventFailedHTTP, Subject: subject, Status: status}
}

func Completed(subject string) Event {
	return Event{Type: EventCompleted, Subject: subject}
}

// Summarize asks the sink to report final counters and stop receiving.
func Summarize() Event {
	return Event{Type: EventSummarize}
}
