// Package relay implements the offline-tolerant incident submission path.
// Reports that cannot be delivered immediately are persisted to a local
// durable queue and re-sent when connectivity returns.
package relay

// Report is a single incident report awaiting delivery.
type Report struct {
	// Seq is assigned at enqueue time and orders the durable queue.
	// It never leaves the local machine.
	Seq          int64   `json:"seq,omitempty"`
	Category     string  `json:"category"`
	Description  string  `json:"description"`
	Severity     string  `json:"severity,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ReporterID   string  `json:"reporterId,omitempty"`
	IsQuickAlert bool    `json:"isQuickAlert,omitempty"`
	// QueuedAt is the enqueue timestamp in milliseconds since epoch.
	QueuedAt int64 `json:"queuedAt,omitempty"`
}

// Outcome reports what happened to a single SendReport call.
type Outcome int

const (
	// OutcomeNone means the operation failed before a send or enqueue happened.
	OutcomeNone Outcome = iota
	// OutcomeSent means the report was delivered immediately.
	OutcomeSent
	// OutcomeQueued means the report was added to the durable queue.
	OutcomeQueued
	// OutcomeRejected means the endpoint permanently refused the report.
	// Rejected reports are not queued; retrying them would never succeed.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeQueued:
		return "queued"
	case OutcomeRejected:
		return "rejected"
	default:
		return "none"
	}
}

// FlushResult summarizes one flush pass over the queue.
type FlushResult struct {
	// Synced is the number of reports delivered during the pass.
	Synced int `json:"synced"`
	// Failed is the number of reports the endpoint permanently rejected.
	// They are dropped from the queue and surfaced through events.
	Failed int `json:"failed"`
	// Remaining is the queue length after the pass.
	Remaining int `json:"remaining"`
}
