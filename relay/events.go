package relay

// Events receives advisory notifications about relay activity. UI layers
// bind toasts and badges to these; the relay itself attaches no meaning
// to them. Implementations must not block.
type Events interface {
	// ReportQueued fires when a report lands in the durable queue instead
	// of being sent, with a human-readable reason.
	ReportQueued(r Report, reason string)
	// ReportSent fires when an immediate send succeeds.
	ReportSent(r Report)
	// FlushStarted fires at the start of a flush pass with the number of
	// queued reports in its snapshot.
	FlushStarted(pending int)
	// ItemSynced fires for each queued report delivered during a flush.
	ItemSynced(r Report)
	// ItemFailed fires for each queued report the endpoint permanently
	// rejected during a flush. The report is removed from the queue.
	ItemFailed(r Report, err error)
	// FlushCompleted fires when a flush pass finishes.
	FlushCompleted(res FlushResult)
}

// NoopEvents discards all notifications. Embed it to implement only the
// events you care about.
type NoopEvents struct{}

func (NoopEvents) ReportQueued(Report, string) {}
func (NoopEvents) ReportSent(Report)           {}
func (NoopEvents) FlushStarted(int)            {}
func (NoopEvents) ItemSynced(Report)           {}
func (NoopEvents) ItemFailed(Report, error)    {}
func (NoopEvents) FlushCompleted(FlushResult)  {}
