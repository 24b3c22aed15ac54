package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
)

const defaultAttemptTimeout = 15 * time.Second

// Manager owns the durable queue of undelivered incident reports. It
// decides per report whether to send immediately or enqueue, and drains
// the queue when connectivity returns. All queue mutation goes through
// the manager; nothing else touches the storage.
type Manager struct {
	submitter Submitter
	signal    Signal
	storage   Storage
	events    Events

	attemptTimeout time.Duration
	unsubscribe    func()

	mu       sync.Mutex
	queue    []Report
	nextSeq  int64
	flushing bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithAttemptTimeout bounds each individual delivery attempt. A timed-out
// attempt counts as a transient failure.
func WithAttemptTimeout(d time.Duration) Option {
	return func(m *Manager) { m.attemptTimeout = d }
}

// WithEvents registers an advisory event listener.
func WithEvents(ev Events) Option {
	return func(m *Manager) { m.events = ev }
}

// New loads the persisted queue and subscribes to connectivity changes.
// An offline-to-online transition triggers a flush automatically.
func New(submitter Submitter, signal Signal, storage Storage, opts ...Option) (*Manager, error) {
	m := &Manager{
		submitter:      submitter,
		signal:         signal,
		storage:        storage,
		events:         NoopEvents{},
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	queue, err := storage.Load()
	if err != nil {
		return nil, err
	}
	m.queue = queue
	for _, r := range queue {
		if r.Seq >= m.nextSeq {
			m.nextSeq = r.Seq + 1
		}
	}
	if len(queue) > 0 {
		log.Infof("Relay loaded %d queued reports from storage", len(queue))
	}

	m.unsubscribe = signal.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			if _, err := m.Flush(context.Background()); err != nil && err != ErrFlushInProgress {
				log.Errorf("Relay flush after reconnect failed: %v", err)
			}
		}()
	})

	return m, nil
}

// Close detaches the manager from the connectivity signal. Queued reports
// stay in storage for the next session.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// SendReport attempts immediate delivery when online, falling back to the
// durable queue on any transient failure. Offline submissions are queued
// without a network attempt. Permanent endpoint rejections are returned
// to the caller and never queued.
func (m *Manager) SendReport(ctx context.Context, r Report) (Outcome, error) {
	if r.Severity == "" {
		r.Severity = "MEDIUM"
	}

	if !m.signal.Online() {
		if err := m.enqueue(r, "offline"); err != nil {
			return OutcomeNone, err
		}
		return OutcomeQueued, nil
	}

	err := m.attempt(ctx, r)
	switch {
	case err == nil:
		log.Infof("Incident report sent (category %s)", r.Category)
		m.events.ReportSent(r)
		return OutcomeSent, nil
	case IsPermanent(err):
		log.Warnf("Incident report rejected by endpoint: %v", err)
		return OutcomeRejected, err
	default:
		log.Warnf("Immediate send failed, queueing report: %v", err)
		if qerr := m.enqueue(r, "delivery failed"); qerr != nil {
			return OutcomeNone, qerr
		}
		return OutcomeQueued, nil
	}
}

// Flush walks a snapshot of the queue in enqueue order, attempting each
// report once. Delivered reports are removed from durable storage as they
// are confirmed; failed ones stay, in order, for the next pass. Reports
// enqueued while the pass runs are left for a later flush. Only one pass
// runs at a time; concurrent calls return ErrFlushInProgress.
func (m *Manager) Flush(ctx context.Context) (FlushResult, error) {
	m.mu.Lock()
	if m.flushing {
		remaining := len(m.queue)
		m.mu.Unlock()
		return FlushResult{Remaining: remaining}, ErrFlushInProgress
	}
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return FlushResult{}, nil
	}
	m.flushing = true
	snapshot := make([]Report, len(m.queue))
	copy(snapshot, m.queue)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.flushing = false
		m.mu.Unlock()
	}()

	log.Infof("Relay flushing %d queued reports...", len(snapshot))
	m.events.FlushStarted(len(snapshot))

	var res FlushResult
	var storeErr error
	for _, item := range snapshot {
		err := m.attempt(ctx, item)
		switch {
		case err == nil:
			if rerr := m.remove(item.Seq); rerr != nil && storeErr == nil {
				storeErr = rerr
			}
			res.Synced++
			m.events.ItemSynced(item)
		case IsPermanent(err):
			// The endpoint will never accept this one. Drop it so the
			// queue does not retry it forever, and surface the failure.
			log.Warnf("Relay dropping rejected report (seq %d): %v", item.Seq, err)
			if rerr := m.remove(item.Seq); rerr != nil && storeErr == nil {
				storeErr = rerr
			}
			res.Failed++
			m.events.ItemFailed(item, err)
		default:
			log.Warnf("Relay sync failed for report (seq %d), keeping queued: %v", item.Seq, err)
		}
	}

	m.mu.Lock()
	res.Remaining = len(m.queue)
	m.mu.Unlock()

	log.Infof("Relay flush finished: %d synced, %d rejected, %d remaining",
		res.Synced, res.Failed, res.Remaining)
	m.events.FlushCompleted(res)
	return res, storeErr
}

// QueueLength returns the current number of undelivered reports. It may
// lag a concurrent flush by a moment.
func (m *Manager) QueueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// attempt performs one bounded delivery attempt.
func (m *Manager) attempt(ctx context.Context, r Report) error {
	ctx, cancel := context.WithTimeout(ctx, m.attemptTimeout)
	defer cancel()
	return m.submitter.Submit(ctx, r)
}

// enqueue appends the report to the durable queue. The in-memory queue is
// rolled back if persisting fails, so memory and storage never diverge.
func (m *Manager) enqueue(r Report, reason string) error {
	m.mu.Lock()
	r.Seq = m.nextSeq
	m.nextSeq++
	if r.QueuedAt == 0 {
		r.QueuedAt = time.Now().UnixMilli()
	}
	m.queue = append(m.queue, r)
	if err := m.storage.Store(m.queue); err != nil {
		m.queue = m.queue[:len(m.queue)-1]
		m.nextSeq--
		m.mu.Unlock()
		return fmt.Errorf("relay: failed to persist queue: %w", err)
	}
	length := len(m.queue)
	m.mu.Unlock()

	log.Infof("Incident report queued (%s), %d pending", reason, length)
	m.events.ReportQueued(r, reason)
	return nil
}

// remove deletes one report from the queue by sequence number and persists
// the shrunk queue. The in-memory removal stands even if persisting fails:
// the report was confirmed delivered and must not be re-sent this session.
func (m *Manager) remove(seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.queue[:0]
	for _, r := range m.queue {
		if r.Seq != seq {
			kept = append(kept, r)
		}
	}
	m.queue = kept
	if err := m.storage.Store(m.queue); err != nil {
		return fmt.Errorf("relay: failed to persist queue after delivery: %w", err)
	}
	return nil
}
