package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSignal is a hand-driven connectivity signal.
type fakeSignal struct {
	mu       sync.Mutex
	online   bool
	handlers []func(bool)
}

func (s *fakeSignal) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *fakeSignal) Subscribe(h func(bool)) func() {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
	return func() {}
}

func (s *fakeSignal) set(online bool) {
	s.mu.Lock()
	changed := s.online != online
	s.online = online
	handlers := append(([]func(bool))(nil), s.handlers...)
	s.mu.Unlock()
	if !changed {
		return
	}
	for _, h := range handlers {
		h(online)
	}
}

// memStorage is an in-memory Storage with failure injection.
type memStorage struct {
	mu       sync.Mutex
	queue    []Report
	stores   int
	failNext error
}

func (s *memStorage) Load() ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report(nil), s.queue...), nil
}

func (s *memStorage) Store(queue []Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.queue = append([]Report(nil), queue...)
	s.stores++
	return nil
}

func (s *memStorage) storeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores
}

// fakeSubmitter records deliveries and answers from a scriptable function.
type fakeSubmitter struct {
	mu        sync.Mutex
	delivered []Report
	respond   func(r Report) error
}

func (f *fakeSubmitter) Submit(ctx context.Context, r Report) error {
	f.mu.Lock()
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		if err := respond(r); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.delivered = append(f.delivered, r)
	f.mu.Unlock()
	return nil
}

func (f *fakeSubmitter) deliveries() []Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Report(nil), f.delivered...)
}

func (f *fakeSubmitter) setRespond(fn func(r Report) error) {
	f.mu.Lock()
	f.respond = fn
	f.mu.Unlock()
}

// flushRecorder captures flush completions for tests that rely on the
// automatic flush after a connectivity transition.
type flushRecorder struct {
	NoopEvents
	completed chan FlushResult
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{completed: make(chan FlushResult, 8)}
}

func (r *flushRecorder) FlushCompleted(res FlushResult) {
	r.completed <- res
}

func newTestManager(t *testing.T, online bool, opts ...Option) (*Manager, *fakeSubmitter, *fakeSignal, *memStorage) {
	t.Helper()
	sub := &fakeSubmitter{}
	sig := &fakeSignal{online: online}
	st := &memStorage{}
	m, err := New(sub, sig, st, opts...)
	require.NoError(t, err)
	return m, sub, sig, st
}

func report(category string) Report {
	return Report{
		Category:    category,
		Description: "test " + category,
		Latitude:    37.77,
		Longitude:   -122.42,
	}
}

func TestSendReportOfflineQueues(t *testing.T) {
	m, sub, _, _ := newTestManager(t, false)

	outcome, err := m.SendReport(context.Background(), report("FIRE"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)
	assert.Equal(t, 1, m.QueueLength())
	assert.Empty(t, sub.deliveries(), "offline send must not hit the network")
}

func TestSendReportOnlineImmediate(t *testing.T) {
	m, sub, _, st := newTestManager(t, true)

	outcome, err := m.SendReport(context.Background(), report("FLOOD"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
	assert.Equal(t, 0, m.QueueLength())
	assert.Len(t, sub.deliveries(), 1)
	assert.Equal(t, 0, st.storeCount(), "immediate success must not touch the queue")
}

func TestSendReportDefaultsSeverity(t *testing.T) {
	m, sub, _, _ := newTestManager(t, true)

	_, err := m.SendReport(context.Background(), report("MEDICAL"))
	require.NoError(t, err)
	require.Len(t, sub.deliveries(), 1)
	assert.Equal(t, "MEDIUM", sub.deliveries()[0].Severity)
}

func TestSendReportTransientFailureFallsBackToQueue(t *testing.T) {
	m, sub, _, _ := newTestManager(t, true)
	sub.setRespond(func(Report) error { return errors.New("connection refused") })

	outcome, err := m.SendReport(context.Background(), report("FIRE"))
	require.NoError(t, err, "network failures must not escape SendReport")
	assert.Equal(t, OutcomeQueued, outcome)
	assert.Equal(t, 1, m.QueueLength())
}

func TestSendReportPermanentRejectionNotQueued(t *testing.T) {
	m, _, _, _ := newTestManager(t, true)
	m.submitter.(*fakeSubmitter).setRespond(func(Report) error {
		return &PermanentError{Status: 400, Message: "latitude out of range"}
	})

	outcome, err := m.SendReport(context.Background(), report("OTHER"))
	assert.Equal(t, OutcomeRejected, outcome)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 0, m.QueueLength(), "rejected reports must not be retried")
}

func TestSendReportStorageFailureSurfaces(t *testing.T) {
	m, _, _, st := newTestManager(t, false)
	st.mu.Lock()
	st.failNext = errors.New("disk full")
	st.mu.Unlock()

	outcome, err := m.SendReport(context.Background(), report("FIRE"))
	assert.Equal(t, OutcomeNone, outcome)
	assert.Error(t, err)
	assert.Equal(t, 0, m.QueueLength(), "failed enqueue must roll back")
}

// No loss, no duplicates: everything queued offline arrives exactly once.
func TestFlushDeliversAllQueuedOnce(t *testing.T) {
	m, sub, _, _ := newTestManager(t, false)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := m.SendReport(context.Background(), report(fmt.Sprintf("CAT-%d", i)))
		require.NoError(t, err)
	}
	require.Equal(t, n, m.QueueLength())

	res, err := m.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlushResult{Synced: n, Remaining: 0}, res)
	assert.Equal(t, 0, m.QueueLength())

	delivered := sub.deliveries()
	require.Len(t, delivered, n)
	seen := map[string]bool{}
	for _, r := range delivered {
		assert.False(t, seen[r.Category], "duplicate delivery of %s", r.Category)
		seen[r.Category] = true
	}
}

// Reports flush in the order they were enqueued.
func TestFlushPreservesOrder(t *testing.T) {
	m, sub, _, _ := newTestManager(t, false)

	for i := 0; i < 4; i++ {
		_, err := m.SendReport(context.Background(), report(fmt.Sprintf("CAT-%d", i)))
		require.NoError(t, err)
	}

	_, err := m.Flush(context.Background())
	require.NoError(t, err)

	delivered := sub.deliveries()
	require.Len(t, delivered, 4)
	for i, r := range delivered {
		assert.Equal(t, fmt.Sprintf("CAT-%d", i), r.Category)
	}
}

// Item outcomes are independent: a failure in the middle leaves only that
// item queued, and the next flush delivers only it.
func TestFlushPartialFailure(t *testing.T) {
	m, sub, _, _ := newTestManager(t, false)

	for _, c := range []string{"ONE", "TWO", "THREE"} {
		_, err := m.SendReport(context.Background(), report(c))
		require.NoError(t, err)
	}

	sub.setRespond(func(r Report) error {
		if r.Category == "TWO" {
			return errors.New("timeout")
		}
		return nil
	})

	res, err := m.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlushResult{Synced: 2, Remaining: 1}, res)
	assert.Equal(t, 1, m.QueueLength())

	sub.setRespond(nil)
	res, err = m.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlushResult{Synced: 1, Remaining: 0}, res)

	delivered := sub.deliveries()
	require.Len(t, delivered, 3)
	assert.Equal(t, "TWO", delivered[2].Category, "failed item delivers on the second pass")
}

// Endpoint failing for every item: nothing synced, queue unchanged and in order.
func TestFlushAllFailingKeepsQueue(t *testing.T) {
	m, sub, _, st := newTestManager(t, false)

	for _, c := range []string{"A", "B"} {
		_, err := m.SendReport(context.Background(), report(c))
		require.NoError(t, err)
	}
	sub.setRespond(func(Report) error { return errors.New("unreachable") })

	res, err := m.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlushResult{Synced: 0, Remaining: 2}, res)
	assert.Equal(t, 2, m.QueueLength())

	queue, err := st.Load()
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "A", queue[0].Category)
	assert.Equal(t, "B", queue[1].Category)
}

// Permanently rejected items are dropped and counted, not retried forever.
func TestFlushDropsPermanentlyRejected(t *testing.T) {
	m, sub, _, _ := newTestManager(t, false)

	for _, c := range []string{"GOOD", "BAD"} {
		_, err := m.SendReport(context.Background(), report(c))
		require.NoError(t, err)
	}
	sub.setRespond(func(r Report) error {
		if r.Category == "BAD" {
			return &PermanentError{Status: 422, Message: "invalid payload"}
		}
		return nil
	})

	res, err := m.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlushResult{Synced: 1, Failed: 1, Remaining: 0}, res)
	assert.Equal(t, 0, m.QueueLength())
}

// Only one flush pass runs at a time; a concurrent call is a no-op.
func TestFlushCoalescesConcurrentCalls(t *testing.T) {
	m, sub, _, _ := newTestManager(t, false)

	for i := 0; i < 3; i++ {
		_, err := m.SendReport(context.Background(), report(fmt.Sprintf("CAT-%d", i)))
		require.NoError(t, err)
	}

	release := make(chan struct{})
	started := make(chan struct{}, 3)
	sub.setRespond(func(Report) error {
		started <- struct{}{}
		<-release
		return nil
	})

	done := make(chan FlushResult)
	go func() {
		res, _ := m.Flush(context.Background())
		done <- res
	}()

	<-started // first pass is inside an attempt

	_, err := m.Flush(context.Background())
	assert.ErrorIs(t, err, ErrFlushInProgress)

	close(release)
	res := <-done
	assert.Equal(t, 3, res.Synced)
	assert.Len(t, sub.deliveries(), 3, "no item may be double-sent")
}

// A report enqueued mid-flush is not picked up by the running pass.
func TestEnqueueDuringFlushWaitsForNextPass(t *testing.T) {
	m, sub, _, _ := newTestManager(t, false)

	_, err := m.SendReport(context.Background(), report("FIRST"))
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	sub.setRespond(func(Report) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	done := make(chan FlushResult)
	go func() {
		res, _ := m.Flush(context.Background())
		done <- res
	}()
	<-started

	// Still marked offline, so this lands in the queue behind the snapshot.
	_, err = m.SendReport(context.Background(), report("SECOND"))
	require.NoError(t, err)

	close(release)
	res := <-done
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, res.Remaining, "mid-flush enqueue waits for the next pass")
	assert.Equal(t, 1, m.QueueLength())
}

// End-to-end scenario: queue offline, reconnect, automatic flush drains it.
func TestConnectivityRestoredTriggersFlush(t *testing.T) {
	rec := newFlushRecorder()
	m, sub, sig, _ := newTestManager(t, false, WithEvents(rec))

	outcome, err := m.SendReport(context.Background(), Report{
		Category:  "FIRE",
		Severity:  "HIGH",
		Latitude:  37.77,
		Longitude: -122.42,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)
	assert.Equal(t, 1, m.QueueLength())

	sig.set(true)

	select {
	case res := <-rec.completed:
		assert.Equal(t, FlushResult{Synced: 1, Remaining: 0}, res)
	case <-time.After(5 * time.Second):
		t.Fatal("flush did not run after connectivity was restored")
	}
	assert.Equal(t, 0, m.QueueLength())
	assert.Len(t, sub.deliveries(), 1)
}

// The queue survives a restart: a new manager over the same storage picks
// up where the old one left off.
func TestQueueSurvivesRestart(t *testing.T) {
	sub := &fakeSubmitter{}
	sig := &fakeSignal{online: false}
	st := &memStorage{}

	m1, err := New(sub, sig, st)
	require.NoError(t, err)
	_, err = m1.SendReport(context.Background(), report("BEFORE-RESTART"))
	require.NoError(t, err)
	m1.Close()

	m2, err := New(sub, sig, st)
	require.NoError(t, err)
	assert.Equal(t, 1, m2.QueueLength())

	res, err := m2.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlushResult{Synced: 1, Remaining: 0}, res)
	require.Len(t, sub.deliveries(), 1)
	assert.Equal(t, "BEFORE-RESTART", sub.deliveries()[0].Category)
}

func TestFlushEmptyQueueIsNoop(t *testing.T) {
	rec := newFlushRecorder()
	m, _, _, st := newTestManager(t, true, WithEvents(rec))

	res, err := m.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlushResult{}, res)
	assert.Equal(t, 0, st.storeCount())
	select {
	case <-rec.completed:
		t.Fatal("empty flush should not emit a completion event")
	default:
	}
}

type queuedEvent struct {
	report Report
	reason string
}

type queuedRecorder struct {
	NoopEvents
	events chan queuedEvent
}

func (r *queuedRecorder) ReportQueued(rep Report, reason string) {
	r.events <- queuedEvent{report: rep, reason: reason}
}

func TestQueuedEventCarriesReason(t *testing.T) {
	recorder := &queuedRecorder{events: make(chan queuedEvent, 1)}
	m, _, _, _ := newTestManager(t, false, WithEvents(recorder))

	_, err := m.SendReport(context.Background(), report("FIRE"))
	require.NoError(t, err)

	select {
	case ev := <-recorder.events:
		assert.Equal(t, "offline", ev.reason)
		assert.Equal(t, "FIRE", ev.report.Category)
	default:
		t.Fatal("expected a queued event")
	}
}
