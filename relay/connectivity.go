package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
)

// Signal reports the current connectivity state and notifies subscribers
// about transitions.
type Signal interface {
	Online() bool
	// Subscribe registers a handler invoked on every online/offline
	// transition. The returned function removes the handler.
	Subscribe(handler func(online bool)) (unsubscribe func())
}

// ProbeSignal determines connectivity by periodically probing an HTTP
// endpoint, typically the API server's /health route.
type ProbeSignal struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu       sync.Mutex
	online   bool
	handlers map[int]func(online bool)
	nextID   int
	cancel   context.CancelFunc
}

// NewProbeSignal creates a signal that probes url every interval.
// The signal starts offline until the first successful probe.
func NewProbeSignal(url string, interval time.Duration) *ProbeSignal {
	return &ProbeSignal{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		handlers: make(map[int]func(online bool)),
	}
}

// Start launches the probe loop. It runs until ctx is canceled or Stop
// is called.
func (s *ProbeSignal) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.setOnline(s.probe(ctx))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.setOnline(s.probe(ctx))
			}
		}
	}()
}

// Stop terminates the probe loop.
func (s *ProbeSignal) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *ProbeSignal) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *ProbeSignal) Subscribe(handler func(online bool)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

func (s *ProbeSignal) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// setOnline records the new state and fires handlers on transitions.
func (s *ProbeSignal) setOnline(online bool) {
	s.mu.Lock()
	if online == s.online {
		s.mu.Unlock()
		return
	}
	s.online = online
	handlers := make([]func(bool), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	if online {
		log.Infof("Connectivity restored (%s reachable)", s.url)
	} else {
		log.Warnf("Connectivity lost (%s unreachable)", s.url)
	}
	for _, h := range handlers {
		h(online)
	}
}
