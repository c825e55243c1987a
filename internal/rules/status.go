package rules

import (
	"sync"
	"time"
)

// Status exposes engine counters to the status page. The engine writes from
// its single goroutine; the web server reads concurrently, hence the lock.
type Status struct {
	mu sync.Mutex

	state       string
	connectedAt time.Time
	lastWakeup  time.Time
	lastError   string

	wakeups     uint64
	sends       uint64
	rejections  uint64
	proxiedURLs uint64
	ruleMatches map[string]uint64
}

func newStatus() *Status {
	return &Status{state: "connecting", ruleMatches: make(map[string]uint64)}
}

// StatusSnapshot is a copy of the counters at one point in time.
type StatusSnapshot struct {
	State       string
	ConnectedAt time.Time
	LastWakeup  time.Time
	LastError   string
	Wakeups     uint64
	Sends       uint64
	Rejections  uint64
	ProxiedURLs uint64
	RuleMatches map[string]uint64
}

func (s *Status) Snapshot() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make(map[string]uint64, len(s.ruleMatches))
	for name, n := range s.ruleMatches {
		matches[name] = n
	}
	return StatusSnapshot{
		State:       s.state,
		ConnectedAt: s.connectedAt,
		LastWakeup:  s.lastWakeup,
		LastError:   s.lastError,
		Wakeups:     s.wakeups,
		Sends:       s.sends,
		Rejections:  s.rejections,
		ProxiedURLs: s.proxiedURLs,
		RuleMatches: matches,
	}
}

func (s *Status) setState(state string) {
	s.mu.Lock()
	s.state = state
	if state == "active" {
		s.connectedAt = time.Now()
	}
	s.mu.Unlock()
}

func (s *Status) setError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

func (s *Status) wakeup() {
	s.mu.Lock()
	s.wakeups++
	s.lastWakeup = time.Now()
	s.mu.Unlock()
}

func (s *Status) matched(rule string, count int) {
	s.mu.Lock()
	s.ruleMatches[rule] += uint64(count)
	s.mu.Unlock()
}

func (s *Status) sent() {
	s.mu.Lock()
	s.sends++
	s.mu.Unlock()
}

func (s *Status) rejected() {
	s.mu.Lock()
	s.rejections++
	s.mu.Unlock()
}

func (s *Status) proxied(count int) {
	if count <= 0 {
		return
	}
	s.mu.Lock()
	s.proxiedURLs += uint64(count)
	s.mu.Unlock()
}
