// Package health tracks per-source failure state so the aggregator can stop
// consulting a source that keeps erroring instead of burning quota on it.
package health

import (
	"sync"
	"time"
)

// State is the breaker position for one source.
type State int

const (
	// StateClosed is normal operation, calls flow through.
	StateClosed State = iota
	// StateOpen means the source tripped and calls are skipped until the
	// cooldown elapses.
	StateOpen
	// StateHalfOpen allows a single probe call to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a source trips and how long it sits out.
type BreakerConfig struct {
	// Threshold is the consecutive-failure count that opens the breaker.
	Threshold int
	// Cooldown is how long an open breaker rejects calls before allowing
	// a probe.
	Cooldown time.Duration
}

// DefaultBreakerConfig suits polled marketplace APIs: three strikes, then
// sit out for a minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 3, Cooldown: time.Minute}
}

// Breaker guards calls to a single source.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	now      func() time.Time
}

func newBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether the source should be called right now. An open
// breaker whose cooldown has elapsed moves to half-open and admits probes
// until the next Record settles it.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
			b.state = StateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// Record feeds the outcome of a call back into the breaker. A success closes
// it and clears the failure count; a half-open failure reopens immediately.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.Threshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// State returns the current breaker position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerSet lazily allocates one breaker per source name.
type BreakerSet struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerSet creates an empty set sharing one config.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	return &BreakerSet{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// For returns the breaker for a source, creating it on first use.
func (s *BreakerSet) For(source string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[source]
	if !ok {
		b = newBreaker(s.cfg)
		s.breakers[source] = b
	}
	return b
}
