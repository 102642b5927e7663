package breaker

import (
	"fmt"
	"sync"
	"time"
)

// State is the circuit position: closed passes calls through, open rejects
// them, half-open admits a single probe after the cooldown.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// OpenError is returned when the circuit is open and a call was rejected
// without reaching the upstream service.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit %q is open, retry after %s", e.Name, e.RetryAfter.Round(time.Second))
}

// Breaker fails fast when an upstream service keeps erroring, so callers get
// an immediate rejection instead of a hanging request during an outage.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	lastSuccess time.Time
}

func New(name string, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		state:     StateClosed,
	}
}

// Allow reports whether a call may proceed. It returns an *OpenError when the
// circuit is open; when the cooldown has elapsed it flips to half-open and
// admits the call as a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		elapsed := b.now().Sub(b.lastFailure)
		if elapsed < b.cooldown {
			return &OpenError{Name: b.name, RetryAfter: b.cooldown - elapsed}
		}
		b.state = StateHalfOpen
	}
	return nil
}

// Success resets the failure count and closes the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = StateClosed
	b.lastSuccess = b.now()
}

// Failure records a failed call. Consecutive failures at or above the
// threshold open the circuit; a failed half-open probe reopens it.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	if b.failures >= b.threshold || b.state == StateHalfOpen {
		b.state = StateOpen
	}
}

// Reset forces the circuit closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
}

type Status struct {
	Name       string  `json:"name"`
	State      State   `json:"state"`
	Failures   int     `json:"failures"`
	Threshold  int     `json:"threshold"`
	RetryAfter float64 `json:"retry_after_seconds,omitempty"`
}

// Status returns a snapshot for monitoring endpoints.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{
		Name:      b.name,
		State:     b.state,
		Failures:  b.failures,
		Threshold: b.threshold,
	}
	if b.state == StateOpen {
		remaining := b.cooldown - b.now().Sub(b.lastFailure)
		if remaining > 0 {
			st.RetryAfter = remaining.Seconds()
		}
	}
	return st
}
