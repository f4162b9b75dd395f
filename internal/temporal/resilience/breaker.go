package resilience

import (
	"sync"
	"time"
)

// CircuitState is the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means requests flow normally.
	CircuitClosed CircuitState = iota

	// CircuitOpen means requests are rejected until the cooldown elapses.
	CircuitOpen

	// CircuitHalfOpen means a probe request is allowed through; its outcome
	// closes or reopens the circuit.
	CircuitHalfOpen
)

// String returns a human-readable name for the state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// ConsecutiveThreshold is the number of consecutive failures that opens
	// the circuit.
	ConsecutiveThreshold int

	// Cooldown is how long the circuit stays open before allowing a probe.
	Cooldown time.Duration
}

// CircuitBreaker tracks consecutive failures against one dependency and
// rejects requests while the dependency is considered down. It is safe for
// concurrent use.
type CircuitBreaker struct {
	mu       sync.Mutex
	config   BreakerConfig
	state    CircuitState
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.ConsecutiveThreshold <= 0 {
		config.ConsecutiveThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 60 * time.Second
	}
	return &CircuitBreaker{
		config: config,
		state:  CircuitClosed,
		now:    time.Now,
	}
}

// Allow reports whether a request may proceed. An open circuit transitions
// to half-open once the cooldown has elapsed, letting a single probe through.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if b.now().Sub(b.openedAt) >= b.config.Cooldown {
			b.state = CircuitHalfOpen
			return true
		}
		return false
	}
	return true
}

// RecordSuccess resets the failure count and closes the circuit.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = CircuitClosed
}

// RecordFailure counts a failure, opening the circuit when the consecutive
// threshold is reached. A failed half-open probe reopens immediately.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == CircuitHalfOpen || b.failures >= b.config.ConsecutiveThreshold {
		b.state = CircuitOpen
		b.openedAt = b.now()
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// defaultBreakerConfigs covers the pipeline's external dependencies.
var defaultBreakerConfigs = map[string]BreakerConfig{
	"arxiv": {
		ConsecutiveThreshold: 5,
		Cooldown:             60 * time.Second,
	},
	"llm": {
		ConsecutiveThreshold: 3,
		Cooldown:             30 * time.Second,
	},
}

// BreakerRegistry provides named circuit breakers, lazily created on first
// access. It is safe for concurrent use.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	configs  map[string]BreakerConfig
}

// NewBreakerRegistry creates a BreakerRegistry with default configurations
// for the known dependencies.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		configs:  defaultBreakerConfigs,
	}
}

// NewBreakerRegistryWithConfigs creates a BreakerRegistry with custom
// configurations merged over the defaults.
func NewBreakerRegistryWithConfigs(configs map[string]BreakerConfig) *BreakerRegistry {
	merged := make(map[string]BreakerConfig, len(defaultBreakerConfigs))
	for k, v := range defaultBreakerConfigs {
		merged[k] = v
	}
	for k, v := range configs {
		merged[k] = v
	}
	return &BreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		configs:  merged,
	}
}

// Get returns the circuit breaker for the given dependency name, creating
// it on first access.
func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg, ok := r.configs[name]
	if !ok {
		cfg = BreakerConfig{ConsecutiveThreshold: 5, Cooldown: 60 * time.Second}
	}

	cb := NewCircuitBreaker(cfg)
	r.breakers[name] = cb
	return cb
}

// State returns the current state of the named breaker, or CircuitClosed
// if the breaker has not been created yet.
func (r *BreakerRegistry) State(name string) CircuitState {
	r.mu.Lock()
	cb, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return CircuitClosed
	}
	return cb.State()
}
