// Package reconnect paces retries of a failing connection with exponential
// backoff and a circuit breaker. The Kafka consumer uses it between failed fetches.
package reconnect

import (
	"context"
	"sync"
	"time"

	"navfund/pkg/logger"
)

// Manager tracks consecutive failures and the delay before the next attempt
type Manager struct {
	minBackoff        time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	maxRetries        int
	circuitResetAfter time.Duration

	mu                  sync.RWMutex
	currentBackoff      time.Duration
	consecutiveFailures int
	totalRecoveries     int
	circuitOpen         bool // open = wait circuitResetAfter before the next attempt
	circuitOpenedAt     time.Time

	now    func() time.Time
	logger *logger.Logger
}

// Config configures the reconnect manager
type Config struct {
	MinBackoff        time.Duration // Initial backoff (e.g. 1s)
	MaxBackoff        time.Duration // Max backoff (e.g. 1min)
	BackoffMultiplier float64       // Multiplier for exponential backoff (e.g. 2.0)
	MaxRetries        int           // Consecutive failures before the circuit opens
	CircuitResetAfter time.Duration // How long the circuit stays open
}

// NewManager creates a new reconnect manager with sensible defaults
func NewManager(config Config, log *logger.Logger) *Manager {
	if config.MinBackoff == 0 {
		config.MinBackoff = 1 * time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = time.Minute
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = 2.0
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 10
	}
	if config.CircuitResetAfter == 0 {
		config.CircuitResetAfter = 5 * time.Minute
	}
	if log == nil {
		log = logger.Get()
	}

	return &Manager{
		minBackoff:        config.MinBackoff,
		maxBackoff:        config.MaxBackoff,
		backoffMultiplier: config.BackoffMultiplier,
		maxRetries:        config.MaxRetries,
		circuitResetAfter: config.CircuitResetAfter,
		currentBackoff:    config.MinBackoff,
		now:               time.Now,
		logger:            log,
	}
}

// Delay returns how long to wait before the next attempt. While the circuit
// is open that is the rest of the reset period.
func (m *Manager) Delay() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.circuitOpen {
		remaining := m.circuitResetAfter - m.now().Sub(m.circuitOpenedAt)
		if remaining > 0 {
			return remaining
		}
	}
	return m.currentBackoff
}

// RecordFailure records a failed attempt and grows the backoff
func (m *Manager) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveFailures++

	next := time.Duration(float64(m.currentBackoff) * m.backoffMultiplier)
	if next > m.maxBackoff {
		next = m.maxBackoff
	}
	m.currentBackoff = next

	m.logger.Warnw("Attempt failed",
		"consecutive_failures", m.consecutiveFailures,
		"next_backoff", m.currentBackoff,
	)

	if m.consecutiveFailures >= m.maxRetries && !m.circuitOpen {
		m.circuitOpen = true
		m.circuitOpenedAt = m.now()

		m.logger.Errorw("Circuit breaker opened",
			"consecutive_failures", m.consecutiveFailures,
			"circuit_reset_after", m.circuitResetAfter,
		)
	}
}

// RecordSuccess resets backoff and closes the circuit
func (m *Manager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consecutiveFailures == 0 {
		return
	}

	m.logger.Infow("Connection recovered, resetting backoff",
		"previous_consecutive_failures", m.consecutiveFailures,
	)

	m.currentBackoff = m.minBackoff
	m.consecutiveFailures = 0
	m.totalRecoveries++
	m.circuitOpen = false
	m.circuitOpenedAt = time.Time{}
}

// Wait sleeps for Delay or until ctx is done
func (m *Manager) Wait(ctx context.Context) error {
	timer := time.NewTimer(m.Delay())
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats contains reconnection statistics
type Stats struct {
	ConsecutiveFailures int
	TotalRecoveries     int
	CurrentBackoff      time.Duration
	CircuitOpen         bool
	CircuitOpenedAt     time.Time
}

// GetStats returns current reconnect manager stats
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		ConsecutiveFailures: m.consecutiveFailures,
		TotalRecoveries:     m.totalRecoveries,
		CurrentBackoff:      m.currentBackoff,
		CircuitOpen:         m.circuitOpen,
		CircuitOpenedAt:     m.circuitOpenedAt,
	}
}
