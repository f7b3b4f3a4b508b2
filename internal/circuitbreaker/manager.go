package circuitbreaker

import (
	"context"
	"sort"
	"sync"

	"shard-federator/internal/common/logging"
)

// Manager hands out one breaker per shard identity.
type Manager struct {
	config   Config
	breakers map[string]*Breaker
	logger   logging.Logger
	mu       sync.RWMutex
}

// NewManager creates a manager whose breakers all share config
func NewManager(config Config, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Manager{
		config:   config,
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}
}

// GetOrCreate gets an existing circuit breaker or creates a new one
func (m *Manager) GetOrCreate(name string) *Breaker {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()
	if exists {
		return breaker
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}

	breaker = New(name, m.config, m.logger)
	m.breakers[name] = breaker
	return breaker
}

// Get retrieves an existing circuit breaker by name
func (m *Manager) Get(name string) (*Breaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	breaker, exists := m.breakers[name]
	return breaker, exists
}

// Execute runs fn through the breaker registered under name
func (m *Manager) Execute(ctx context.Context, name string, fn func() error) error {
	return m.GetOrCreate(name).Execute(ctx, fn)
}

// AllStats returns statistics for all circuit breakers ordered by name
func (m *Manager) AllStats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]Stats, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		stats = append(stats, breaker.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	return stats
}

// Reset resets all circuit breakers to closed state
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, breaker := range m.breakers {
		breaker.Reset()
		m.logger.Info("Circuit breaker reset",
			logging.String("breaker", name),
		)
	}
}

// IsOpen checks if a circuit breaker is in open state
func (m *Manager) IsOpen(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker.IsOpen()
	}

	return false
}
