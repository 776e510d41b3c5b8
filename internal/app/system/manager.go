package system

import (
	"context"
	"fmt"
	"sync"

	"github.com/lancechain/ledger/pkg/logger"
)

// Manager starts and stops registered services deterministically: start in
// registration order, stop in reverse. A failed start stops everything that
// already started before returning.
type Manager struct {
	mu       sync.Mutex
	services []Service
	started  int
	log      *logger.Logger
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{log: logger.NewDefault("system")}
}

// Register adds a service. Call before Start; registration order is start
// order.
func (m *Manager) Register(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, svc)
}

// Start starts all registered services in order.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := m.started; i < len(m.services); i++ {
		svc := m.services[i]
		if err := svc.Start(ctx); err != nil {
			m.stopLocked(ctx)
			return fmt.Errorf("starting %s: %w", svc.Name(), err)
		}
		m.log.WithField("service", svc.Name()).Info("service started")
		m.started = i + 1
	}
	return nil
}

// Stop stops started services in reverse order. All services get a stop
// attempt; the first error is returned.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var firstErr error
	for i := m.started - 1; i >= 0; i-- {
		svc := m.services[i]
		if err := svc.Stop(ctx); err != nil {
			m.log.WithError(err).WithField("service", svc.Name()).Error("service stop failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("stopping %s: %w", svc.Name(), err)
			}
			continue
		}
		m.log.WithField("service", svc.Name()).Info("service stopped")
	}
	m.started = 0
	return firstErr
}
