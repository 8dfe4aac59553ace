package payment

import "sync"

// ConsumedStore tracks the simulator's issued and consumed order ids.
type ConsumedStore interface {
	Issue(orderID string)
	Issued(orderID string) bool
	// Consume marks orderID as paid. It reports false if it already was.
	Consume(orderID string) bool
	Consumed(orderID string) bool
}

// MemoryStore is a ConsumedStore that lives as long as the process.
type MemoryStore struct {
	mu       sync.RWMutex
	issued   map[string]struct{}
	consumed map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issued:   make(map[string]struct{}),
		consumed: make(map[string]struct{}),
	}
}

func (s *MemoryStore) Issue(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[orderID] = struct{}{}
}

func (s *MemoryStore) Issued(orderID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.issued[orderID]
	return ok
}

func (s *MemoryStore) Consume(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.consumed[orderID]; ok {
		return false
	}
	s.consumed[orderID] = struct{}{}
	return true
}

func (s *MemoryStore) Consumed(orderID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.consumed[orderID]
	return ok
}
