package storage

import (
	"context"
	"sync"
)

// MemoryStorage keeps plans in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu    sync.RWMutex
	plans map[string]StoredPlan
	order []string
}

// NewMemoryStorage initialises an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		plans: make(map[string]StoredPlan),
	}
}

// SavePlan stores a defensive copy of plan, replacing any plan with the same ID.
func (s *MemoryStorage) SavePlan(_ context.Context, plan StoredPlan) error {
	if plan.ID == "" {
		return ErrInvalidPlan
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[plan.ID]; !exists {
		s.order = append(s.order, plan.ID)
	}
	s.plans[plan.ID] = clonePlan(plan)
	return nil
}

// GetPlan returns a defensive copy of the stored plan.
func (s *MemoryStorage) GetPlan(_ context.Context, id string) (StoredPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[id]
	if !ok {
		return StoredPlan{}, ErrNotFound
	}
	return clonePlan(plan), nil
}

// ListPlans returns up to limit plans, most recently saved first.
func (s *MemoryStorage) ListPlans(_ context.Context, limit int) ([]StoredPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]StoredPlan, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, clonePlan(s.plans[s.order[i]]))
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStorage) Close() error {
	return nil
}
