package cache

import (
	"context"
	"sync"

	"github.com/roach88/wherefn/internal/filterir"
)

// Cache stores compiled units by source key.
//
// A miss is reported as (nil, false, nil). Errors are backend failures;
// callers treat them as misses. Units are immutable once stored, so
// backends may hand the same *CompiledUnit to concurrent callers.
type Cache interface {
	Get(ctx context.Context, key string) (*filterir.CompiledUnit, bool, error)
	Set(ctx context.Context, key string, unit *filterir.CompiledUnit) error
}

// Memory is an in-process Cache. The zero value is ready to use.
type Memory struct {
	mu    sync.RWMutex
	units map[string]*filterir.CompiledUnit
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{units: make(map[string]*filterir.CompiledUnit)}
}

func (m *Memory) Get(ctx context.Context, key string) (*filterir.CompiledUnit, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[key]
	return u, ok, nil
}

func (m *Memory) Set(ctx context.Context, key string, unit *filterir.CompiledUnit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.units == nil {
		m.units = make(map[string]*filterir.CompiledUnit)
	}
	m.units[key] = unit
	return nil
}

// Len returns the number of stored units.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.units)
}
