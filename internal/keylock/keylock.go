// Package keylock serializes work per key, either inside one process or
// across instances through Redis.
package keylock

import (
	"context"
	"errors"
	"sync"
)

// ErrTimeout is returned when a lock could not be acquired in time
var ErrTimeout = errors.New("keylock: timed out waiting for lock")

// Locker hands out exclusive locks by key. The returned release func must be
// called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Memory is an in-process Locker
type Memory struct {
	mu    sync.Mutex
	locks map[string]*memLock
}

type memLock struct {
	ch   chan struct{}
	refs int
}

// NewMemory creates an in-process Locker
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*memLock)}
}

// Acquire blocks until key is free or ctx is done
func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &memLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.drop(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			m.drop(key, l)
		})
	}, nil
}

func (m *Memory) drop(key string, l *memLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Len reports how many keys are currently tracked
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
