package sessions

import (
	"context"
	"sync"
	"time"
)

// lockManager hands out one lock per session id, so all file operations on a
// session serialize. Idle locks are dropped by reference count; there is no
// background reaper.
type lockManager struct {
	mu      sync.Mutex
	timeout time.Duration
	locks   map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func newLockManager(timeout time.Duration) *lockManager {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &lockManager{
		timeout: timeout,
		locks:   make(map[string]*sessionLock),
	}
}

// Acquire takes the session's lock and returns the release. It fails with
// ErrLockTimeout when the lock stays held past the manager's timeout, or
// with the context error when ctx ends first.
func (m *lockManager) Acquire(ctx context.Context, sessionID string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-l.ch
				m.drop(sessionID, l)
			})
		}
		return release, nil
	case <-ctx.Done():
		m.drop(sessionID, l)
		return nil, ctx.Err()
	case <-timer.C:
		m.drop(sessionID, l)
		return nil, ErrLockTimeout
	}
}

func (m *lockManager) drop(sessionID string, l *sessionLock) {
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, sessionID)
	}
	m.mu.Unlock()
}
