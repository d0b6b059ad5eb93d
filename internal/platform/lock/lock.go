package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned by TryLock-style callers when the key is held elsewhere.
var ErrNotAcquired = errors.New("lock not acquired")

// UnlockFunc releases a held lock. It is safe to call more than once.
type UnlockFunc func()

// Locker provides keyed mutual exclusion.
type Locker interface {
	// Lock blocks until key is held or ctx is done.
	Lock(ctx context.Context, key string) (UnlockFunc, error)
	// TryLock returns immediately. ok is false when another holder has the key.
	TryLock(ctx context.Context, key string) (unlock UnlockFunc, ok bool, err error)
}

// LocalLocker is an in-process Locker. It only excludes holders in the same process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Lock implements Locker.
func (l *LocalLocker) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	s := l.acquireSlot(key)
	select {
	case s.ch <- struct{}{}:
		return l.unlocker(key, s), nil
	case <-ctx.Done():
		l.releaseSlot(key, s)
		return nil, ctx.Err()
	}
}

// TryLock implements Locker.
func (l *LocalLocker) TryLock(_ context.Context, key string) (UnlockFunc, bool, error) {
	s := l.acquireSlot(key)
	select {
	case s.ch <- struct{}{}:
		return l.unlocker(key, s), true, nil
	default:
		l.releaseSlot(key, s)
		return nil, false, nil
	}
}

func (l *LocalLocker) unlocker(key string, s *slot) UnlockFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(key, s)
		})
	}
}
