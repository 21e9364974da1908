package coordinator

import "sync"

// routeLocks hands out one mutex per route ID. Entries are dropped once no
// goroutine holds or waits for them.
type routeLocks struct {
	mu    sync.Mutex
	locks map[int64]*routeLock
}

type routeLock struct {
	mu   sync.Mutex
	refs int
}

func newRouteLocks() *routeLocks {
	return &routeLocks{locks: make(map[int64]*routeLock)}
}

// Lock blocks until routeID is free and returns the matching unlock.
func (l *routeLocks) Lock(routeID int64) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.locks[routeID]
	if !ok {
		lock = &routeLock{}
		l.locks[routeID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, routeID)
		}
		l.mu.Unlock()
	}
}

func (l *routeLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
