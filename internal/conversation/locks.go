package conversation

import "sync"

// userLocks hands out one mutex per user so that events for the same user
// run strictly one at a time while distinct users proceed in parallel.
// Entries are reference-counted and removed once the last holder releases,
// keeping the registry bounded by the number of in-flight users.
type userLocks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{entries: make(map[int64]*lockEntry)}
}

// acquire blocks until the user's lock is held and returns the release
// function. The release function must be called on every exit path.
func (l *userLocks) acquire(userID int64) func() {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		e = &lockEntry{}
		l.entries[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, userID)
		}
		l.mu.Unlock()
	}
}
