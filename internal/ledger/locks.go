package ledger

import "sync"

// UserLocks serializes ledger writes per user within the process. The
// transaction creation path and the planned sweep share one instance so that
// numbering, insertion and the balance update never interleave for a user.
type UserLocks struct {
	mu    sync.Mutex
	locks map[uint]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewUserLocks creates an empty lock table.
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[uint]*userLock)}
}

// Lock acquires the lock for userID and returns its release function.
func (l *UserLocks) Lock(userID uint) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()

		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// WithLock runs fn while holding the lock for userID.
func (l *UserLocks) WithLock(userID uint, fn func() error) error {
	unlock := l.Lock(userID)
	defer unlock()
	return fn()
}
