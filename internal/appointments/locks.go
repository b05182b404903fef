package appointments

import "sync"

// dateLocks serializes read-validate-write sequences per calendar date so
// two requests cannot both pass the conflict check for the same slot.
type dateLocks struct {
	mu    sync.Mutex
	locks map[string]*dateLock
}

type dateLock struct {
	mu   sync.Mutex
	refs int
}

func newDateLocks() *dateLocks {
	return &dateLocks{locks: make(map[string]*dateLock)}
}

// lock acquires the lock for date and returns its release func.
func (d *dateLocks) lock(date string) func() {
	d.mu.Lock()
	l, ok := d.locks[date]
	if !ok {
		l = &dateLock{}
		d.locks[date] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, date)
		}
		d.mu.Unlock()
	}
}

// lockPair locks two dates in a stable order, for moves across days.
func (d *dateLocks) lockPair(a, b string) func() {
	if a == b {
		return d.lock(a)
	}
	if b < a {
		a, b = b, a
	}
	unlockA := d.lock(a)
	unlockB := d.lock(b)
	return func() {
		unlockB()
		unlockA()
	}
}
