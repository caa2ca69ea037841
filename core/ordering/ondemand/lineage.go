package ondemand

import "sync"

// lineageLocks serializes the builds of the reject rounds of a block round so
// that a build reads the filter only after the previous one has recorded its
// batches. Block rounds don't share a lock.
type lineageLocks struct {
	sync.Mutex

	locks map[uint64]*sync.Mutex
}

func newLineageLocks() *lineageLocks {
	return &lineageLocks{
		locks: make(map[uint64]*sync.Mutex),
	}
}

// get returns the lock of the block round.
func (l *lineageLocks) get(blockRound uint64) *sync.Mutex {
	l.Lock()
	defer l.Unlock()

	lock, found := l.locks[blockRound]
	if !found {
		lock = new(sync.Mutex)
		l.locks[blockRound] = lock
	}

	return lock
}

// prune forgets the locks of the block round and every one before.
func (l *lineageLocks) prune(blockRound uint64) {
	l.Lock()
	defer l.Unlock()

	for key := range l.locks {
		if key <= blockRound {
			delete(l.locks, key)
		}
	}
}

func (l *lineageLocks) len() int {
	l.Lock()
	defer l.Unlock()

	return len(l.locks)
}
