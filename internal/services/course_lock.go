package services

import "sync"

// courseLocks hands out one mutex per course id. Every graph operation for
// a course runs under that course's mutex for its full
// read-validate-mutate-persist cycle; operations on different courses do
// not block one another. Entries are never evicted — the map is bounded by
// the number of courses touched by this process.
type courseLocks struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

func newCourseLocks() *courseLocks {
	return &courseLocks{locks: map[uint64]*sync.Mutex{}}
}

// lock acquires the mutex for courseID and returns its release func.
func (l *courseLocks) lock(courseID uint64) func() {
	l.mu.Lock()
	m, ok := l.locks[courseID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[courseID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
