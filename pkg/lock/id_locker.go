// Package lock provides mutual exclusion keyed by id.
package lock

import "sync"

type IDLocker struct {
	mapMutex sync.Mutex
	idMap    map[string]*sync.Mutex
}

func NewIDLocker() *IDLocker {
	return &IDLocker{
		idMap: make(map[string]*sync.Mutex),
	}
}

// Lock locks id and returns the function that unlocks it. The returned
// function stays valid after Forget.
func (l *IDLocker) Lock(id string) (unlock func()) {
	l.mapMutex.Lock()
	idMutex, ok := l.idMap[id]
	if !ok {
		idMutex = &sync.Mutex{}
		l.idMap[id] = idMutex
	}
	l.mapMutex.Unlock()

	idMutex.Lock()
	return idMutex.Unlock
}

func (l *IDLocker) WithLock(id string, f func() error) error {
	unlock := l.Lock(id)
	defer unlock()
	return f()
}

// Forget drops the mutex kept for id. It must only be called once nothing
// will lock id again, such as after the object it guards has been deleted.
func (l *IDLocker) Forget(id string) {
	l.mapMutex.Lock()
	defer l.mapMutex.Unlock()
	delete(l.idMap, id)
}
