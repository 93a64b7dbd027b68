// Package keylock provides a table of mutexes keyed by string.
//
// The table starts empty and holds an entry only while a key is locked or
// waited on, so process restart always begins with nothing in progress.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table is a keyed lock table. The zero value is ready to use.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty lock table.
func New() *Table {
	return &Table{}
}

func (t *Table) ref(key string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries == nil {
		t.entries = make(map[string]*entry)
	}
	e, ok := t.entries[key]
	if !ok {
		e = &entry{}
		t.entries[key] = e
	}
	e.refs++
	return e
}

func (t *Table) unref(key string, e *entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(t.entries, key)
	}
}

// Lock blocks until key is acquired and returns its release function.
func (t *Table) Lock(key string) (release func()) {
	e := t.ref(key)
	e.mu.Lock()
	return t.releaser(key, e)
}

// TryLock acquires key without waiting. ok is false when the key is
// already held; release is nil in that case.
func (t *Table) TryLock(key string) (release func(), ok bool) {
	e := t.ref(key)
	if !e.mu.TryLock() {
		t.unref(key, e)
		return nil, false
	}
	return t.releaser(key, e), true
}

// Held reports whether key is currently locked.
func (t *Table) Held(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

func (t *Table) releaser(key string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			t.unref(key, e)
		})
	}
}
