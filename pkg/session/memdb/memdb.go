// пакет memdb хранит сессии в памяти процесса.
package memdb

import (
	"context"
	"sync"
	"time"

	"github.com/rtemka/hnfront/pkg/session"
)

// MemDB - хранилище сессий в памяти.
type MemDB struct {
	mu sync.RWMutex
	m  map[string]session.Session
}

func New() *MemDB {
	return &MemDB{m: make(map[string]session.Session)}
}

func (db *MemDB) Get(_ context.Context, id string) (session.Session, error) {
	db.mu.RLock()
	s, ok := db.m[id]
	db.mu.RUnlock()
	if !ok || s.Expired(time.Now()) {
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (db *MemDB) Save(_ context.Context, s session.Session) error {
	db.mu.Lock()
	db.m[s.ID] = s
	db.mu.Unlock()
	return nil
}

func (db *MemDB) Delete(_ context.Context, id string) error {
	db.mu.Lock()
	delete(db.m, id)
	db.mu.Unlock()
	return nil
}

// Purge удаляет сессии, истекшие к моменту before.
func (db *MemDB) Purge(_ context.Context, before time.Time) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var n int64
	for id, s := range db.m {
		if s.Expired(before) {
			delete(db.m, id)
			n++
		}
	}
	return n, nil
}

// Close - no-op
func (db *MemDB) Close() error { return nil }
