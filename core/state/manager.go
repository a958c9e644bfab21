package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/StrataFoundation/strata-sub000/storage"
)

// Manager owns the ledger database and hands out write overlays. Only one
// transaction runs at a time; its writes reach the database as a single
// batch or not at all.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager creates a state manager over db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Atomic runs fn against a fresh overlay and commits the overlay when fn
// returns nil. Any error discards every write fn made.
func (m *Manager) Atomic(fn func(tx *Tx) error) error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not initialised")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := newTx(m.db)
	if err := fn(tx); err != nil {
		return err
	}
	if err := m.db.Write(tx.batch()); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// View runs fn against an overlay that is always discarded.
func (m *Manager) View(fn func(tx *Tx) error) error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not initialised")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(newTx(m.db))
}

// Tx is a write overlay over the database. Reads observe the transaction's
// own writes first.
type Tx struct {
	db     storage.Database
	writes map[string][]byte
	// deleted keys map to nil in writes
}

func newTx(db storage.Database) *Tx {
	return &Tx{db: db, writes: make(map[string][]byte)}
}

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	if value, ok := tx.writes[string(key)]; ok {
		if value == nil {
			return nil, false, nil
		}
		return value, true, nil
	}
	value, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (tx *Tx) put(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	tx.writes[string(key)] = value
}

func (tx *Tx) del(key []byte) {
	tx.writes[string(key)] = nil
}

// iterate merges committed keys under prefix with the overlay.
func (tx *Tx) iterate(prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	if err := tx.db.Iterate(prefix, func(key, value []byte) error {
		merged[string(key)] = value
		return nil
	}); err != nil {
		return err
	}
	for k, v := range tx.writes {
		if len(k) < len(prefix) || k[:len(prefix)] != string(prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) batch() *storage.Batch {
	b := new(storage.Batch)
	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := tx.writes[k]; v == nil {
			b.Delete([]byte(k))
		} else {
			b.Put([]byte(k), v)
		}
	}
	return b
}

// Pending reports the number of keys the transaction has touched.
func (tx *Tx) Pending() int { return len(tx.writes) }
