// Package db defines the storage contract spec.md §6 requires of the
// node's key-value store: "a key-value store exposing get/put/delete with
// bytes keys and values, and a state-root-committing trie API." This
// package provides only the key-value half, and the core consensus
// packages (worldstate, blockflow, flowhandler) import neither it nor a
// concrete backend. The Database interface is modeled on the
// teacher's domain/consensus/model.DBReader/DBWriter split
// (infrastructure/db/model/database.go in the teacher tree), collapsed
// here to bytes-keyed get/put/delete since this protocol's consensus core
// has no bucket/cursor iteration requirement of its own.
package db

import "github.com/pkg/errors"

// ErrNotFound is returned by Get when key does not exist.
var ErrNotFound = errors.New("key not found")

// Reader is the read half of the storage contract.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Writer is the full storage contract: Reader plus mutation.
type Writer interface {
	Reader
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Database is the full contract a backend must satisfy, plus lifecycle.
type Database interface {
	Writer
	Close() error
}

// MemoryDB is an in-memory Database, used in tests and as the default
// backend when no on-disk store is configured.
type MemoryDB struct {
	data map[string][]byte
}

// NewMemoryDB returns an empty MemoryDB.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{data: make(map[string][]byte)}
}

// Get implements Database.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := make([]byte, len(v))
	copy(clone, v)
	return clone, nil
}

// Has implements Database.
func (m *MemoryDB) Has(key []byte) (bool, error) {
	_, ok := m.data[string(key)]
	return ok, nil
}

// Put implements Database.
func (m *MemoryDB) Put(key, value []byte) error {
	clone := make([]byte, len(value))
	copy(clone, value)
	m.data[string(key)] = clone
	return nil
}

// Delete implements Database.
func (m *MemoryDB) Delete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

// Close implements Database.
func (m *MemoryDB) Close() error {
	return nil
}
