// Package ldb binds db.Database to github.com/syndtr/goleveldb, the
// teacher's own on-disk store, giving that teacher dependency a concrete
// home as spec.md §6's production storage backend. Options are adapted
// from the teacher's infrastructure/db/database/ldb/options.go.
package ldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/shardflow/flowdag/infrastructure/db"
)

var defaultOptions = opt.Options{
	Compression:            opt.NoCompression,
	BlockCacheCapacity:     64 * opt.MiB,
	WriteBuffer:            32 * opt.MiB,
	DisableSeeksCompaction: true,
}

// LevelDB is a db.Database backed by an on-disk goleveldb store.
type LevelDB struct {
	ldb *leveldb.DB
}

// Open opens (creating if necessary) a LevelDB store at path.
func Open(path string) (*LevelDB, error) {
	ldb, err := leveldb.OpenFile(path, &defaultOptions)
	if err != nil {
		return nil, err
	}
	return &LevelDB{ldb: ldb}, nil
}

// Get implements db.Database.
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := l.ldb.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Has implements db.Database.
func (l *LevelDB) Has(key []byte) (bool, error) {
	return l.ldb.Has(key, nil)
}

// Put implements db.Database.
func (l *LevelDB) Put(key, value []byte) error {
	return l.ldb.Put(key, value, nil)
}

// Delete implements db.Database. Deleting an absent key is a no-op, matching
// db.MemoryDB's semantics.
func (l *LevelDB) Delete(key []byte) error {
	return l.ldb.Delete(key, nil)
}

// Close implements db.Database.
func (l *LevelDB) Close() error {
	return l.ldb.Close()
}
