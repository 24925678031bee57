package flowhandler

import "github.com/shardflow/flowdag/domain/consensus/model/externalapi"

// pendingEntry is one parked header or block awaiting deps, keyed by a
// monotonic counter (spec.md §4.5 step 3/§8 scenario 6).
type pendingEntry struct {
	counter     uint64
	hash        externalapi.Hash
	chainIndex  externalapi.ChainIndex
	header      *externalapi.BlockHeader
	block       *externalapi.Block // nil for a header-only pending entry
	broker      Broker
	origin      Origin
	missingDeps map[externalapi.Hash]bool
}

// pendingBuffer is the bounded, monotonic-keyed table of spec.md §4.5: it
// parks items whose deps are not all locally present, and evicts the
// oldest (lowest counter) entry when Add would exceed limit, per spec.md
// §5's "drops oldest-first rather than newest-first to favor
// recently-arrived information."
type pendingBuffer struct {
	limit       int
	nextCounter uint64

	entries map[uint64]*pendingEntry
	byHash  map[externalapi.Hash]uint64

	// waiting indexes, for each dep hash still missing, the set of
	// pending counters blocked on it, so Promote can find candidates in
	// O(1) per newly-accepted hash instead of scanning every entry.
	waiting map[externalapi.Hash]map[uint64]bool
}

func newPendingBuffer(limit int) *pendingBuffer {
	return &pendingBuffer{
		limit:   limit,
		entries: make(map[uint64]*pendingEntry),
		byHash:  make(map[externalapi.Hash]uint64),
		waiting: make(map[externalapi.Hash]map[uint64]bool),
	}
}

// Contains reports whether hash is already parked.
func (b *pendingBuffer) Contains(hash externalapi.Hash) bool {
	_, ok := b.byHash[hash]
	return ok
}

// Size returns the current number of parked entries.
func (b *pendingBuffer) Size() int {
	return len(b.entries)
}

// Add parks entry, assigning it the next monotonic counter, and evicts the
// oldest entry if doing so would exceed limit. Returns the evicted entry,
// if any.
func (b *pendingBuffer) Add(entry *pendingEntry) (evicted *pendingEntry) {
	entry.counter = b.nextCounter
	b.nextCounter++

	b.entries[entry.counter] = entry
	b.byHash[entry.hash] = entry.counter
	for dep := range entry.missingDeps {
		set, ok := b.waiting[dep]
		if !ok {
			set = make(map[uint64]bool)
			b.waiting[dep] = set
		}
		set[entry.counter] = true
	}

	if len(b.entries) <= b.limit {
		return nil
	}
	return b.evictOldest()
}

// evictOldest removes and returns the lowest-counter entry.
func (b *pendingBuffer) evictOldest() *pendingEntry {
	var oldestCounter uint64
	var oldest *pendingEntry
	for counter, entry := range b.entries {
		if oldest == nil || counter < oldestCounter {
			oldestCounter = counter
			oldest = entry
		}
	}
	if oldest != nil {
		b.remove(oldest)
	}
	return oldest
}

// remove drops entry from every index.
func (b *pendingBuffer) remove(entry *pendingEntry) {
	delete(b.entries, entry.counter)
	delete(b.byHash, entry.hash)
	for dep := range entry.missingDeps {
		if set, ok := b.waiting[dep]; ok {
			delete(set, entry.counter)
			if len(set) == 0 {
				delete(b.waiting, dep)
			}
		}
	}
}

// Promote removes hash from every entry's missingDeps set that names it,
// and returns every entry whose missingDeps set has become empty as a
// result, ready to be fed into chain-level handlers (spec.md §4.5 step 4).
func (b *pendingBuffer) Promote(hash externalapi.Hash) []*pendingEntry {
	waiting, ok := b.waiting[hash]
	if !ok {
		return nil
	}
	delete(b.waiting, hash)

	var ready []*pendingEntry
	for counter := range waiting {
		entry, ok := b.entries[counter]
		if !ok {
			continue
		}
		delete(entry.missingDeps, hash)
		if len(entry.missingDeps) == 0 {
			b.remove(entry)
			ready = append(ready, entry)
		}
	}
	return ready
}
