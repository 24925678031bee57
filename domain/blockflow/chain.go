// Package blockflow implements spec.md §4.6: the aggregate of all G*G
// per-pair chains, cross-chain dependency resolution, best-tip tracking and
// mining-template preparation. Adapted from the teacher's
// domain/consensus aggregate-of-stores shape, generalized from "one DAG"
// to "one chain object per ordered (from,to) pair".
package blockflow

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
)

// entry is the per-hash bookkeeping a Chain keeps: the header (always
// present once accepted), the full block body (nil until the body itself
// has been accepted, per spec.md §3 invariant 1: a header can be known
// before its block), and the header's height within this chain.
type entry struct {
	header *externalapi.BlockHeader
	block  *externalapi.Block
	height uint64
}

// Chain is the append-only store for one (from, to) pair: headers and
// bodies keyed by hash, exposing parent/height/weight/tips/target queries.
// Implements difficultymanager.ChainReader directly.
type Chain struct {
	index externalapi.ChainIndex

	mu        sync.RWMutex
	entries   map[externalapi.Hash]*entry
	tips      map[externalapi.Hash]bool
	genesis   *externalapi.Hash
	maxHeight uint64
}

// NewChain builds an empty Chain for index, seeded with a synthetic
// genesis header carrying genesisTarget and genesisTimestampMs, so
// RequiredDifficulty and checkParent have a root to anchor on even before
// any real block is mined.
func NewChain(index externalapi.ChainIndex, genesisHash *externalapi.Hash, genesisTarget *uint256.Int, genesisTimestampMs int64) *Chain {
	c := &Chain{
		index:   index,
		entries: make(map[externalapi.Hash]*entry),
		tips:    make(map[externalapi.Hash]bool),
		genesis: genesisHash,
	}
	c.entries[*genesisHash] = &entry{
		header: &externalapi.BlockHeader{
			TimestampMs: genesisTimestampMs,
			Target:      genesisTarget,
		},
		height: 0,
	}
	c.tips[*genesisHash] = true
	return c
}

// Index returns the (from, to) pair this Chain stores.
func (c *Chain) Index() externalapi.ChainIndex {
	return c.index
}

// Genesis returns this chain's genesis hash.
func (c *Chain) Genesis() *externalapi.Hash {
	return c.genesis
}

// Contains reports whether hash's header is known to this chain.
func (c *Chain) Contains(hash *externalapi.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[*hash]
	return ok
}

// HasBlock reports whether hash's full body (not just its header) is known.
func (c *Chain) HasBlock(hash *externalapi.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[*hash]
	return ok && e.block != nil
}

// Parent returns hash's parent hash, if hash is known and not genesis.
func (c *Chain) Parent(hash *externalapi.Hash) (*externalapi.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[*hash]
	if !ok || e.header.ParentHash == nil {
		return nil, false
	}
	return e.header.ParentHash, true
}

// Height returns hash's height (genesis = 0).
func (c *Chain) Height(hash *externalapi.Hash) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[*hash]
	if !ok {
		return 0, false
	}
	return e.height, true
}

// TimestampMs returns hash's header timestamp.
func (c *Chain) TimestampMs(hash *externalapi.Hash) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[*hash]
	if !ok {
		return 0, false
	}
	return e.header.TimestampMs, true
}

// GetHashTarget returns hash's header target.
func (c *Chain) GetHashTarget(hash *externalapi.Hash) (*uint256.Int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[*hash]
	if !ok {
		return nil, false
	}
	return e.header.Target, true
}

// MaxHeight returns the height of this chain's deepest known entry.
func (c *Chain) MaxHeight() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxHeight
}

// Header returns hash's header, if known.
func (c *Chain) Header(hash *externalapi.Hash) (*externalapi.BlockHeader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[*hash]
	if !ok {
		return nil, false
	}
	return e.header, true
}

// Block returns hash's full block body, if known.
func (c *Chain) Block(hash *externalapi.Hash) (*externalapi.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[*hash]
	if !ok || e.block == nil {
		return nil, false
	}
	return e.block, true
}

// AddHeader records header under hash, assumed already validated by
// blockvalidator.ValidateHeader against this same Chain. Returns false if
// hash was already known (a no-op per spec.md §4.5 step 1).
func (c *Chain) AddHeader(hash *externalapi.Hash, header *externalapi.BlockHeader) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[*hash]; exists {
		return false
	}

	var height uint64
	if header.ParentHash != nil {
		parent, ok := c.entries[*header.ParentHash]
		if !ok {
			return false
		}
		height = parent.height + 1
		delete(c.tips, *header.ParentHash)
	}

	c.entries[*hash] = &entry{header: header, height: height}
	c.tips[*hash] = true
	if height > c.maxHeight {
		c.maxHeight = height
	}
	return true
}

// AddBlock attaches block's body to an already-known header. Returns false
// if the header is unknown or the body was already attached.
func (c *Chain) AddBlock(hash *externalapi.Hash, block *externalapi.Block) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[*hash]
	if !ok || e.block != nil {
		return false
	}
	e.block = block
	return true
}

// Tips returns the current best-height-independent tip set: every entry
// whose header no other entry names as a parent.
func (c *Chain) Tips() []externalapi.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tips := make([]externalapi.Hash, 0, len(c.tips))
	for h := range c.tips {
		tips = append(tips, h)
	}
	return tips
}

// HashesAboveHeight returns every known hash in this chain with a height
// strictly greater than height, unordered. Used by flowhandler's sync
// responses (spec.md §4.5 GetBlocks/GetHeaders) to turn a peer's locator
// into the set of hashes they are missing.
func (c *Chain) HashesAboveHeight(height uint64) []externalapi.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []externalapi.Hash
	for h, e := range c.entries {
		if e.height > height {
			out = append(out, h)
		}
	}
	return out
}

// BestTip returns the deepest tip, breaking ties by hash ordering for
// determinism.
func (c *Chain) BestTip() (externalapi.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var best *externalapi.Hash
	var bestHeight uint64
	for h := range c.tips {
		height := c.entries[h].height
		if best == nil || height > bestHeight || (height == bestHeight && h.Less(best)) {
			hCopy := h
			best = &hCopy
			bestHeight = height
		}
	}
	if best == nil {
		return externalapi.Hash{}, false
	}
	return *best, true
}
