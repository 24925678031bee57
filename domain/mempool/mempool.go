// Package mempool implements spec.md §6's mempool contract
// ("collectTransactions(chainIndex) -> [Transaction]; remove(tx)"),
// modeled on the teacher's mempool.TxPool concept referenced from
// protocol/flowcontext: a concurrency-safe, mutex-guarded store of
// pending transactions, filterable by the chain they belong on.
//
// github.com/hashicorp/golang-lru (present in the pack's other chain
// repos, e.g. thrylos-labs-thrylos's store.LRUCache) is wired in as the
// bounded eviction cache for transaction ids this Pool has already
// rejected, so a peer re-sending a known-bad transaction is dropped
// without re-running full validation.
package mempool

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/utils/consensushashing"
	"github.com/shardflow/flowdag/infrastructure/logger"

	"sync"
)

var log = logger.RegisterSubsystem("MEMP")

const defaultRejectedCacheSize = 4096

// Pool is a concurrency-safe collection of pending transactions, indexed
// by the chain they target so BlockFlow.PrepareBlockFlow can draw a
// mining template's candidate list with a single lookup.
type Pool struct {
	mu           sync.RWMutex
	byChain      map[externalapi.ChainIndex]map[externalapi.Hash]*externalapi.Transaction
	rejectedIds  *lru.Cache
}

// New returns an empty Pool.
func New() *Pool {
	rejected, err := lru.New(defaultRejectedCacheSize)
	if err != nil {
		// lru.New only errors on a non-positive size; defaultRejectedCacheSize
		// is a positive constant.
		panic(err)
	}
	return &Pool{
		byChain:     make(map[externalapi.ChainIndex]map[externalapi.Hash]*externalapi.Transaction),
		rejectedIds: rejected,
	}
}

// Add inserts tx under chainIndex, unless its id is in the rejected cache.
// Returns false if tx was rejected or already present.
func (p *Pool) Add(chainIndex externalapi.ChainIndex, tx *externalapi.Transaction) bool {
	id := consensushashing.TransactionHash(tx)
	if _, rejected := p.rejectedIds.Get(*id); rejected {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	txs, ok := p.byChain[chainIndex]
	if !ok {
		txs = make(map[externalapi.Hash]*externalapi.Transaction)
		p.byChain[chainIndex] = txs
	}
	if _, exists := txs[*id]; exists {
		return false
	}
	txs[*id] = tx
	return true
}

// Reject records txId as known-bad so a future Add for the same id is a
// no-op until the cache evicts it.
func (p *Pool) Reject(txId externalapi.Hash) {
	p.rejectedIds.Add(txId, struct{}{})
}

// Transactions implements blockflow.TransactionSource: every transaction
// currently pending on chainIndex, in no particular order (selection
// policy among pending transactions is left to the miner, a Non-goal of
// spec.md §1's "consensus economics tuning").
func (p *Pool) Transactions(chainIndex externalapi.ChainIndex) []*externalapi.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	txs := p.byChain[chainIndex]
	out := make([]*externalapi.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx)
	}
	return out
}

// Remove drops tx from its chain's pending set, called once a containing
// block has been accepted (spec.md §3's "Transactions live in a mempool
// ... and are consumed on block acceptance").
func (p *Pool) Remove(chainIndex externalapi.ChainIndex, tx *externalapi.Transaction) {
	id := consensushashing.TransactionHash(tx)
	p.mu.Lock()
	defer p.mu.Unlock()
	txs, ok := p.byChain[chainIndex]
	if !ok {
		return
	}
	delete(txs, *id)
	log.Debugf("removed tx %s from chain %s mempool", id, chainIndex)
}

// Size returns the total number of pending transactions across every chain.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	total := 0
	for _, txs := range p.byChain {
		total += len(txs)
	}
	return total
}
