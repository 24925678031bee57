package blockflow

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/processes/difficultymanager"
	"github.com/shardflow/flowdag/domain/consensus/utils/consensushashing"
	"github.com/shardflow/flowdag/domain/consensus/utils/hashes"
	"github.com/shardflow/flowdag/domain/worldstate"
	"github.com/shardflow/flowdag/infrastructure/logger"
)

const genesisHashDomain = "flowdag-chain-genesis"

var log = logger.RegisterSubsystem("BLFL")

// TransactionSource draws pending transactions for a mining template,
// filtered to the chain they belong on. Defined here rather than imported
// from domain/mempool so blockflow stays independent of the mempool's
// concrete eviction policy; domain/mempool's *Pool satisfies this.
type TransactionSource interface {
	Transactions(chainIndex externalapi.ChainIndex) []*externalapi.Transaction
}

// BlockFlow is the aggregate of all G*G per-pair chains: the only read
// model validators and mining consume (spec.md §4.6).
type BlockFlow struct {
	groups int

	mu     sync.RWMutex
	chains map[externalapi.ChainIndex]*Chain

	base *worldstate.WorldState
}

// New builds a BlockFlow with one Chain per (from, to) pair, each seeded
// with a deterministic per-chain genesis hash so every broker derives the
// same genesis set independently.
func New(groups int, genesisTarget *uint256.Int, genesisTimestampMs int64) *BlockFlow {
	bf := &BlockFlow{
		groups: groups,
		chains: make(map[externalapi.ChainIndex]*Chain),
		base:   worldstate.New(),
	}
	for from := externalapi.GroupIndex(0); int(from) < groups; from++ {
		for to := externalapi.GroupIndex(0); int(to) < groups; to++ {
			index := externalapi.NewChainIndex(from, to)
			genesisHash := genesisHashForChain(index)
			bf.chains[index] = NewChain(index, genesisHash, genesisTarget, genesisTimestampMs)
		}
	}
	return bf
}

// genesisHashForChain derives a stable, chain-specific genesis hash so
// every node computes the same value without needing to gossip it.
func genesisHashForChain(index externalapi.ChainIndex) *externalapi.Hash {
	w := hashes.NewHashWriter(genesisHashDomain)
	w.WriteUint32(uint32(index.From))
	w.WriteUint32(uint32(index.To))
	return w.Finalize()
}

// Groups returns the shard count G this BlockFlow was built with.
func (bf *BlockFlow) Groups() int {
	return bf.groups
}

// getHeaderChain and getBlockChain are the same accessor under spec.md
// §4.6's two names: a Chain stores both headers and bodies, so either
// name resolves to the same underlying Chain.

// GetHeaderChain returns the Chain for index.
func (bf *BlockFlow) GetHeaderChain(index externalapi.ChainIndex) *Chain {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return bf.chains[index]
}

// GetBlockChain returns the Chain for index.
func (bf *BlockFlow) GetBlockChain(index externalapi.ChainIndex) *Chain {
	return bf.GetHeaderChain(index)
}

// ChainIndices returns every (from, to) pair this BlockFlow tracks a
// Chain for, in no particular order.
func (bf *BlockFlow) ChainIndices() []externalapi.ChainIndex {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	indices := make([]externalapi.ChainIndex, 0, len(bf.chains))
	for index := range bf.chains {
		indices = append(indices, index)
	}
	return indices
}

// Contains implements blockvalidator.FlowReader: true if hash's header is
// known on any of the G*G chains.
func (bf *BlockFlow) Contains(hash *externalapi.Hash) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	for _, c := range bf.chains {
		if c.Contains(hash) {
			return true
		}
	}
	return false
}

// ChainIndexOf resolves which chain a known hash's header lives on.
func (bf *BlockFlow) ChainIndexOf(hash *externalapi.Hash) (externalapi.ChainIndex, bool) {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	for index, c := range bf.chains {
		if c.Contains(hash) {
			return index, true
		}
	}
	return externalapi.ChainIndex{}, false
}

// MiningTemplate bundles everything prepareBlockFlow (spec.md §4.6)
// assembles for a miner targeting chainIndex: the dependency set a new
// header must carry, the target it must satisfy, and the candidate
// transaction list drawn from the mempool.
type MiningTemplate struct {
	ChainIndex   externalapi.ChainIndex
	ParentHash   *externalapi.Hash
	Deps         []*externalapi.Hash
	Target       *uint256.Int
	Transactions []*externalapi.Transaction
}

// PrepareBlockFlow computes the best parent for chainIndex, the best tip
// of every other chain (the "best deps"), and the retarget for the
// resulting target, then bundles a MiningTemplate. diff is the
// difficultymanager.Manager wired for this node (threaded explicitly
// rather than held by BlockFlow, since it needs no chain-specific state).
func (bf *BlockFlow) PrepareBlockFlow(chainIndex externalapi.ChainIndex, diff *difficultymanager.Manager, txs TransactionSource) (*MiningTemplate, error) {
	bf.mu.RLock()
	ownChain := bf.chains[chainIndex]
	bf.mu.RUnlock()
	if ownChain == nil {
		return nil, errInvalidChainIndex
	}

	parentHash, ok := ownChain.BestTip()
	if !ok {
		return nil, errNoTip
	}

	order := externalapi.CanonicalDepOrder(chainIndex.From, bf.groups)
	deps := make([]*externalapi.Hash, len(order))
	for i, depIndex := range order {
		depChain := bf.GetHeaderChain(depIndex)
		tip, ok := depChain.BestTip()
		if !ok {
			return nil, errNoTip
		}
		deps[i] = &tip
	}

	target, err := diff.RequiredDifficulty(ownChain, &parentHash)
	if err != nil {
		return nil, err
	}

	var transactions []*externalapi.Transaction
	if txs != nil {
		transactions = txs.Transactions(chainIndex)
	}

	return &MiningTemplate{
		ChainIndex:   chainIndex,
		ParentHash:   &parentHash,
		Deps:         deps,
		Target:       target,
		Transactions: transactions,
	}, nil
}

// GetTrie returns the world state visible to a block about to be
// validated/mined on top of deps: the base persisted state with every
// dependency block's transactions folded on top, in deps' given order
// (spec.md §4.6's "world state obtained by folding the block's deps onto
// the base persisted state").
func (bf *BlockFlow) GetTrie(deps []*externalapi.Hash) (*worldstate.View, error) {
	view := bf.base.Cached()
	for _, dep := range deps {
		index, ok := bf.ChainIndexOf(dep)
		if !ok {
			return nil, errUnknownDep
		}
		block, ok := bf.GetBlockChain(index).Block(dep)
		if !ok {
			continue // header known, body not yet; nothing to fold.
		}
		foldBlock(view, block)
	}
	return view, nil
}

// foldBlock applies block's transactions' UTXO effects onto view, mirroring
// blockvalidator.addOutputs/RemoveAsset's fold-as-you-go pattern.
func foldBlock(view *worldstate.View, block *externalapi.Block) {
	for _, tx := range block.Transactions {
		for _, in := range tx.Unsigned.Inputs {
			view.RemoveAsset(in.OutputRef)
		}
		txHash := consensushashing.TransactionHash(tx)
		for i, out := range tx.Unsigned.FixedOutputs {
			ref := &externalapi.AssetOutputRef{OutputRef: externalapi.OutputRef{
				Hint: consensushashing.ScriptHint(out.LockupScript),
				Key:  consensushashing.OutputKey(txHash, uint32(i)),
			}}
			view.AddAsset(ref, out)
		}
	}
}

// CommitBlock folds block permanently into the base persisted state and
// records it on its chain, called once a block has passed validation.
func (bf *BlockFlow) CommitBlock(index externalapi.ChainIndex, hash *externalapi.Hash, block *externalapi.Block) error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	view := bf.base.Cached()
	foldBlock(view, block)
	newState, _, err := view.Commit()
	if err != nil {
		return err
	}
	bf.base = newState

	chain := bf.chains[index]
	chain.AddBlock(hash, block)
	log.Debugf("committed block %s on chain %s", hash, index)
	return nil
}

type blockflowError string

func (e blockflowError) Error() string { return string(e) }

const (
	errInvalidChainIndex = blockflowError("unknown chainIndex")
	errNoTip             = blockflowError("chain has no tip")
	errUnknownDep         = blockflowError("dependency hash belongs to no known chain")
)
