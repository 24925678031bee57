package externalapi

import "github.com/holiman/uint256"

// Block is a full BlockFlow block: a header plus its ordered transaction
// list. Transactions[0] is always the coinbase.
type Block struct {
	Header       *BlockHeader
	Transactions []*Transaction
}

// Clone returns a deep clone of Block.
func (block *Block) Clone() *Block {
	txClone := make([]*Transaction, len(block.Transactions))
	for i, tx := range block.Transactions {
		txClone[i] = tx.Clone()
	}

	return &Block{
		Header:       block.Header.Clone(),
		Transactions: txClone,
	}
}

// Equal returns whether block equals other.
func (block *Block) Equal(other *Block) bool {
	if block == nil || other == nil {
		return block == other
	}

	if len(block.Transactions) != len(other.Transactions) {
		return false
	}

	if !block.Header.Equal(other.Header) {
		return false
	}

	for i, tx := range block.Transactions {
		if !tx.Equal(other.Transactions[i]) {
			return false
		}
	}

	return true
}

// BlockHeader is the fixed-size, independently-hashable part of a Block.
//
// BlockDeps has length G*G-1: one reference per chain of the DAG other than
// the header's own (from,from) parent chain, in CanonicalDepOrder. The
// parent is tracked separately in ParentHash.
type BlockHeader struct {
	ParentHash  *Hash
	BlockDeps   []*Hash
	TxsHash     Hash
	TimestampMs int64
	Target      *uint256.Int
	Nonce       uint64
}

// Clone returns a deep clone of BlockHeader.
func (header *BlockHeader) Clone() *BlockHeader {
	var targetClone *uint256.Int
	if header.Target != nil {
		targetClone = new(uint256.Int).Set(header.Target)
	}
	var parentClone *Hash
	if header.ParentHash != nil {
		p := *header.ParentHash
		parentClone = &p
	}
	return &BlockHeader{
		ParentHash:  parentClone,
		BlockDeps:   CloneHashes(header.BlockDeps),
		TxsHash:     header.TxsHash,
		TimestampMs: header.TimestampMs,
		Target:      targetClone,
		Nonce:       header.Nonce,
	}
}

// Equal returns whether header equals other.
func (header *BlockHeader) Equal(other *BlockHeader) bool {
	if header == nil || other == nil {
		return header == other
	}

	if !header.ParentHash.Equal(other.ParentHash) {
		return false
	}
	if !HashesEqual(header.BlockDeps, other.BlockDeps) {
		return false
	}
	if !header.TxsHash.Equal(&other.TxsHash) {
		return false
	}
	if header.TimestampMs != other.TimestampMs {
		return false
	}
	if (header.Target == nil) != (other.Target == nil) {
		return false
	}
	if header.Target != nil && header.Target.Cmp(other.Target) != 0 {
		return false
	}
	if header.Nonce != other.Nonce {
		return false
	}
	return true
}

// Deps returns ParentHash followed by BlockDeps: the full set of hashes
// that must already be accepted for this header to be accepted
// (spec.md §3 invariant 2).
func (header *BlockHeader) Deps() []*Hash {
	deps := make([]*Hash, 0, len(header.BlockDeps)+1)
	if header.ParentHash != nil {
		deps = append(deps, header.ParentHash)
	}
	deps = append(deps, header.BlockDeps...)
	return deps
}
