package consensushashing

import (
	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/utils/hashes"
)

// HeaderHash returns the block identity hash used throughout the flow as
// the key of a header/block in its chain, and as the PoW input: spec.md §3
// requires `BigUInt(header.hash) <= header.target`.
//
// Nonce is intentionally hashed last and alone determines the tail of the
// writer state a miner mutates between PoW attempts, matching the
// teacher's own header-hash layout (fixed fields, then nonce).
func HeaderHash(header *externalapi.BlockHeader) *externalapi.Hash {
	w := hashes.NewHashWriter(headerDomain)
	w.WriteHash(header.ParentHash)
	w.WriteUint32(uint32(len(header.BlockDeps)))
	for _, dep := range header.BlockDeps {
		w.WriteHash(dep)
	}
	w.WriteHash(&header.TxsHash)
	w.WriteInt64(header.TimestampMs)
	writeU256(w, header.Target)
	w.WriteUint64(header.Nonce)
	return w.Finalize()
}

// BlockHash returns the same value as HeaderHash(block.Header): a block's
// identity is its header's identity, never a function of its transactions
// (those are committed into the header via TxsHash).
func BlockHash(block *externalapi.Block) *externalapi.Hash {
	return HeaderHash(block.Header)
}
