package externalapi

import "fmt"

// GroupIndex is the index of a shard group, in [0, G) for a G-group flow.
type GroupIndex uint16

// ChainIndex identifies one of the G*G chains of the BlockFlow DAG: the
// chain carrying blocks mined from group `From` and accepted into group `To`.
type ChainIndex struct {
	From GroupIndex
	To   GroupIndex
}

// NewChainIndex builds a ChainIndex from a (from, to) pair.
func NewChainIndex(from, to GroupIndex) ChainIndex {
	return ChainIndex{From: from, To: to}
}

// IsIntraGroup returns true when the chain is internal to a single group
// (from == to). Intra-group transactions may execute tx scripts and touch
// contracts; inter-group transactions may not.
func (c ChainIndex) IsIntraGroup() bool {
	return c.From == c.To
}

func (c ChainIndex) String() string {
	return fmt.Sprintf("(%d -> %d)", c.From, c.To)
}

// Equal reports whether c and other identify the same chain.
func (c ChainIndex) Equal(other ChainIndex) bool {
	return c.From == other.From && c.To == other.To
}

// NumChainsForGroupCount returns the number of distinct chains (G*G) for a
// flow with the given number of groups.
func NumChainsForGroupCount(groups int) int {
	return groups * groups
}

// GroupIndexFromHash deterministically maps a hash's low byte to a group
// index, given the group count. This realizes the "script hint" mapping of
// spec.md §3: for block hashes, the hash itself; for addresses, the
// address's script hint is fed in instead of the raw hash bytes by the
// caller.
func GroupIndexFromHash(hash *Hash, groups int) GroupIndex {
	lastByte := hash.hashArray[HashSize-1]
	return GroupIndex(int(lastByte) % groups)
}

// ChainIndexFromHash computes the ChainIndex that a block with the given
// hash belongs to: a block's "from" group is fixed by its mining group
// (encoded in its hash's high bits) and its "to" group by its hash's low
// bits, both reduced modulo the group count. This is the canonical mapping
// asserted by spec.md §3's invariant
// `ChainIndex.fromHash(block.hash) == block.chainIndex`.
func ChainIndexFromHash(hash *Hash, groups int) ChainIndex {
	firstByte := hash.hashArray[0]
	from := GroupIndex(int(firstByte) % groups)
	to := GroupIndexFromHash(hash, groups)
	return ChainIndex{From: from, To: to}
}

// GroupIndexFromScriptHint maps an address's 32-bit script hint to a group
// index, given the group count.
func GroupIndexFromScriptHint(scriptHint uint32, groups int) GroupIndex {
	return GroupIndex(int(scriptHint) % groups)
}

// CanonicalDepOrder returns the fixed, canonical ordering of the G*G-1 chain
// indices that a header originating in group `from` must carry one
// blockDeps entry for (every chain of the DAG except the header's own
// parent chain (from,from) is represented once). The order is row-major
// over ascending (from,to) pairs, skipping (from,from); it must match the
// network's existing wire encoding byte-for-byte (spec.md §9) and is never
// recomputed once fixed.
func CanonicalDepOrder(from GroupIndex, groups int) []ChainIndex {
	order := make([]ChainIndex, 0, groups*groups-1)
	for g := GroupIndex(0); g < GroupIndex(groups); g++ {
		for h := GroupIndex(0); h < GroupIndex(groups); h++ {
			if g == from && h == from {
				continue
			}
			order = append(order, ChainIndex{From: g, To: h})
		}
	}
	return order
}
